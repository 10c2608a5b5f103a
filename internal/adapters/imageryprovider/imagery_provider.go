package imageryprovider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Amund211/tilelight/internal/adapters/tilesource"
	"github.com/Amund211/tilelight/internal/cache"
	e "github.com/Amund211/tilelight/internal/errors"
	"github.com/Amund211/tilelight/internal/logging"
	"github.com/Amund211/tilelight/internal/scheduler"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// The in-flight entry under pendingKey is replaced with the fetched buffer
// once the task settles; the TTL only bounds leaks if that replacement is
// lost to a crashed caller.
const pendingTTL = 1 * time.Minute

type imageryProvider struct {
	source       tilesource.TileSource
	scheduler    *scheduler.Scheduler[[]byte]
	contentCache *cache.Cache

	metrics imageryProviderMetricsCollection
}

// NewImageryProvider serves tiles from source through the shared scheduler
// and content cache. The scheduler task id ("tile:") and the cache keys
// ("buffer:", "pending:") are separate namespaces on purpose; the same
// coordinates appear in both but nothing requires them to stay in sync.
func NewImageryProvider(
	source tilesource.TileSource,
	requestScheduler *scheduler.Scheduler[[]byte],
	contentCache *cache.Cache,
) (ImageryProvider, error) {
	meter := otel.Meter("imageryprovider")
	metrics, err := setupImageryProviderMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	return &imageryProvider{
		source:       source,
		scheduler:    requestScheduler,
		contentCache: contentCache,
		metrics:      metrics,
	}, nil
}

func (provider *imageryProvider) GetTile(ctx context.Context, request TileRequest) ([]byte, error) {
	coords := fmt.Sprintf("%s/%d/%d/%d", request.Layer, request.Z, request.X, request.Y)
	bufferKey := "buffer:" + coords
	pendingKey := "pending:" + coords

	if buffer, ok := cache.GetAs[[]byte](provider.contentCache, bufferKey); ok {
		provider.metrics.cacheHitCount.Add(ctx, 1)
		logging.FromContext(ctx).Info("Getting tile imagery", "cache", "hit")
		return buffer, nil
	}

	provider.metrics.cacheMissCount.Add(ctx, 1)
	logging.FromContext(ctx).Info("Getting tile imagery", "cache", "miss")

	// A pending fetch for the same tile may already be cached; join it
	// instead of enqueueing. Enqueueing would be deduplicated anyway, but
	// only while the task is outstanding on this scheduler.
	pending, joined := cache.GetAs[*scheduler.Pending[[]byte]](provider.contentCache, pendingKey)
	if !joined {
		pending = provider.enqueueFetch(ctx, request, coords)
		provider.contentCache.Set(pendingKey, pending, cache.SetOptions{TTL: pendingTTL})
	}

	data, err := pending.Wait(ctx)

	if err != nil && errors.Is(err, e.ErrUpstreamTransient) {
		// Transient upstream failures get exactly one immediate retry. The
		// scheduler never retries on its own; this is a fresh task to it.
		provider.metrics.retryCount.Add(ctx, 1)
		logging.FromContext(ctx).Info("Retrying tile fetch after transient upstream error", "error", err.Error())

		pending = provider.enqueueFetch(ctx, request, coords)
		provider.contentCache.Set(pendingKey, pending, cache.SetOptions{TTL: pendingTTL})
		data, err = pending.Wait(ctx)
	}

	if err != nil {
		provider.contentCache.Delete(pendingKey)
		return nil, fmt.Errorf("failed to fetch tile: %w", err)
	}

	provider.storeBuffer(ctx, bufferKey, data)
	provider.contentCache.Delete(pendingKey)

	return data, nil
}

func (provider *imageryProvider) Loading() bool {
	return provider.scheduler.Loading()
}

func (provider *imageryProvider) Progress() float64 {
	return provider.scheduler.Progress()
}

func (provider *imageryProvider) enqueueFetch(ctx context.Context, request TileRequest, coords string) *scheduler.Pending[[]byte] {
	return provider.scheduler.Enqueue(ctx, scheduler.Task[[]byte]{
		ID: "tile:" + coords,
		Run: func(ctx context.Context) ([]byte, error) {
			return provider.source.GetTile(ctx, request.Layer, request.Z, request.X, request.Y)
		},
		ShouldExecute: request.ShouldExecute,
		Cancel:        request.Cancel,
	})
}

// storeBuffer caches data under its byte size. The buffer is never recycled
// on eviction: callers holding a slice handed out by GetTile must keep seeing
// the bytes they were given, so an evicted buffer just dies with its last
// reference and the disposal hook only records the release.
func (provider *imageryProvider) storeBuffer(ctx context.Context, bufferKey string, data []byte) {
	provider.contentCache.Set(bufferKey, data, cache.SetOptions{
		Size: uint64(len(data)),
		OnDelete: func(value any) {
			provider.metrics.buffersReleasedCount.Add(context.Background(), 1)
		},
	})
}

type imageryProviderMetricsCollection struct {
	cacheHitCount        metric.Int64Counter
	cacheMissCount       metric.Int64Counter
	retryCount           metric.Int64Counter
	buffersReleasedCount metric.Int64Counter
}

func setupImageryProviderMetrics(meter metric.Meter) (imageryProviderMetricsCollection, error) {
	cacheHitCount, err := meter.Int64Counter(
		"imageryprovider/cache_hits",
		metric.WithDescription("Tile requests served from the content cache"),
	)
	if err != nil {
		return imageryProviderMetricsCollection{}, fmt.Errorf("failed to create metric: %w", err)
	}

	cacheMissCount, err := meter.Int64Counter(
		"imageryprovider/cache_misses",
		metric.WithDescription("Tile requests that required an upstream fetch"),
	)
	if err != nil {
		return imageryProviderMetricsCollection{}, fmt.Errorf("failed to create metric: %w", err)
	}

	retryCount, err := meter.Int64Counter(
		"imageryprovider/transient_retries",
		metric.WithDescription("Fetches retried after a transient upstream error"),
	)
	if err != nil {
		return imageryProviderMetricsCollection{}, fmt.Errorf("failed to create metric: %w", err)
	}

	buffersReleasedCount, err := meter.Int64Counter(
		"imageryprovider/buffers_released",
		metric.WithDescription("Cached tile buffers released by eviction or expiry"),
	)
	if err != nil {
		return imageryProviderMetricsCollection{}, fmt.Errorf("failed to create metric: %w", err)
	}

	return imageryProviderMetricsCollection{
		cacheHitCount:        cacheHitCount,
		cacheMissCount:       cacheMissCount,
		retryCount:           retryCount,
		buffersReleasedCount: buffersReleasedCount,
	}, nil
}
