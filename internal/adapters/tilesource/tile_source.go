package tilesource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Amund211/tilelight/internal/config"
	e "github.com/Amund211/tilelight/internal/errors"
	"github.com/Amund211/tilelight/internal/logging"
	"github.com/Amund211/tilelight/internal/reporting"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const userAgent = "tilelight/0.1.0 (+https://github.com/Amund211/tilelight)"

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// TileSource fetches raw tile data for one layer/z/x/y address.
type TileSource interface {
	GetTile(ctx context.Context, layer string, z, x, y int) ([]byte, error)
}

type httpTileSource struct {
	httpClient  HttpClient
	urlTemplate string
	tracer      trace.Tracer
}

// NewHTTPTileSource fetches tiles from an XYZ server. urlTemplate contains
// {layer}, {z}, {x} and {y} placeholders.
func NewHTTPTileSource(httpClient HttpClient, urlTemplate string) TileSource {
	return &httpTileSource{
		httpClient:  httpClient,
		urlTemplate: urlTemplate,
		tracer:      otel.Tracer("tilesource/http"),
	}
}

func (source *httpTileSource) GetTile(ctx context.Context, layer string, z, x, y int) ([]byte, error) {
	logger := logging.FromContext(ctx)
	url := source.tileURL(layer, z, x, y)

	ctx, span := source.tracer.Start(ctx, "GetTile",
		trace.WithAttributes(
			attribute.String("tile.layer", layer),
			attribute.Int("tile.z", z),
			attribute.Int("tile.x", x),
			attribute.Int("tile.y", y),
		),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		logger.Error(err.Error())
		reporting.Report(ctx, err)
		return nil, err
	}

	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := source.httpClient.Do(req)
	if err != nil {
		// The transport never saw a response; treat it as retryable
		err := fmt.Errorf("%w: failed to send request: %w", e.ErrUpstreamTransient, err)
		logger.Error(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		err := fmt.Errorf("%w: failed to read response body: %w", e.ErrUpstreamTransient, err)
		logger.Error(err.Error())
		return nil, err
	}

	logger.Info("upstream tile request completed", "url", url, "status", resp.StatusCode, "duration", time.Since(start).String())

	switch {
	case resp.StatusCode == http.StatusOK:
		return data, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %q", e.ErrTileNotFound, fmt.Sprintf("%s/%d/%d/%d", layer, z, x, y))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: upstream returned status %d", e.ErrUpstreamTransient, resp.StatusCode)
	default:
		err := fmt.Errorf("%w: upstream returned status %d", e.ErrUpstreamError, resp.StatusCode)
		reporting.Report(ctx, err, map[string]string{
			"url": url,
		})
		return nil, err
	}
}

func (source *httpTileSource) tileURL(layer string, z, x, y int) string {
	return strings.NewReplacer(
		"{layer}", layer,
		"{z}", strconv.Itoa(z),
		"{x}", strconv.Itoa(x),
		"{y}", strconv.Itoa(y),
	).Replace(source.urlTemplate)
}

type mockedTileSource struct{}

func (source *mockedTileSource) GetTile(ctx context.Context, layer string, z, x, y int) ([]byte, error) {
	return []byte(fmt.Sprintf("mock tile %s/%d/%d/%d", layer, z, x, y)), nil
}

func NewHTTPTileSourceOrMock(config config.Config, httpClient HttpClient) (TileSource, error) {
	if config.UpstreamURLTemplate() != "" {
		return NewHTTPTileSource(httpClient, config.UpstreamURLTemplate()), nil
	}
	if config.IsDevelopment() {
		return &mockedTileSource{}, nil
	}
	return nil, fmt.Errorf("Missing upstream url template in non-development environment")
}
