package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Amund211/tilelight/internal/adapters/imageryprovider"
	e "github.com/Amund211/tilelight/internal/errors"
	"github.com/Amund211/tilelight/internal/logging"
	"github.com/Amund211/tilelight/internal/ratelimiting"
)

const maxZoomLevel = 30

// MakeGetTileHandler serves single tiles from /tile/{layer}/{z}/{x}/{y}.
func MakeGetTileHandler(
	provider imageryprovider.ImageryProvider,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	ipLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(120),
		ratelimiting.BurstSize(480),
	)
	ipRateLimiter := ratelimiting.NewRequestBasedRateLimiter(
		ipLimiter,
		ratelimiting.IPKeyFunc,
	)

	middleware := ComposeMiddlewares(
		buildMetricsMiddleware("get_tile"),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		NewRateLimitMiddleware(ipRateLimiter),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx)

		request, err := tileRequestFromPath(r)
		if err != nil {
			statusCode := writeErrorResponse(ctx, w, err)
			logger.Info("Returning response", "statusCode", statusCode, "reason", "invalid tile path")
			return
		}

		data, err := provider.GetTile(ctx, request)
		if err != nil {
			statusCode := writeErrorResponse(ctx, w, err)
			logger.Info("Returning response", "statusCode", statusCode, "error", err.Error())
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
		logger.Info("Returning response", "statusCode", http.StatusOK, "bytes", len(data))
	}

	return middleware(handler)
}

func tileRequestFromPath(r *http.Request) (imageryprovider.TileRequest, error) {
	layer := r.PathValue("layer")
	if layer == "" {
		return imageryprovider.TileRequest{}, fmt.Errorf("%w: missing layer", e.ErrBadTileRequest)
	}

	z, err := strconv.Atoi(r.PathValue("z"))
	if err != nil || z < 0 || z > maxZoomLevel {
		return imageryprovider.TileRequest{}, fmt.Errorf("%w: invalid zoom level %q", e.ErrBadTileRequest, r.PathValue("z"))
	}

	x, err := strconv.Atoi(r.PathValue("x"))
	if err != nil || x < 0 || x >= 1<<z {
		return imageryprovider.TileRequest{}, fmt.Errorf("%w: invalid x coordinate %q", e.ErrBadTileRequest, r.PathValue("x"))
	}

	y, err := strconv.Atoi(r.PathValue("y"))
	if err != nil || y < 0 || y >= 1<<z {
		return imageryprovider.TileRequest{}, fmt.Errorf("%w: invalid y coordinate %q", e.ErrBadTileRequest, r.PathValue("y"))
	}

	return imageryprovider.TileRequest{
		Layer:  layer,
		Z:      z,
		X:      x,
		Y:      y,
		Cancel: r.Context().Done(),
	}, nil
}
