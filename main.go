package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Amund211/tilelight/internal/adapters/imageryprovider"
	"github.com/Amund211/tilelight/internal/adapters/tilesource"
	"github.com/Amund211/tilelight/internal/cache"
	"github.com/Amund211/tilelight/internal/config"
	"github.com/Amund211/tilelight/internal/logging"
	"github.com/Amund211/tilelight/internal/reporting"
	"github.com/Amund211/tilelight/internal/scheduler"
	"github.com/Amund211/tilelight/internal/server"
	"github.com/Amund211/tilelight/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	_ "golang.org/x/crypto/x509roots/fallback"
)

const serviceName = "tilelight"

func main() {
	instanceID := uuid.New().String()
	logger := slog.New(
		logging.NewTracingLogHandler(slog.NewJSONHandler(os.Stdout, nil)),
	).With("instanceID", instanceID)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	config, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}
	logger.Info("Loaded config", "config", config.NonSensitiveString())

	shutdownTelemetry, err := telemetry.SetupOTelSDK(context.Background(), serviceName)
	if err != nil {
		fail("Failed to initialize telemetry", "error", err.Error())
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			logger.Error("Failed to shut down telemetry", "error", err.Error())
		}
	}()

	sentryMiddleware, flush, err := reporting.NewSentryMiddlewareOrMock(config)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.Info("Initialized Sentry middleware")

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	tileSource, err := tilesource.NewHTTPTileSourceOrMock(config, httpClient)
	if err != nil {
		fail("Failed to initialize tile source", "error", err.Error())
	}
	logger.Info("Initialized tile source")

	requestScheduler, err := scheduler.New[[]byte](config.MaxConcurrentRequests())
	if err != nil {
		fail("Failed to initialize request scheduler", "error", err.Error())
	}

	contentCache := cache.New(config.CacheCapacityBytes())

	provider, err := imageryprovider.NewImageryProvider(tileSource, requestScheduler, contentCache)
	if err != nil {
		fail("Failed to initialize imagery provider", "error", err.Error())
	}
	logger.Info("Initialized imagery provider")

	http.HandleFunc(
		"GET /tile/{layer}/{z}/{x}/{y}",
		server.MakeGetTileHandler(
			provider,
			logger.With("port", "gettile"),
			sentryMiddleware,
		),
	)

	http.HandleFunc(
		"GET /status",
		server.MakeGetStatusHandler(
			provider,
			logger.With("port", "getstatus"),
			sentryMiddleware,
		),
	)

	logger.Info("Init complete")
	err = http.ListenAndServe(fmt.Sprintf(":%d", config.Port()), nil)
	if errors.Is(err, http.ErrServerClosed) {
		logger.Info("Server shutdown")
	} else {
		fail("Server error", "error", err.Error())
	}
}
