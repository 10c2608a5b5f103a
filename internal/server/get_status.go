package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Amund211/tilelight/internal/adapters/imageryprovider"
	"github.com/Amund211/tilelight/internal/logging"
	"github.com/Amund211/tilelight/internal/reporting"
)

// MakeGetStatusHandler reports whether tile fetches are in flight and how far
// along the current batch is.
func MakeGetStatusHandler(
	provider imageryprovider.ImageryProvider,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := ComposeMiddlewares(
		buildMetricsMiddleware("get_status"),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		response := statusResponse{
			Loading:  provider.Loading(),
			Progress: provider.Progress(),
		}

		marshalled, err := json.Marshal(response)
		if err != nil {
			reporting.Report(ctx, fmt.Errorf("failed to marshal status response: %w", err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"success":false,"cause":"Internal server error (tilelight)"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(marshalled)
	}

	return middleware(handler)
}
