package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	e "github.com/Amund211/tilelight/internal/errors"
	"github.com/Amund211/tilelight/internal/reporting"
)

// writeErrorResponse maps an error to a status code, writes the JSON error
// body and returns the status code that was written.
func writeErrorResponse(ctx context.Context, w http.ResponseWriter, responseError error) int {
	w.Header().Set("Content-Type", "application/json")

	response := errorResponse{
		Success: false,
		Cause:   responseError.Error(),
	}
	errorBytes, err := json.Marshal(response)
	if err != nil {
		reporting.Report(ctx, fmt.Errorf("failed to marshal error response: %w", err))
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success":false,"cause":"Internal server error (tilelight)"}`))
		return http.StatusInternalServerError
	}

	// Unknown error: default to 500
	statusCode := http.StatusInternalServerError

	if errors.Is(responseError, e.ErrBadTileRequest) || errors.Is(responseError, e.ErrInvalidTaskID) {
		statusCode = http.StatusBadRequest
	} else if errors.Is(responseError, e.ErrTileNotFound) {
		statusCode = http.StatusNotFound
	} else if errors.Is(responseError, e.RatelimitExceededError) {
		statusCode = http.StatusTooManyRequests
	} else if errors.Is(responseError, e.ErrUpstreamTransient) || errors.Is(responseError, e.ErrUpstreamError) {
		statusCode = http.StatusBadGateway
	} else if errors.Is(responseError, e.ErrTaskAborted) {
		statusCode = http.StatusServiceUnavailable
	}

	w.WriteHeader(statusCode)
	w.Write(errorBytes)
	return statusCode
}
