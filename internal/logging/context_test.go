package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/Amund211/tilelight/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logLines(t *testing.T, buffer *bytes.Buffer) []map[string]any {
	t.Helper()

	lines := []map[string]any{}
	decoder := json.NewDecoder(buffer)
	for decoder.More() {
		var line map[string]any
		require.NoError(t, decoder.Decode(&line))
		// Drop "time" as it is hard to match against
		delete(line, "time")
		lines = append(lines, line)
	}
	return lines
}

func TestFromContextReturnsStoredLogger(t *testing.T) {
	t.Parallel()

	buffer := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buffer, nil))

	ctx := logging.AddToContext(context.Background(), logger)

	logging.FromContext(ctx).Info("fetching tile", "layer", "osm")

	lines := logLines(t, buffer)
	require.Len(t, lines, 1)
	assert.Equal(t, "fetching tile", lines[0]["msg"])
	assert.Equal(t, "osm", lines[0]["layer"])
}

func TestFromContextFallsBackWithoutLogger(t *testing.T) {
	t.Parallel()

	logger := logging.FromContext(context.Background())
	require.NotNil(t, logger)
}

func TestAddMetaToContext(t *testing.T) {
	t.Parallel()

	buffer := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buffer, nil))

	ctx := logging.AddToContext(context.Background(), logger)
	ctx = logging.AddMetaToContext(ctx, slog.String("layer", "osm"), slog.Int("zoom", 12))

	logging.FromContext(ctx).Info("fetching tile")

	lines := logLines(t, buffer)
	require.Len(t, lines, 1)
	assert.Equal(t, "osm", lines[0]["layer"])
	assert.Equal(t, float64(12), lines[0]["zoom"])
}
