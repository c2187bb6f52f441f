package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	lvl, ok := ParseLevel("DEBUG")
	assert.True(t, ok)
	assert.Equal(t, slog.LevelDebug, lvl)

	lvl, ok = ParseLevel("verbose")
	assert.False(t, ok)
	assert.Equal(t, slog.LevelInfo, lvl)
}

func TestNewWritesJSONWithRFC3339Time(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "info")
	l.Debug("hidden")
	l.Info("transfer executed", "amount", 1000)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "transfer executed", entry["msg"])
	assert.EqualValues(t, 1000, entry["amount"])
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T`, entry["time"])
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "info").With("requestID", "abc")
	ctx := ToContext(context.Background(), l)

	assert.Same(t, l, FromContext(ctx))
	assert.Same(t, L, FromContext(context.Background()))
}
