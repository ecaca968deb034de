package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" warn "))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestNewJSONCarriesServiceAttr(t *testing.T) {
	var buf bytes.Buffer
	logger := New("user-service", &buf, Options{Level: "debug"})
	logger.Debug("hello", "k", "v")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "user-service", record["service"])
	assert.Equal(t, "hello", record["msg"])
	assert.Equal(t, "v", record["k"])
}

func TestNewFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New("user-service", &buf, Options{Level: "warn"})
	logger.Info("dropped")
	assert.Zero(t, buf.Len())
}

func TestWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	base := New("user-service", &buf, Options{})

	var captured context.Context
	h := middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		captured = r.Context()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	WithRequestID(captured, base).Info("tagged")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.NotEmpty(t, record["requestId"])
}

func TestNewLoggerHonoursLevel(t *testing.T) {
	ctx := context.Background()

	debug := NewLogger("user-service", Options{Level: "debug", Format: "text"})
	assert.True(t, debug.Enabled(ctx, slog.LevelDebug))

	quiet := NewLogger("user-service", Options{Level: "error"})
	assert.False(t, quiet.Enabled(ctx, slog.LevelWarn))
	assert.True(t, quiet.Enabled(ctx, slog.LevelError))
}
