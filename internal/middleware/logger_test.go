package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_LevelByStatus(t *testing.T) {
	tests := []struct {
		name  string
		code  int
		level zapcore.Level
	}{
		{name: "ok", code: http.StatusOK, level: zapcore.InfoLevel},
		{name: "not found", code: http.StatusNotFound, level: zapcore.WarnLevel},
		{name: "internal", code: http.StatusInternalServerError, level: zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			h := RequestID(Logger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
			})))

			req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
			req.Header.Set(RequestIDHeader, "req-1")
			h.ServeHTTP(httptest.NewRecorder(), req)

			entries := logs.All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.level, entries[0].Level)

			fields := entries[0].ContextMap()
			assert.Equal(t, "req-1", fields["request_id"])
			assert.Equal(t, int64(tt.code), fields["status"])
		})
	}
}

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
}
