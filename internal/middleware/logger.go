package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/mmeshcher/projectdesk/internal/metrics"
)

// Logger логирует каждый запрос и записывает его длительность в метрики.
func Logger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			latency := time.Since(start)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			metrics.RecordHTTPRequestDuration(r.Method, route, strconv.Itoa(status), latency)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("size", ww.BytesWritten()),
				zap.Duration("latency", latency),
				zap.String("request_id", GetRequestID(r.Context())),
			}

			switch {
			case status >= http.StatusInternalServerError:
				logger.Error("request completed", fields...)
			case status >= http.StatusBadRequest:
				logger.Warn("request completed", fields...)
			default:
				logger.Info("request completed", fields...)
			}
		})
	}
}
