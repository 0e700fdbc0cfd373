package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// Logger logs every request once it completes.
func Logger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			attrs := []any{
				"method", r.Method,
				"route", routePattern(r),
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", RequestIDFrom(r.Context()),
			}
			switch {
			case rec.status >= 500:
				log.Error("request failed", attrs...)
			case rec.status >= 400:
				log.Warn("request rejected", attrs...)
			default:
				log.Info("request ok", attrs...)
			}
		})
	}
}
