package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

// quietPrefixes are polled by probes and scrapers and only logged on failure.
var quietPrefixes = []string{"/health/", "/metrics"}

// Logging emits one access line per request, leveled by response status.
func Logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logg == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			began := time.Now()
			rec := newRecorder(w, false)
			ctx := logg.WithFields(r.Context(), map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
			})
			r = r.WithContext(ctx)

			next.ServeHTTP(rec, r)

			status := rec.Status()
			if status < http.StatusInternalServerError && isQuiet(r.URL.Path) {
				return
			}
			ctx = logg.WithFields(ctx, map[string]any{
				"route":       routePattern(r),
				"status":      status,
				"bytes":       rec.written,
				"duration_ms": time.Since(began).Milliseconds(),
			})
			switch {
			case status >= http.StatusInternalServerError:
				logg.Warn(ctx, "http.request.failed")
			case status >= http.StatusBadRequest:
				logg.Info(logg.WithField(ctx, "client_error", true), "http.request")
			default:
				logg.Info(ctx, "http.request")
			}
		})
	}
}

func isQuiet(path string) bool {
	for _, prefix := range quietPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
