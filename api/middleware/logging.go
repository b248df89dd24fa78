package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/driveaway-backend/pkg/logger"
)

// responseMeter captures what the handler wrote.
type responseMeter struct {
	http.ResponseWriter
	code    int
	written int
}

func (m *responseMeter) WriteHeader(code int) {
	if m.code == 0 {
		m.code = code
	}
	m.ResponseWriter.WriteHeader(code)
}

func (m *responseMeter) Write(p []byte) (int, error) {
	if m.code == 0 {
		m.code = http.StatusOK
	}
	n, err := m.ResponseWriter.Write(p)
	m.written += n
	return n, err
}

func (m *responseMeter) status() int {
	if m.code == 0 {
		return http.StatusOK
	}
	return m.code
}

var probePaths = map[string]bool{
	"/metrics":      true,
	"/health/live":  true,
	"/health/ready": true,
}

// Logging writes one "request.complete" line per request. Probes log at
// debug and 5xx responses at warn; the error itself is logged by
// responses.WriteError.
func Logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logg == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ctx := logg.WithFields(r.Context(), map[string]any{
				"method":     r.Method,
				"path":       r.URL.Path,
				"remote_ip":  r.RemoteAddr,
				"user_agent": r.UserAgent(),
			})
			meter := &responseMeter{ResponseWriter: w}
			next.ServeHTTP(meter, r.WithContext(ctx))

			summary := map[string]any{
				"status":      meter.status(),
				"bytes":       meter.written,
				"duration_ms": time.Since(started).Milliseconds(),
			}
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				summary["route"] = rc.RoutePattern()
			}
			ctx = logg.WithFields(ctx, summary)

			switch {
			case probePaths[r.URL.Path]:
				logg.Debug(ctx, "request.complete")
			case meter.status() >= http.StatusInternalServerError:
				logg.Warn(ctx, "request.complete")
			default:
				logg.Info(ctx, "request.complete")
			}
		})
	}
}
