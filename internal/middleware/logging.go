package middleware

import (
	"net/http"
	"time"

	"payoutdesk/internal/domain"
	"payoutdesk/pkg/logger"
)

// LoggingMiddleware records basic request metrics using the provided logger.
type LoggingMiddleware struct {
	logger logger.Logger
}

// NewLoggingMiddleware constructs a LoggingMiddleware.
func NewLoggingMiddleware(log logger.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{logger: log}
}

// Log wraps handlers with structured request/response logging.
func (m *LoggingMiddleware) Log(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		fields := map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      wrapped.statusCode,
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          r.RemoteAddr,
			"request_id":  RequestIDFromContext(r.Context()),
		}
		if p := wrapped.principal; p != nil {
			fields["user_id"] = p.ID
			fields["role"] = p.Role
		}

		switch {
		case wrapped.statusCode >= http.StatusInternalServerError:
			m.logger.Error("HTTP Request", fields)
		case wrapped.statusCode >= http.StatusBadRequest:
			m.logger.Warn("HTTP Request", fields)
		default:
			m.logger.Info("HTTP Request", fields)
		}
	})
}

// responseWriter captures the status code, and the principal once
// Authenticate has resolved it, for the request log line.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
	principal   *domain.Principal
}

func (w *responseWriter) WriteHeader(statusCode int) {
	if !w.wroteHeader {
		w.statusCode = statusCode
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}
