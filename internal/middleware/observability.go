package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"wablast/internal/httputil"
	"wablast/internal/metrics"
	"wablast/internal/tracing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// responseWrapper captures the status code and body size for logging.
type responseWrapper struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWrapper) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// Observability instruments every request with tracing context, an
// OpenTelemetry span, request metrics and a structured access log line.
func Observability(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := tracing.WithFullTracing(r.Context())
			ctx, span := tracing.WithOtelTracing(ctx, fmt.Sprintf("HTTP %s %s", r.Method, routePattern(r)))
			defer span.End()

			tracing.AddSpanAttributes(ctx,
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
			)

			wrapped := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			duration := time.Since(start)
			pattern := routePattern(r)
			labels := map[string]string{
				"method": r.Method,
				"path":   pattern,
				"status": strconv.Itoa(wrapped.statusCode),
			}
			metrics.IncrementCounter("http_requests_total", labels, "HTTP requests served")
			metrics.RecordTimer("http_request_duration", duration, map[string]string{
				"method": r.Method,
				"path":   pattern,
			}, "HTTP request latency")

			if wrapped.statusCode >= http.StatusInternalServerError {
				tracing.SetSpanStatus(ctx, codes.Error, http.StatusText(wrapped.statusCode))
			}

			entry := logger.WithFields(logrus.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      wrapped.statusCode,
				"duration_ms": duration.Milliseconds(),
				"size_bytes":  wrapped.bytesWritten,
				"remote_ip":   httputil.GetClientIP(r),
				"request_id":  tracing.GetRequestID(ctx),
				"trace_id":    tracing.GetTraceID(ctx),
			})
			if wrapped.statusCode >= http.StatusInternalServerError {
				entry.Error("Request failed")
			} else {
				entry.Info("Request handled")
			}
		})
	}
}

// routePattern prefers the mux route template so metrics do not explode in
// cardinality on path parameters.
func routePattern(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if pattern, err := route.GetPathTemplate(); err == nil {
			return pattern
		}
	}
	return r.URL.Path
}
