package middleware

import (
	"log/slog"
	"net/http"

	"github.com/alex-osman/language-learning-sub001/internal/api/shared"
)

// TraceMiddleware assigns each request a trace ID for log correlation.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, traceID := shared.SetTraceID(r.Context())

		slog.Debug("request started",
			"trace_id", traceID,
			"path", r.URL.Path,
			"method", r.Method)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
