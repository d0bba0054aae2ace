package otel

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPMiddleware wraps handlers with otelhttp server instrumentation. Route
// patterns are recorded as the span name.
func HTTPMiddleware(next http.Handler) http.Handler {
	return otelhttp.NewHandler(next, "taskgrid.http",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}))
}
