// Package middleware provides the HTTP middleware vecta serve wraps its
// routes in: request IDs, Prometheus metrics and request timeouts.
package middleware

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Adithya-Monish-Kumar-K/vecta/pkg/metrics"
)

// Routes are the paths reported under their own route label. Every other
// path is counted as "other" so scanners cannot blow up label cardinality.
var Routes = []string{
	"/api/v1/search",
	"/api/v1/stats",
	"/api/v1/cache/stats",
	"/api/v1/cache/invalidate",
	"/health/live",
	"/health/ready",
	"/metrics",
}

const otherRoute = "other"

// Metrics instruments next with request counts, latency and the in-flight
// gauge of m.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		byRoute := make(map[string]http.Handler, len(Routes)+1)
		for _, route := range append([]string{otherRoute}, Routes...) {
			labels := prometheus.Labels{"route": route}
			byRoute[route] = promhttp.InstrumentHandlerDuration(
				m.HTTPRequestDuration.MustCurryWith(labels),
				promhttp.InstrumentHandlerCounter(m.HTTPRequestsTotal.MustCurryWith(labels), next),
			)
		}
		return promhttp.InstrumentHandlerInFlight(m.HTTPRequestsInFlight,
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				h, ok := byRoute[r.URL.Path]
				if !ok {
					h = byRoute[otherRoute]
				}
				h.ServeHTTP(w, r)
			}))
	}
}
