// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spacedesk_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spacedesk_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "spacedesk_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)

	// API errors by kind: validation, not_found, conflict, forbidden,
	// storage, internal.
	APIErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spacedesk_api_errors_total",
			Help: "Total number of error responses by error kind",
		},
		[]string{"kind"},
	)

	// Favorites and collections
	FavoriteMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spacedesk_favorite_mutations_total",
			Help: "Favorite writes by operation (added, replaced, removed)",
		},
		[]string{"op", "item_type"},
	)

	CollectionMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spacedesk_collection_mutations_total",
			Help: "Collection writes by operation (created, updated, deleted, item_added, item_removed)",
		},
		[]string{"op"},
	)
)

// RecordHTTPRequest records one finished request. route is the chi route
// pattern, never the raw path, to keep label cardinality bounded.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func RecordAPIError(kind string) {
	APIErrorsTotal.WithLabelValues(kind).Inc()
}

func RecordFavoriteMutation(op, itemType string) {
	FavoriteMutations.WithLabelValues(op, itemType).Inc()
}

func RecordCollectionMutation(op string) {
	CollectionMutations.WithLabelValues(op).Inc()
}
