package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Content metrics
	UsersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "forkful_users_total",
			Help: "Total number of registered users",
		},
	)

	RecipesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "forkful_recipes_total",
			Help: "Total number of recipes",
		},
	)

	RecipeWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forkful_recipe_writes_total",
			Help: "Recipe mutations by operation (create, update, delete, fork)",
		},
		[]string{"operation"},
	)

	// HTTP metrics
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forkful_http_requests_total",
			Help: "Total number of HTTP requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forkful_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	RateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forkful_http_rate_limited_total",
			Help: "Requests rejected by the per-client rate limiter",
		},
	)

	// Change feed metrics
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forkful_events_published_total",
			Help: "Change events published by table and operation",
		},
		[]string{"table", "op"},
	)

	EventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forkful_events_dropped_total",
			Help: "Change events dropped because a subscriber buffer was full",
		},
	)

	RealtimeSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "forkful_realtime_subscribers",
			Help: "Number of active change feed subscribers",
		},
	)

	NotificationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forkful_notifications_created_total",
			Help: "Notifications written by kind",
		},
		[]string{"kind"},
	)

	// Scaler metrics
	ScaleRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forkful_scale_requests_total",
			Help: "Recipe views rendered with a scale factor other than 1",
		},
	)

	// Cache metrics
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forkful_cache_lookups_total",
			Help: "Cache lookups by cache name and result (hit, miss)",
		},
		[]string{"cache", "result"},
	)

	// Housekeeping metrics
	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "forkful_reconciliation_duration_seconds",
			Help:    "Time taken by one housekeeping cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forkful_reconciliation_cycles_total",
			Help: "Total number of housekeeping cycles",
		},
	)

	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "forkful_sessions_active",
			Help: "Number of live login sessions",
		},
	)

	SessionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forkful_sessions_expired_total",
			Help: "Login sessions removed after expiry",
		},
	)

	// Media metrics
	MediaBytesWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forkful_media_bytes_written_total",
			Help: "Bytes written to the media store",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(UsersTotal)
	prometheus.MustRegister(RecipesTotal)
	prometheus.MustRegister(RecipeWritesTotal)
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(RateLimitedTotal)
	prometheus.MustRegister(EventsPublished)
	prometheus.MustRegister(EventsDropped)
	prometheus.MustRegister(RealtimeSubscribers)
	prometheus.MustRegister(NotificationsCreated)
	prometheus.MustRegister(ScaleRequestsTotal)
	prometheus.MustRegister(CacheLookups)
	prometheus.MustRegister(MediaBytesWritten)
	prometheus.MustRegister(ReconciliationDuration)
	prometheus.MustRegister(ReconciliationCyclesTotal)
	prometheus.MustRegister(SessionsActive)
	prometheus.MustRegister(SessionsExpiredTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
