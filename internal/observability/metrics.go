// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Feed metrics
	EventsReceived  *prometheus.CounterVec
	EventsMalformed prometheus.Counter
	FeedReconnects  prometheus.Counter

	// Watch list metrics
	TokensAdmitted  prometheus.Counter
	TokensRejected  prometheus.Counter
	TokensFinalized prometheus.Counter
	TokensWatched   prometheus.Gauge

	// Tick metrics
	TicksTotal     prometheus.Counter
	TickDuration   prometheus.Histogram
	ModuleScans    *prometheus.CounterVec
	ModuleFailures *prometheus.CounterVec
	Detections     *prometheus.CounterVec

	// Verdict metrics
	VerdictsReleased *prometheus.CounterVec

	// Provider metrics
	ProviderCalls    *prometheus.CounterVec
	ProviderFailures *prometheus.CounterVec
	ProvidersLive    prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "token_spam_detector"
	}

	return &Metrics{
		// Feed metrics
		EventsReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "events_received_total",
			Help:      "Total number of decoded events received by type",
		}, []string{"event_type"}),
		EventsMalformed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "events_malformed_total",
			Help:      "Total number of feed messages dropped as malformed",
		}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of feed reconnect attempts",
		}),

		// Watch list metrics
		TokensAdmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watchlist",
			Name:      "tokens_admitted_total",
			Help:      "Total number of tokens admitted to the watch list",
		}),
		TokensRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watchlist",
			Name:      "tokens_rejected_total",
			Help:      "Total number of contracts rejected at admission",
		}),
		TokensFinalized: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watchlist",
			Name:      "tokens_finalized_total",
			Help:      "Total number of tokens whose verdicts finalized",
		}),
		TokensWatched: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "watchlist",
			Name:      "tokens_watched",
			Help:      "Current number of tokens on the watch list",
		}),

		// Tick metrics
		TicksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "ticks_total",
			Help:      "Total number of evaluation ticks",
		}),
		TickDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "tick_duration_seconds",
			Help:      "Tick duration from dispatch to join in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		ModuleScans: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "module_scans_total",
			Help:      "Total number of module scans by module",
		}, []string{"module"}),
		ModuleFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "module_failures_total",
			Help:      "Total number of isolated module scan failures by module",
		}, []string{"module"}),
		Detections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "detections_total",
			Help:      "Total number of module detections by module",
		}, []string{"module"}),

		// Verdict metrics
		VerdictsReleased: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "verdicts_released_total",
			Help:      "Total number of released verdicts by outcome",
		}, []string{"is_spam", "is_finalized"}),

		// Provider metrics
		ProviderCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Total number of chain calls by method",
		}, []string{"method"}),
		ProviderFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "failures_total",
			Help:      "Total number of failed chain calls by method",
		}, []string{"method"}),
		ProvidersLive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "live",
			Help:      "Number of providers currently in rotation",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordEventReceived increments the received-events counter.
func RecordEventReceived(eventType string) {
	DefaultMetrics.EventsReceived.WithLabelValues(eventType).Inc()
}

// RecordTokenAdmitted increments the admitted-tokens counter.
func RecordTokenAdmitted() {
	DefaultMetrics.TokensAdmitted.Inc()
}

// RecordTokenRejected increments the rejected-tokens counter.
func RecordTokenRejected() {
	DefaultMetrics.TokensRejected.Inc()
}

// UpdateTokensWatched updates the watch list size gauge.
func UpdateTokensWatched(n int) {
	DefaultMetrics.TokensWatched.Set(float64(n))
}

// RecordTick records one tick and its dispatch-to-join duration.
func RecordTick(seconds float64) {
	DefaultMetrics.TicksTotal.Inc()
	DefaultMetrics.TickDuration.Observe(seconds)
}

// RecordVerdict records a released verdict.
func RecordVerdict(isSpam, isFinalized bool) {
	DefaultMetrics.VerdictsReleased.WithLabelValues(
		boolLabel(isSpam), boolLabel(isFinalized)).Inc()
	if isFinalized {
		DefaultMetrics.TokensFinalized.Inc()
	}
}

// RecordModuleScan records one module scan together with its outcome.
func RecordModuleScan(module string, failed, detected bool) {
	DefaultMetrics.ModuleScans.WithLabelValues(module).Inc()
	if failed {
		DefaultMetrics.ModuleFailures.WithLabelValues(module).Inc()
	}
	if detected {
		DefaultMetrics.Detections.WithLabelValues(module).Inc()
	}
}

// RecordProviderCall records one chain call routed through the provider pool.
func RecordProviderCall(method string, err error) {
	DefaultMetrics.ProviderCalls.WithLabelValues(method).Inc()
	if err != nil {
		DefaultMetrics.ProviderFailures.WithLabelValues(method).Inc()
	}
}

// UpdateProvidersLive updates the in-rotation providers gauge.
func UpdateProvidersLive(n int) {
	DefaultMetrics.ProvidersLive.Set(float64(n))
}

// RecordEventMalformed increments the dropped-messages counter.
func RecordEventMalformed() {
	DefaultMetrics.EventsMalformed.Inc()
}

// RecordFeedReconnect increments the reconnect-attempts counter.
func RecordFeedReconnect() {
	DefaultMetrics.FeedReconnects.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
