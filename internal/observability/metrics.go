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
	// Resolver metrics
	ResolveTierOutcomes *prometheus.CounterVec
	ResolveDuration     prometheus.Histogram
	SyntheticSeries     prometheus.Counter

	// Provider metrics
	ProviderRequests   *prometheus.CounterVec
	ProviderLatency    *prometheus.HistogramVec
	BreakerState       prometheus.Gauge
	BreakerTransitions *prometheus.CounterVec
	LiveFallbacks      prometheus.Counter

	// Alert evaluator metrics
	SweepsTotal     *prometheus.CounterVec
	SweepDuration   prometheus.Histogram
	AlertsTriggered prometheus.Counter
	AlertErrors     prometheus.Counter

	// Subscription hub metrics
	HubConnects          prometheus.Counter
	HubReconnects        prometheus.Counter
	HubMessagesDropped   prometheus.Counter
	HubUpdatesDispatched prometheus.Counter
	TriggersPublished    *prometheus.CounterVec
	ActiveSubscriptions  prometheus.Gauge

	// Health metrics
	LastSuccessfulSweep   prometheus.Gauge
	LastSuccessfulResolve prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "findash"
	}

	return &Metrics{
		// Resolver metrics
		ResolveTierOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "tier_outcomes_total",
			Help:      "Resolution attempts by tier and outcome",
		}, []string{"tier", "outcome"}),
		ResolveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "resolve_duration_seconds",
			Help:      "Time series resolution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		SyntheticSeries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "synthetic_series_total",
			Help:      "Total number of fully synthetic series generated",
		}),

		// Provider metrics
		ProviderRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Upstream provider requests by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		ProviderLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "request_latency_seconds",
			Help:      "Upstream provider request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		BreakerState: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		}),
		BreakerTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state transitions",
		}, []string{"from", "to"}),
		LiveFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "live_fallbacks_total",
			Help:      "Total number of live fetches served from the reference table",
		}),

		// Alert evaluator metrics
		SweepsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "sweeps_total",
			Help:      "Total number of alert sweeps by status",
		}, []string{"status"}),
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "sweep_duration_seconds",
			Help:      "Alert sweep duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		AlertsTriggered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "triggered_total",
			Help:      "Total number of alerts triggered",
		}),
		AlertErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "errors_total",
			Help:      "Total number of per-alert persistence failures",
		}),

		// Subscription hub metrics
		HubConnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "connects_total",
			Help:      "Total number of successful feed connections",
		}),
		HubReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "reconnects_total",
			Help:      "Total number of reconnect attempts scheduled",
		}),
		HubMessagesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "messages_dropped_total",
			Help:      "Total number of malformed or unrecognized feed messages dropped",
		}),
		HubUpdatesDispatched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "updates_dispatched_total",
			Help:      "Total number of rate updates dispatched to handlers",
		}),
		TriggersPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "triggers_published_total",
			Help:      "Total number of trigger events published by outcome",
		}, []string{"outcome"}),
		ActiveSubscriptions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "active_subscriptions",
			Help:      "Current number of registered rate subscriptions",
		}),

		// Health metrics
		LastSuccessfulSweep: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_sweep_timestamp",
			Help:      "Unix timestamp of last completed alert sweep",
		}),
		LastSuccessfulResolve: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_resolve_timestamp",
			Help:      "Unix timestamp of last completed series resolution",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTierOutcome records a resolution tier attempt.
func RecordTierOutcome(tier, outcome string) {
	DefaultMetrics.ResolveTierOutcomes.WithLabelValues(tier, outcome).Inc()
}

// RecordResolve records a completed resolution.
func RecordResolve(seconds float64, nowUnix int64) {
	DefaultMetrics.ResolveDuration.Observe(seconds)
	DefaultMetrics.LastSuccessfulResolve.Set(float64(nowUnix))
}

// RecordSyntheticSeries increments the synthetic series counter.
func RecordSyntheticSeries() {
	DefaultMetrics.SyntheticSeries.Inc()
}

// RecordProviderRequest records an upstream request outcome and latency.
func RecordProviderRequest(endpoint, outcome string, seconds float64) {
	DefaultMetrics.ProviderRequests.WithLabelValues(endpoint, outcome).Inc()
	DefaultMetrics.ProviderLatency.WithLabelValues(endpoint).Observe(seconds)
}

// RecordBreakerTransition records a circuit breaker state change.
func RecordBreakerTransition(from, to string, stateValue float64) {
	DefaultMetrics.BreakerTransitions.WithLabelValues(from, to).Inc()
	DefaultMetrics.BreakerState.Set(stateValue)
}

// RecordLiveFallback increments the reference-table fallback counter.
func RecordLiveFallback() {
	DefaultMetrics.LiveFallbacks.Inc()
}

// RecordSweep records a completed or skipped alert sweep.
func RecordSweep(status string, seconds float64, nowUnix int64) {
	DefaultMetrics.SweepsTotal.WithLabelValues(status).Inc()
	if status == "completed" {
		DefaultMetrics.SweepDuration.Observe(seconds)
		DefaultMetrics.LastSuccessfulSweep.Set(float64(nowUnix))
	}
}

// RecordAlertTriggered increments the triggered alert counter.
func RecordAlertTriggered() {
	DefaultMetrics.AlertsTriggered.Inc()
}

// RecordAlertError increments the per-alert failure counter.
func RecordAlertError() {
	DefaultMetrics.AlertErrors.Inc()
}

// RecordHubConnect increments the successful connection counter.
func RecordHubConnect() {
	DefaultMetrics.HubConnects.Inc()
}

// RecordHubReconnect increments the reconnect attempt counter.
func RecordHubReconnect() {
	DefaultMetrics.HubReconnects.Inc()
}

// RecordHubMessageDropped increments the dropped message counter.
func RecordHubMessageDropped() {
	DefaultMetrics.HubMessagesDropped.Inc()
}

// RecordHubUpdateDispatched increments the dispatched update counter.
func RecordHubUpdateDispatched() {
	DefaultMetrics.HubUpdatesDispatched.Inc()
}

// RecordTriggerPublished records a trigger publish attempt.
func RecordTriggerPublished(outcome string) {
	DefaultMetrics.TriggersPublished.WithLabelValues(outcome).Inc()
}

// SetActiveSubscriptions updates the subscription gauge.
func SetActiveSubscriptions(n int) {
	DefaultMetrics.ActiveSubscriptions.Set(float64(n))
}
