// Package metrics exposes Prometheus metrics for keeper clients.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/keeper-client/keeper-go/pkg/event"
	"github.com/keeper-client/keeper-go/pkg/fault"
)

// Connect attempt results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Resumption results.
const (
	ResumeResumed  = "resumed"
	ResumeRejected = "rejected"
)

// Collector records connection, dispatch and retry metrics. A nil Collector
// is valid and records nothing. It is safe for concurrent use.
type Collector struct {
	connectAttempts *prometheus.CounterVec
	connectDuration prometheus.Histogram
	resumptions     *prometheus.CounterVec
	expirations     prometheus.Counter

	notifications   *prometheus.CounterVec
	watcherPanics   prometheus.Counter
	queueDepth      prometheus.Gauge
	watchers        prometheus.Gauge
	retryDecisions  *prometheus.CounterVec
	connectionState prometheus.Gauge
}

// NewCollector creates a collector on the default registerer.
func NewCollector() *Collector {
	return NewCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector using the supplied registerer.
// Registering two collectors on one registerer panics.
func NewCollectorWithRegistry(registry prometheus.Registerer) *Collector {
	factory := promauto.With(registry)
	return &Collector{
		connectAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keeper_connect_attempts_total",
				Help: "Total number of session connect attempts",
			},
			[]string{"result"},
		),
		connectDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "keeper_connect_duration_seconds",
				Help:    "Duration of session connect attempts in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		resumptions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keeper_session_resumptions_total",
				Help: "Total number of session resumption attempts",
			},
			[]string{"result"},
		),
		expirations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "keeper_session_expirations_total",
				Help: "Total number of expired sessions",
			},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keeper_notifications_dispatched_total",
				Help: "Total number of notifications delivered to watchers",
			},
			[]string{"type"},
		),
		watcherPanics: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "keeper_watcher_panics_total",
				Help: "Total number of watcher invocations that panicked",
			},
		),
		queueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "keeper_dispatch_queue_depth",
				Help: "Number of notifications waiting for delivery",
			},
		),
		watchers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "keeper_registered_watchers",
				Help: "Number of registered watchers",
			},
		),
		retryDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keeper_retry_decisions_total",
				Help: "Total number of retry classifications",
			},
			[]string{"code", "verdict"},
		),
		connectionState: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "keeper_connection_state",
				Help: "Current connection state (0=disconnected, 1=connecting, 2=connected)",
			},
		),
	}
}

// RecordConnect records the outcome and duration of a connect attempt.
// resumed reports whether the attempt tried to resume a cached session and
// reused reports whether the ensemble accepted it.
func (c *Collector) RecordConnect(err error, duration time.Duration, resumed, reused bool) {
	if c == nil {
		return
	}

	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	c.connectAttempts.WithLabelValues(result).Inc()
	c.connectDuration.Observe(duration.Seconds())

	if resumed {
		if err == nil && reused {
			c.resumptions.WithLabelValues(ResumeResumed).Inc()
		} else {
			c.resumptions.WithLabelValues(ResumeRejected).Inc()
		}
	}
}

// RecordNotification counts session-level expirations. Other notifications
// are counted on delivery.
func (c *Collector) RecordNotification(n event.Notification) {
	if c == nil {
		return
	}
	if n.IsExpired() {
		c.expirations.Inc()
	}
}

// RecordDelivered counts a notification delivered to the watcher set.
func (c *Collector) RecordDelivered(n event.Notification) {
	if c == nil {
		return
	}
	c.notifications.WithLabelValues(n.Type.String()).Inc()
}

// RecordWatcherPanic counts a watcher invocation that panicked.
func (c *Collector) RecordWatcherPanic() {
	if c == nil {
		return
	}
	c.watcherPanics.Inc()
}

// SetQueueDepth sets the dispatch queue depth gauge.
func (c *Collector) SetQueueDepth(depth int) {
	if c == nil {
		return
	}
	c.queueDepth.Set(float64(depth))
}

// SetWatchers sets the registered watcher gauge.
func (c *Collector) SetWatchers(n int) {
	if c == nil {
		return
	}
	c.watchers.Set(float64(n))
}

// RecordRetryDecision counts a retry classification. hasCode is false for
// errors carrying no fault code.
func (c *Collector) RecordRetryDecision(code fault.Code, hasCode, retry bool) {
	if c == nil {
		return
	}

	label := "NONE"
	if hasCode {
		label = code.String()
	}
	verdict := "give_up"
	if retry {
		verdict = "retry"
	}
	c.retryDecisions.WithLabelValues(label, verdict).Inc()
}

// SetConnectionState sets the connection state gauge.
func (c *Collector) SetConnectionState(state int) {
	if c == nil {
		return
	}
	c.connectionState.Set(float64(state))
}
