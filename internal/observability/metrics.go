package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report console activity.
type Metrics struct {
	iterationDuration *prometheus.HistogramVec
	iterationFailures *prometheus.CounterVec
	sessionsActive    prometheus.Gauge
	pushDropped       prometheus.Counter
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns the package-level metrics instance registered with
// the global Prometheus registry. The collectors are created only once to
// avoid duplicate registration panics when the service is instantiated
// multiple times (e.g. in unit tests).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// The caller is responsible for supplying a fresh registry when unique metric
// names are required (for example in tests). Any registration error will
// panic which mirrors the semantics of promauto helpers.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	iterationDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "waconsole",
			Subsystem: "runner",
			Name:      "iteration_duration_seconds",
			Help:      "Duration of each script iteration.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"},
	)
	iterationFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "waconsole",
			Subsystem: "runner",
			Name:      "iteration_failures_total",
			Help:      "Total number of script iterations that failed.",
		},
		[]string{"reason"},
	)
	sessionsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "waconsole",
			Subsystem: "session",
			Name:      "active",
			Help:      "Number of sessions currently held by the registry.",
		},
	)
	pushDropped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "waconsole",
			Subsystem: "push",
			Name:      "events_dropped_total",
			Help:      "Push events dropped because a client buffer was full.",
		},
	)

	collectors := []prometheus.Collector{iterationDuration, iterationFailures, sessionsActive, pushDropped}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				switch collector.(type) {
				case *prometheus.HistogramVec:
					iterationDuration = already.ExistingCollector.(*prometheus.HistogramVec)
				case *prometheus.CounterVec:
					iterationFailures = already.ExistingCollector.(*prometheus.CounterVec)
				case prometheus.Gauge:
					sessionsActive = already.ExistingCollector.(prometheus.Gauge)
				case prometheus.Counter:
					pushDropped = already.ExistingCollector.(prometheus.Counter)
				}
				continue
			}
			panic(err)
		}
	}

	return &Metrics{
		iterationDuration: iterationDuration,
		iterationFailures: iterationFailures,
		sessionsActive:    sessionsActive,
		pushDropped:       pushDropped,
	}
}

// ObserveIteration records the outcome and wall time of one script iteration.
func (m *Metrics) ObserveIteration(elapsed time.Duration, success bool) {
	if m == nil || m.iterationDuration == nil {
		return
	}
	status := "ok"
	if !success {
		status = "error"
		m.iterationFailures.WithLabelValues("script").Inc()
	}
	m.iterationDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

// SetActiveSessions reports the current registry size.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil || m.sessionsActive == nil {
		return
	}
	m.sessionsActive.Set(float64(n))
}

// IncDroppedPushEvents counts one push event dropped on a full client buffer.
func (m *Metrics) IncDroppedPushEvents() {
	if m == nil || m.pushDropped == nil {
		return
	}
	m.pushDropped.Inc()
}
