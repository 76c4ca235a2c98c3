package telemetry

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chatsim"

// Completion outcomes used as the "outcome" label.
const (
	OutcomeSuccess     = "success"
	OutcomeEmpty       = "empty"
	OutcomeRateLimited = "rate_limited"
	OutcomeFailed      = "failed"
	OutcomeDiscarded   = "discarded"
	OutcomeNoService   = "no_service"
)

// Metrics exposes the collectors updated by schedulers and engines. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	queueDepth      prometheus.Gauge
	completions     *prometheus.CounterVec
	retries         *prometheus.CounterVec
	callDuration    *prometheus.HistogramVec
	messagesEmitted *prometheus.CounterVec
	enginesActive   prometheus.Gauge
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns the instance registered with the global registry.
// It is created once so several engines in one process share it.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics registers the collectors on reg and panics on a
// registration conflict that cannot be reused.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "queue_depth",
			Help:      "Requests waiting for the completion service.",
		}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "completions_total",
			Help:      "Completion requests by final outcome.",
		}, []string{"provider", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "completion_retries_total",
			Help:      "Retries after a rate-limited completion.",
		}, []string{"provider"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "completion_duration_seconds",
			Help:      "Latency of single completion attempts.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		messagesEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "messages_emitted_total",
			Help:      "Chat lines delivered to the UI sink.",
		}, []string{"situation"}),
		enginesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "active",
			Help:      "Engines currently started.",
		}),
	}

	register(reg, &m.queueDepth)
	register(reg, &m.completions)
	register(reg, &m.retries)
	register(reg, &m.callDuration)
	register(reg, &m.messagesEmitted)
	register(reg, &m.enginesActive)
	return m
}

// register adds *c to reg, swapping in the existing collector when an
// identical one is already registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c *C) {
	err := reg.Register(*c)
	if err == nil {
		return
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(C); ok {
			*c = existing
			return
		}
	}
	panic(err)
}

// QueueAdd moves the queue depth gauge by delta.
func (m *Metrics) QueueAdd(delta int) {
	if m == nil {
		return
	}
	m.queueDepth.Add(float64(delta))
}

// ObserveCompletion records the final outcome of one request.
func (m *Metrics) ObserveCompletion(provider, outcome string) {
	if m == nil {
		return
	}
	m.completions.WithLabelValues(provider, outcome).Inc()
}

// IncRetry counts a rate-limit retry.
func (m *Metrics) IncRetry(provider string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(provider).Inc()
}

// ObserveCall records the latency of one attempt.
func (m *Metrics) ObserveCall(provider string, d time.Duration) {
	if m == nil {
		return
	}
	m.callDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// IncMessage counts an emitted chat line.
func (m *Metrics) IncMessage(situation string) {
	if m == nil {
		return
	}
	m.messagesEmitted.WithLabelValues(situation).Inc()
}

// EngineStarted and EngineStopped track running engines.
func (m *Metrics) EngineStarted() {
	if m == nil {
		return
	}
	m.enginesActive.Inc()
}

func (m *Metrics) EngineStopped() {
	if m == nil {
		return
	}
	m.enginesActive.Dec()
}
