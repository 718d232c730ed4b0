package matching

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "cv_ranker"

// Metrics collects scoring outcomes. A nil *Metrics records nothing.
type Metrics struct {
	// Outcomes counts finished tasks by source (remote or fallback).
	Outcomes *prometheus.CounterVec
	// Attempts counts remote attempts by result (success or the error kind).
	Attempts *prometheus.CounterVec
	// TaskDuration tracks the wall time of a whole task including retries.
	TaskDuration *prometheus.HistogramVec
	// Chunks counts dispatched chunks.
	Chunks prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "scoring_outcomes_total",
				Help:      "Total number of scored candidates by result source",
			},
			[]string{"source"},
		),
		Attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "remote_attempts_total",
				Help:      "Total number of remote scorer attempts by result",
			},
			[]string{"result"},
		),
		TaskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "scoring_task_duration_seconds",
				Help:      "Scoring task duration in seconds, retries included",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 240},
			},
			[]string{"source"},
		),
		Chunks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "batch_chunks_total",
				Help:      "Total number of dispatched batch chunks",
			},
		),
	}

	for _, c := range []prometheus.Collector{m.Outcomes, m.Attempts, m.TaskDuration, m.Chunks} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Metrics) observeOutcome(o Outcome, seconds float64) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(string(o.Source)).Inc()
	m.TaskDuration.WithLabelValues(string(o.Source)).Observe(seconds)
}

func (m *Metrics) observeAttempt(result string) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(result).Inc()
}

func (m *Metrics) observeChunk() {
	if m == nil {
		return
	}
	m.Chunks.Inc()
}
