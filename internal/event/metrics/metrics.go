package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	LifecycleOps        *prometheus.CounterVec
	Transitions         *prometheus.CounterVec
	LifecyclePublishErr prometheus.Counter
	SweepRuns           *prometheus.CounterVec
	SweepDeleted        prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LifecycleOps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agenda_event_lifecycle_total",
			Help: "Completed event lifecycle operations by kind",
		}, []string{"op"}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agenda_participation_transitions_total",
			Help: "Participation changes by resulting status or removal reason",
		}, []string{"to"}),
		LifecyclePublishErr: factory.NewCounter(prometheus.CounterOpts{
			Name: "agenda_event_lifecycle_publish_failures_total",
			Help: "Lifecycle messages that could not be published",
		}),
		SweepRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agenda_retention_sweeps_total",
			Help: "Retention sweep runs by outcome",
		}, []string{"outcome"}),
		SweepDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "agenda_retention_events_deleted_total",
			Help: "Expired events removed by the retention sweep",
		}),
	}
}

func (m *Metrics) IncLifecycle(op string) {
	if m == nil {
		return
	}
	m.LifecycleOps.WithLabelValues(op).Inc()
}

func (m *Metrics) IncTransition(to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(to).Inc()
}

func (m *Metrics) IncPublishFailure() {
	if m == nil {
		return
	}
	m.LifecyclePublishErr.Inc()
}

func (m *Metrics) ObserveSweep(deleted int64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.SweepRuns.WithLabelValues("error").Inc()
		return
	}
	m.SweepRuns.WithLabelValues("ok").Inc()
	m.SweepDeleted.Add(float64(deleted))
}
