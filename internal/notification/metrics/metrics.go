package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Stored   *prometheus.CounterVec
	Failures *prometheus.CounterVec
	Pushed   prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Stored: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agenda_notifications_stored_total",
			Help: "Notifications written or refreshed, by type",
		}, []string{"type"}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agenda_notification_failures_total",
			Help: "Per-recipient fan-out failures by stage",
		}, []string{"stage"}),
		Pushed: factory.NewCounter(prometheus.CounterOpts{
			Name: "agenda_notifications_pushed_total",
			Help: "Notifications pushed over the realtime channel",
		}),
	}
}

func (m *Metrics) IncStored(kind string) {
	if m == nil {
		return
	}
	m.Stored.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncFailure(stage string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(stage).Inc()
}

func (m *Metrics) IncPushed() {
	if m == nil {
		return
	}
	m.Pushed.Inc()
}
