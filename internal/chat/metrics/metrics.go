package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Messages       *prometheus.CounterVec
	Connections    prometheus.Gauge
	Rooms          prometheus.Gauge
	FramesRejected *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Messages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agenda_chat_messages_total",
			Help: "Chat messages by outcome",
		}, []string{"outcome"}),
		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "agenda_realtime_connections",
			Help: "Open realtime connections on this replica",
		}),
		Rooms: factory.NewGauge(prometheus.GaugeOpts{
			Name: "agenda_chat_rooms_active",
			Help: "Chat rooms with at least one member on this replica",
		}),
		FramesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agenda_realtime_frames_rejected_total",
			Help: "Inbound frames answered with chat_error, by reason",
		}, []string{"reason"}),
	}
}

func (m *Metrics) IncMessage(outcome string) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddConnections(delta float64) {
	if m == nil {
		return
	}
	m.Connections.Add(delta)
}

func (m *Metrics) AddRooms(delta float64) {
	if m == nil {
		return
	}
	m.Rooms.Add(delta)
}

func (m *Metrics) IncRejected(reason string) {
	if m == nil {
		return
	}
	m.FramesRejected.WithLabelValues(reason).Inc()
}
