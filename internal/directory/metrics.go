package directory

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"agenda/pkg/platform/circuit"
)

// Metrics for directory lookups and the breaker guarding them.
type Metrics struct {
	Lookups        *prometheus.CounterVec
	LookupDuration prometheus.Histogram
	CircuitState   prometheus.Gauge
	Fallbacks      prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agenda_directory_lookups_total",
			Help: "Directory lookups by outcome",
		}, []string{"outcome"}),
		LookupDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "agenda_directory_lookup_duration_seconds",
			Help:    "Latency of directory calls that reached the network",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2, 3},
		}),
		CircuitState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "agenda_directory_circuit_state",
			Help: "Directory circuit state: 0 closed, 1 open, 2 half-open",
		}),
		Fallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "agenda_directory_enrichment_fallbacks_total",
			Help: "Display names replaced by the placeholder after a failed lookup",
		}),
	}
}

func (m *Metrics) observeOutcome(outcome string, seconds float64, reachedNetwork bool) {
	if m == nil {
		return
	}
	m.Lookups.WithLabelValues(outcome).Inc()
	if reachedNetwork {
		m.LookupDuration.Observe(seconds)
	}
}

func (m *Metrics) setCircuitState(state circuit.State) {
	if m == nil {
		return
	}
	m.CircuitState.Set(float64(state))
}

func (m *Metrics) incFallback() {
	if m == nil {
		return
	}
	m.Fallbacks.Inc()
}
