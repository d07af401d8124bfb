package trader

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the processor's prometheus collectors.
type Metrics struct {
	instructions *prometheus.CounterVec
	transferred  prometheus.Counter
	activeBots   prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "botledger_instructions_total",
			Help: "Instructions processed, by instruction and result",
		}, []string{"instruction", "result"}),
		transferred: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "botledger_transferred_lamports_total",
			Help: "Lamports moved to markets by buy trades",
		}),
		activeBots: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "botledger_active_bots",
			Help: "Bots currently in the active state",
		}),
	}
	reg.MustRegister(m.instructions, m.transferred, m.activeBots)
	return m
}

// SetActiveBots seeds the active bot gauge, typically from a store scan at startup.
func (m *Metrics) SetActiveBots(n int) {
	m.activeBots.Set(float64(n))
}

func (m *Metrics) observe(instruction string, err error) {
	result := "ok"
	if err != nil {
		result = "rejected"
		if Classify(err) == nil {
			result = "error"
		}
	}
	m.instructions.WithLabelValues(instruction, result).Inc()
}
