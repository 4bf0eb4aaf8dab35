package schedule

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors for schedule evaluation.
type Metrics struct {
	fired        *prometheus.CounterVec
	ticks        prometheus.Counter
	ticksSkipped prometheus.Counter
}

// NewMetrics creates the schedule collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fired: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "graylights",
				Name:      "schedule_fired_total",
				Help:      "Schedule firings by action and outcome.",
			},
			[]string{"action", "outcome"},
		),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "graylights",
			Name:      "schedule_ticks_total",
			Help:      "Evaluator scans started.",
		}),
		ticksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "graylights",
			Name:      "schedule_ticks_skipped_total",
			Help:      "Evaluator ticks skipped because a scan was still running.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.fired, m.ticks, m.ticksSkipped)
	}
	return m
}

func (m *Metrics) observeTick() {
	if m != nil {
		m.ticks.Inc()
	}
}

func (m *Metrics) observeSkipped() {
	if m != nil {
		m.ticksSkipped.Inc()
	}
}

func (m *Metrics) observeFired(action Action, success bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "partial_failure"
	}
	m.fired.WithLabelValues(string(action), outcome).Inc()
}
