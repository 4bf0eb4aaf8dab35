package dispatch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for device commands.
type Metrics struct {
	commands     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	bulkActions  *prometheus.CounterVec
	bulkFailures prometheus.Counter
}

// NewMetrics creates the dispatch collectors and registers them with reg.
// A nil reg leaves them unregistered, which is handy in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "graylights",
				Name:      "device_commands_total",
				Help:      "Device commands by transport, action and outcome.",
			},
			[]string{"transport", "action", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "graylights",
				Name:      "device_command_duration_seconds",
				Help:      "Device command round trip time.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"transport"},
		),
		bulkActions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "graylights",
				Name:      "bulk_actions_total",
				Help:      "Bulk on/off actions by action and outcome.",
			},
			[]string{"action", "outcome"},
		),
		bulkFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "graylights",
			Name:      "bulk_failed_devices_total",
			Help:      "Devices that failed inside bulk actions.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.commands, m.duration, m.bulkActions, m.bulkFailures)
	}
	return m
}

func (m *Metrics) observeCommand(res CommandResult) {
	if m == nil {
		return
	}
	transport := string(res.Transport)
	if transport == "" {
		transport = "none"
	}
	m.commands.WithLabelValues(transport, res.Desired.Action(), outcome(res.Success, res.Err)).Inc()
	m.duration.WithLabelValues(transport).Observe((time.Duration(res.DurationMS) * time.Millisecond).Seconds())
}

func (m *Metrics) observeBulk(b BulkResult) {
	if m == nil {
		return
	}
	failed := len(b.Failed())
	result := "success"
	if failed > 0 {
		result = "partial_failure"
	}
	m.bulkActions.WithLabelValues(b.Action, result).Inc()
	m.bulkFailures.Add(float64(failed))
}

func outcome(success bool, err error) string {
	switch {
	case success:
		return "success"
	case isTimeout(err):
		return "timeout"
	case isCancelled(err):
		return "cancelled"
	default:
		return "failure"
	}
}
