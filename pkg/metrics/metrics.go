package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "validator_ejector"

const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Metrics holds every collector exported by the ejector.
type Metrics struct {
	// ExitActions counts exit attempts by result
	ExitActions *prometheus.CounterVec

	// LeftMessages is the number of verified exit messages still unused
	LeftMessages prometheus.Gauge

	// LeftMessagesPercent is LeftMessages relative to the verified set size
	LeftMessagesPercent prometheus.Gauge

	JobDuration *prometheus.HistogramVec

	ExecutionRequestDuration *prometheus.HistogramVec
	ConsensusRequestDuration *prometheus.HistogramVec

	// EventSecurityVerification counts allowlist checks of exit request transactions
	EventSecurityVerification *prometheus.CounterVec
}

// New creates and registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ExitActions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exit_actions_total",
				Help:      "Total number of exit actions by result",
			},
			[]string{"result"},
		),
		LeftMessages: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "exit_messages_left_number",
				Help:      "Number of verified exit messages left for validators above the last requested index",
			},
		),
		LeftMessagesPercent: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "exit_messages_left_percent",
				Help:      "Percentage of verified exit messages left",
			},
		),
		JobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Duration of a scan and dispatch pass",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"name", "result"},
		),
		ExecutionRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "execution_request_duration_seconds",
				Help:      "Execution node request duration",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"code", "method"},
		),
		ConsensusRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "consensus_request_duration_seconds",
				Help:      "Consensus node request duration",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"code", "method"},
		),
		EventSecurityVerification: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "event_security_verification_total",
				Help:      "Exit request transaction sender checks by result",
			},
			[]string{"result"},
		),
	}
}

// UpdateLeftMessages sets the left-messages gauges from the number of
// remaining and total verified messages.
func (m *Metrics) UpdateLeftMessages(left, total int) {
	m.LeftMessages.Set(float64(left))

	if total == 0 {
		m.LeftMessagesPercent.Set(0)

		return
	}

	m.LeftMessagesPercent.Set(float64(left) * 100 / float64(total))
}
