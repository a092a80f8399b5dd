package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateLeftMessages(t *testing.T) {
	tests := []struct {
		name            string
		left, total     int
		expectedLeft    float64
		expectedPercent float64
	}{
		{name: "all left", left: 4, total: 4, expectedLeft: 4, expectedPercent: 100},
		{name: "quarter left", left: 1, total: 4, expectedLeft: 1, expectedPercent: 25},
		{name: "none loaded", left: 0, total: 0, expectedLeft: 0, expectedPercent: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(prometheus.NewRegistry())

			m.UpdateLeftMessages(tt.left, tt.total)

			assert.Equal(t, tt.expectedLeft, testutil.ToFloat64(m.LeftMessages))
			assert.Equal(t, tt.expectedPercent, testutil.ToFloat64(m.LeftMessagesPercent))
		})
	}
}

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ExitActions.WithLabelValues(ResultSuccess).Inc()
	m.EventSecurityVerification.WithLabelValues(ResultError).Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, family := range families {
		names = append(names, family.GetName())
	}

	assert.Contains(t, names, "validator_ejector_exit_actions_total")
	assert.Contains(t, names, "validator_ejector_exit_messages_left_number")
	assert.Contains(t, names, "validator_ejector_event_security_verification_total")

	assert.Panics(t, func() { New(reg) }, "collectors are registered once per registry")
}
