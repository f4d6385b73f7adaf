package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSize(t *testing.T) {
	tests := []struct {
		name         string
		riskFraction float64
		commission   float64
		entryPrice   float64
		stopLoss     float64
		portfolio    float64
		expected     float64
		delta        float64
	}{
		{
			name:         "one percent risk over two dollar stop distance",
			riskFraction: 0.01,
			commission:   0,
			entryPrice:   100,
			stopLoss:     98,
			portfolio:    10000,
			expected:     50,
			delta:        1e-9,
		},
		{
			name:         "commission shrinks the raw size",
			riskFraction: 0.01,
			commission:   0.001,
			entryPrice:   100,
			stopLoss:     98,
			portfolio:    10000,
			expected:     50 * (1 - 0.001),
			delta:        1e-9,
		},
		{
			name:         "entry equal to stop returns zero",
			riskFraction: 0.01,
			commission:   0.001,
			entryPrice:   100,
			stopLoss:     100,
			portfolio:    10000,
			expected:     0,
		},
		{
			name:         "negative stop returns zero",
			riskFraction: 0.02,
			commission:   0.001,
			entryPrice:   100,
			stopLoss:     -5,
			portfolio:    10000,
			expected:     0,
		},
		{
			name:         "zero entry price returns zero",
			riskFraction: 0.02,
			commission:   0.001,
			entryPrice:   0,
			stopLoss:     98,
			portfolio:    10000,
			expected:     0,
		},
		{
			name:         "drained portfolio returns zero",
			riskFraction: 0.02,
			commission:   0.001,
			entryPrice:   100,
			stopLoss:     98,
			portfolio:    0,
			expected:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sizer := NewSizer(tt.riskFraction, tt.commission)
			size := sizer.Size(tt.entryPrice, tt.stopLoss, tt.portfolio)

			if tt.delta > 0 {
				assert.InDelta(t, tt.expected, size, tt.delta)
			} else {
				assert.Equal(t, tt.expected, size)
			}
		})
	}
}

func TestSizeNeverNegative(t *testing.T) {
	sizer := NewSizer(0.01, 0.5)
	assert.GreaterOrEqual(t, sizer.Size(100, 98, 10000), 0.0)
}
