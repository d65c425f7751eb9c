package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateFeesDomestic(t *testing.T) {
	fees := CalculateFees(100, false)
	assert.InDelta(t, 5.35, fees.Platform, 1e-9)
	assert.Zero(t, fees.International)
	assert.InDelta(t, 5.35, fees.Total, 1e-9)
}

func TestCalculateFeesInternational(t *testing.T) {
	fees := CalculateFees(100, true)
	assert.InDelta(t, 5.35, fees.Platform, 1e-9)
	assert.InDelta(t, 1.50, fees.International, 1e-9)
	assert.InDelta(t, 6.85, fees.Total, 1e-9)
}

func TestCalculateFeesRoundsToCents(t *testing.T) {
	fees := CalculateFees(9.99, true)
	assert.InDelta(t, 0.85, fees.Platform, 1e-9)      // 0.4995 + 0.35 = 0.8495
	assert.InDelta(t, 0.15, fees.International, 1e-9) // 0.14985
	assert.InDelta(t, 1.00, fees.Total, 1e-9)
}

func TestCalculateFeesZeroAmount(t *testing.T) {
	fees := CalculateFees(0, false)
	assert.InDelta(t, 0.35, fees.Total, 1e-9)
}
