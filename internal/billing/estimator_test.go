package billing

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateCostIsDeterministic(t *testing.T) {
	prompt := "a watercolor fox in the snow"

	first := EstimateCost(prompt, "medium")
	second := EstimateCost(prompt, "medium")

	assert.Equal(t, first, second)
	assert.Positive(t, first.Cost)
}

func TestEstimateCostOrdersTiers(t *testing.T) {
	prompt := strings.Repeat("a detailed prompt ", 10)

	low := EstimateCost(prompt, "low")
	medium := EstimateCost(prompt, "medium")
	high := EstimateCost(prompt, "high")

	assert.GreaterOrEqual(t, medium.Cost, low.Cost)
	assert.GreaterOrEqual(t, high.Cost, medium.Cost)
	assert.Greater(t, high.Cost, low.Cost)
}

func TestEstimateCostRoundsToSixPlaces(t *testing.T) {
	est := EstimateCost("abc", "low")

	scaled := est.Cost * 1e6
	assert.InDelta(t, math.Round(scaled), scaled, 1e-9)
}

func TestEstimateCostTokenArithmetic(t *testing.T) {
	// 10 characters at 4 chars/token rounds up to 3 input tokens.
	est := EstimateCost("0123456789", "medium")

	assert.Equal(t, 3, est.InputTokens)
	assert.Equal(t, outputTokensMedium, est.OutputTokens)

	want := roundTo(3*inputRatePerMillion/1e6+float64(outputTokensMedium)*outputRatePerMillion/1e6, costDecimalPlaces)
	assert.Equal(t, want, est.Cost)
}

func TestTierForClosedSet(t *testing.T) {
	assert.Equal(t, TierLow, TierFor("low"))
	assert.Equal(t, TierMedium, TierFor("medium"))
	assert.Equal(t, TierHigh, TierFor("HIGH"))
	assert.Equal(t, TierMedium, TierFor(""))
	assert.Equal(t, TierMedium, TierFor("ultra"))
}

func TestTierPoolSelection(t *testing.T) {
	assert.Equal(t, PoolStandard, TierLow.Pool())
	assert.Equal(t, PoolStandard, TierMedium.Pool())
	assert.Equal(t, PoolPremium, TierHigh.Pool())
}

func TestPremiumTierWaivesWatermark(t *testing.T) {
	assert.False(t, TierLow.WaivesWatermark())
	assert.False(t, TierMedium.WaivesWatermark())
	assert.True(t, TierHigh.WaivesWatermark())
}
