package billing

import (
	"math"
	"strings"
)

// Tier is the closed quality classification governing cost and which credit
// pool a job debits. Unknown values collapse to the default; admission and
// billing must never disagree on a job's tier, so both go through TierFor.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// Pool names the credit pool a debit is drawn from.
type Pool string

const (
	PoolStandard Pool = "standard"
	PoolPremium  Pool = "premium"
)

const (
	// Rough text tokenizer: one token per four prompt characters.
	promptTokenDivisor = 4

	// Fixed per-tier output token estimates for a 1024x1024 image.
	outputTokensLow    = 1056
	outputTokensMedium = 1568
	outputTokensHigh   = 4160

	// Per-million-token pricing, USD.
	inputRatePerMillion  = 5.0
	outputRatePerMillion = 40.0

	costDecimalPlaces = 6
)

// TierFor classifies a requested quality string into the closed tier set.
func TierFor(quality string) Tier {
	switch strings.ToLower(strings.TrimSpace(quality)) {
	case string(TierLow):
		return TierLow
	case string(TierHigh):
		return TierHigh
	default:
		return TierMedium
	}
}

// Pool returns the credit pool this tier debits.
func (t Tier) Pool() Pool {
	if t == TierHigh {
		return PoolPremium
	}
	return PoolStandard
}

// WaivesWatermark reports whether the tier skips the watermark stage by
// default. Premium output ships clean.
func (t Tier) WaivesWatermark() bool {
	return t == TierHigh
}

func (t Tier) outputTokens() int {
	switch t {
	case TierLow:
		return outputTokensLow
	case TierHigh:
		return outputTokensHigh
	default:
		return outputTokensMedium
	}
}

// Estimate is the deterministic cost of one generation.
type Estimate struct {
	Cost         float64
	Tier         Tier
	Pool         Pool
	InputTokens  int
	OutputTokens int
}

// EstimateCost prices a generation from the prompt length and quality tier:
// token estimates priced at the fixed per-million rates, summed and rounded.
func EstimateCost(prompt, quality string) Estimate {
	tier := TierFor(quality)
	inputTokens := (len(prompt) + promptTokenDivisor - 1) / promptTokenDivisor
	outputTokens := tier.outputTokens()

	cost := float64(inputTokens)*inputRatePerMillion/1e6 +
		float64(outputTokens)*outputRatePerMillion/1e6

	return Estimate{
		Cost:         roundTo(cost, costDecimalPlaces),
		Tier:         tier,
		Pool:         tier.Pool(),
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
	}
}

func roundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
