package calculator

import "RateSentinel/internal/model"

// Params are the business constants of the reference computation.
type Params struct {
	// ScaleFactor maps the basket average onto the internal reference unit.
	ScaleFactor float64
	// SmoothingThreshold is the relative move above which the new value is blended.
	SmoothingThreshold float64
	// SmoothingWeight is the share of the raw value in a blended result.
	SmoothingWeight float64
}

// DefaultParams returns the parameters used when none are configured.
func DefaultParams() Params {
	return Params{ScaleFactor: 1.5, SmoothingThreshold: 0.02, SmoothingWeight: 0.3}
}

// Recompute derives the reference rate from healthy samples.
//
// previous <= 0 means no prior value exists and disables smoothing. When no
// sample is healthy it returns the default reference rate and ok=false; the
// caller must then keep its previous state.
func Recompute(samples []model.RateSample, previous float64, p Params) (value float64, ok bool) {
	mean, err := CalculateMean(healthyRates(samples))
	if err != nil {
		return model.DefaultReferenceRate, false
	}
	raw := mean * p.ScaleFactor
	return Smooth(raw, previous, p), true
}

// Smooth damps a move from previous to raw that exceeds the threshold.
func Smooth(raw, previous float64, p Params) float64 {
	dev, err := RelativeDeviation(raw, previous)
	if err != nil || dev <= p.SmoothingThreshold {
		return raw
	}
	return (1-p.SmoothingWeight)*previous + p.SmoothingWeight*raw
}
