package calculator

import (
	"errors"
	"math"

	"RateSentinel/internal/model"
)

// RelativeDeviation returns |value-previous| / previous.
func RelativeDeviation(value, previous float64) (float64, error) {
	if previous <= 0 {
		return 0, errors.New("previous value must be positive")
	}
	return math.Abs(value-previous) / previous, nil
}

// RateSpread returns the lowest and highest rate among samples.
func RateSpread(samples []model.RateSample) (low, high float64, err error) {
	if len(samples) == 0 {
		return 0, 0, errors.New("no samples provided")
	}
	low = math.Inf(1)
	high = math.Inf(-1)
	for _, s := range samples {
		if s.Rate < low {
			low = s.Rate
		}
		if s.Rate > high {
			high = s.Rate
		}
	}
	return low, high, nil
}
