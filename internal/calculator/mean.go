package calculator

import (
	"errors"

	"RateSentinel/internal/model"
)

// CalculateMean returns the arithmetic mean of values.
func CalculateMean(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, errors.New("no values for mean calculation")
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), nil
}

// healthyRates extracts the rates of samples marked healthy.
func healthyRates(samples []model.RateSample) []float64 {
	rates := make([]float64, 0, len(samples))
	for _, s := range samples {
		if s.Healthy && s.Rate > 0 {
			rates = append(rates, s.Rate)
		}
	}
	return rates
}
