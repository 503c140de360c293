package calculator

import (
	"math"
	"testing"

	"RateSentinel/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthy(sym string, rate float64) model.RateSample {
	return model.RateSample{Symbol: sym, Rate: rate, Healthy: true}
}

func TestRecompute_FirstComputation(t *testing.T) {
	samples := []model.RateSample{healthy("EURC", 1.00), healthy("CHF", 1.02)}

	got, ok := Recompute(samples, 0, DefaultParams())
	require.True(t, ok)
	assert.InDelta(t, 1.515, got, 1e-12)
}

func TestRecompute_SmoothsLargeMove(t *testing.T) {
	// raw = 1.60 / 1.5 * 1.5
	samples := []model.RateSample{healthy("A", 1.60/1.5)}

	got, ok := Recompute(samples, 1.515, DefaultParams())
	require.True(t, ok)
	assert.InDelta(t, 1.5405, got, 1e-9)
}

func TestRecompute_SmallMoveUsesRaw(t *testing.T) {
	samples := []model.RateSample{healthy("A", 1.01)}

	got, ok := Recompute(samples, 1.515, DefaultParams())
	require.True(t, ok)
	assert.InDelta(t, 1.515, got, 1e-12)
}

func TestRecompute_IgnoresUnhealthy(t *testing.T) {
	samples := []model.RateSample{
		healthy("A", 1.0),
		{Symbol: "B", Rate: 50, Healthy: false},
	}
	got, ok := Recompute(samples, 0, DefaultParams())
	require.True(t, ok)
	assert.InDelta(t, 1.5, got, 1e-12)
}

func TestRecompute_NoHealthySamples(t *testing.T) {
	got, ok := Recompute([]model.RateSample{{Symbol: "A", Rate: 1, Healthy: false}}, 1.7, DefaultParams())
	assert.False(t, ok)
	assert.Equal(t, model.DefaultReferenceRate, got)

	got, ok = Recompute(nil, 0, DefaultParams())
	assert.False(t, ok)
	assert.Equal(t, 1.0, got)
}

func TestSmooth_DeviationIsThirtyPercentOfRaw(t *testing.T) {
	p := DefaultParams()
	for _, tc := range []struct{ prev, raw float64 }{
		{1.515, 1.60},
		{2.0, 1.0},
		{1.0, 1.021},
		{0.5, 5},
	} {
		got := Smooth(tc.raw, tc.prev, p)
		assert.InDelta(t, 0.3*math.Abs(tc.raw-tc.prev), math.Abs(got-tc.prev), 1e-12, "prev=%v raw=%v", tc.prev, tc.raw)
	}
}

func TestRateSpread(t *testing.T) {
	low, high, err := RateSpread([]model.RateSample{healthy("A", 0.9), healthy("B", 1.2), healthy("C", 1.0)})
	require.NoError(t, err)
	assert.Equal(t, 0.9, low)
	assert.Equal(t, 1.2, high)

	_, _, err = RateSpread(nil)
	assert.Error(t, err)
}
