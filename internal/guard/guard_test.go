package guard

import (
	"math"
	"testing"
	"time"

	"RateSentinel/internal/model"

	"github.com/stretchr/testify/assert"
)

func fallback(v float64) *float64 { return &v }

func TestCheck_FallbackSubstituted(t *testing.T) {
	g := New(map[string]model.GuardBand{
		"EURC": {Min: 0.98, Max: 1.02, Fallback: fallback(1.00)},
	})

	rate, triggered := g.Check("EURC", 0.50)
	assert.True(t, triggered)
	assert.Equal(t, 1.00, rate)
}

func TestCheck_ClampsWithoutFallback(t *testing.T) {
	g := New(map[string]model.GuardBand{"chf": {Min: 0.8, Max: 1.0}})

	rate, triggered := g.Check("CHF", 0.1)
	assert.True(t, triggered)
	assert.Equal(t, 0.8, rate)

	rate, triggered = g.Check("CHF", 7)
	assert.True(t, triggered)
	assert.Equal(t, 1.0, rate)

	rate, triggered = g.Check("CHF", 0.9)
	assert.False(t, triggered)
	assert.Equal(t, 0.9, rate)
}

func TestCheck_NoBandPassesThrough(t *testing.T) {
	g := New(nil)
	rate, triggered := g.Check("GBP", 123.4)
	assert.False(t, triggered)
	assert.Equal(t, 123.4, rate)
}

func TestCheck_AlwaysInsideBand(t *testing.T) {
	bands := map[string]model.GuardBand{
		"A": {Min: 0.98, Max: 1.02, Fallback: fallback(1.0)},
		"B": {Min: 10, Max: 20},
	}
	g := New(bands)
	raws := []float64{-5, 0, 1e-9, 0.97, 0.98, 1, 1.02, 1.03, 15, 20, 21, 1e12, math.Inf(1), math.NaN()}
	for sym, b := range bands {
		for _, raw := range raws {
			got, _ := g.Check(sym, raw)
			assert.GreaterOrEqual(t, got, b.Min, "%s raw=%v", sym, raw)
			assert.LessOrEqual(t, got, b.Max, "%s raw=%v", sym, raw)
		}
	}
}

func TestApply_MarksSampleUnhealthy(t *testing.T) {
	g := New(map[string]model.GuardBand{"EURC": {Min: 0.98, Max: 1.02, Fallback: fallback(1.0)}})
	s := model.RateSample{Symbol: "EURC", Rate: 0.5, Healthy: true, ObservedAt: time.Now()}

	g.Apply(&s)

	assert.Equal(t, 1.0, s.Rate)
	assert.Equal(t, 0.5, s.RawRate)
	assert.True(t, s.GuardTriggered)
	assert.False(t, s.Healthy)

	ok := model.RateSample{Symbol: "EURC", Rate: 1.01, Healthy: true}
	g.Apply(&ok)
	assert.True(t, ok.Healthy)
	assert.False(t, ok.GuardTriggered)
	assert.Equal(t, 1.01, ok.RawRate)
}
