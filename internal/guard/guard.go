// Package guard keeps implausible feed values out of pricing.
package guard

import (
	"strings"

	"RateSentinel/internal/model"
)

// Guard validates rates against per-symbol bands.
type Guard struct {
	bands map[string]model.GuardBand
}

// New creates a Guard. Symbols are matched case-insensitively.
func New(bands map[string]model.GuardBand) *Guard {
	g := &Guard{bands: make(map[string]model.GuardBand, len(bands))}
	for sym, b := range bands {
		g.bands[strings.ToUpper(sym)] = b
	}
	return g
}

// Band returns the band configured for symbol.
func (g *Guard) Band(symbol string) (model.GuardBand, bool) {
	if g == nil {
		return model.GuardBand{}, false
	}
	b, ok := g.bands[strings.ToUpper(symbol)]
	return b, ok
}

// Check returns the rate to use for symbol and whether the band was violated.
// Out-of-band values become the configured fallback, or the nearest bound.
func (g *Guard) Check(symbol string, rate float64) (float64, bool) {
	b, ok := g.Band(symbol)
	if !ok {
		return rate, false
	}
	// NaN compares false against both bounds; treat it as below the band.
	if rate < b.Min || rate != rate {
		if b.Fallback != nil {
			return *b.Fallback, true
		}
		return b.Min, true
	}
	if rate > b.Max {
		if b.Fallback != nil {
			return *b.Fallback, true
		}
		return b.Max, true
	}
	return rate, false
}

// Apply guards a sample in place. Healthy reflects the pre-guard value only,
// so an already unhealthy sample stays unhealthy.
func (g *Guard) Apply(s *model.RateSample) {
	adjusted, triggered := g.Check(s.Symbol, s.Rate)
	s.RawRate = s.Rate
	s.Rate = adjusted
	s.GuardTriggered = triggered
	if triggered {
		s.Healthy = false
	}
}
