package model

import (
	"strings"
	"time"
)

// RateSample is one resolved (and guarded) observation for a symbol.
// Rate is expressed as target currency units per one reference unit.
type RateSample struct {
	Symbol         string    `json:"symbol"`
	TargetCurrency string    `json:"target_currency"`
	Network        string    `json:"network"`
	Rate           float64   `json:"rate"`
	RawRate        float64   `json:"raw_rate"`
	Source         string    `json:"source"`
	Healthy        bool      `json:"healthy"`
	GuardTriggered bool      `json:"guard_triggered"`
	ObservedAt     time.Time `json:"observed_at"`
}

// RateQuote is a sample rescaled against the current reference rate.
type RateQuote struct {
	RateSample
	ReferenceRate float64 `json:"reference_rate"`
	InverseRate   float64 `json:"inverse_rate"`
}

// ReferenceState is the engine's anchor value.
type ReferenceState struct {
	Value            float64   `json:"value"`
	LastRecomputedAt time.Time `json:"last_recomputed_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Computed reports whether the reference has ever been recomputed.
func (s ReferenceState) Computed() bool {
	return !s.LastRecomputedAt.IsZero()
}

// DefaultReferenceRate is used until a reference can be computed.
const DefaultReferenceRate = 1.0

// Status summarizes result quality for callers.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusDefault  Status = "default"
)

// RatesResult is returned by every refresh.
type RatesResult struct {
	CycleID       string      `json:"cycle_id"`
	Rates         []RateQuote `json:"rates"`
	ReferenceRate float64     `json:"reference_rate"`
	LastUpdated   time.Time   `json:"last_updated"`
	Status        Status      `json:"status"`
	Missing       []string    `json:"missing,omitempty"`
	Recomputed    bool        `json:"recomputed"`
}

// Find returns the quote for symbol, if present.
func (r *RatesResult) Find(symbol string) (RateQuote, bool) {
	for _, q := range r.Rates {
		if strings.EqualFold(q.Symbol, symbol) {
			return q, true
		}
	}
	return RateQuote{}, false
}

// ReferenceEvent describes one successful reference recomputation.
type ReferenceEvent struct {
	CycleID     string    `json:"cycle_id"`
	Previous    float64   `json:"previous"`
	Value       float64   `json:"value"`
	SampleCount int       `json:"sample_count"`
	Status      Status    `json:"status"`
	ComputedAt  time.Time `json:"computed_at"`
}
