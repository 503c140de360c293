package model

import "strings"

// TokenFeedConfig describes one supported currency in the feed registry.
type TokenFeedConfig struct {
	Symbol         string   `yaml:"symbol" json:"symbol"`
	TargetCurrency string   `yaml:"target_currency" json:"target_currency"`
	Network        string   `yaml:"network" json:"network"`
	FeedIDs        []string `yaml:"feeds" json:"feeds"`
	// Invert reciprocates every provider answer for this symbol.
	Invert bool       `yaml:"invert" json:"invert"`
	Guard  *GuardBand `yaml:"guard" json:"guard,omitempty"`
}

// CacheKey identifies the token in the sample cache. The network is part of
// the key so the same symbol may be listed on more than one network.
func (t TokenFeedConfig) CacheKey() string {
	if t.Network == "" {
		return strings.ToUpper(t.Symbol)
	}
	return strings.ToUpper(t.Symbol) + "@" + strings.ToLower(t.Network)
}

// GuardBand is the expected numeric range for a symbol's rate.
type GuardBand struct {
	Min      float64  `yaml:"min" json:"min"`
	Max      float64  `yaml:"max" json:"max"`
	Fallback *float64 `yaml:"fallback" json:"fallback,omitempty"`
}
