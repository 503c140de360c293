package provider

import (
	"context"
	"fmt"
	"strconv"

	"RateSentinel/internal/model"
)

// StaticProvider answers with the decimal literal in the reference,
// e.g. "static:1.0" for a pegged currency.
type StaticProvider struct{}

func (StaticProvider) Name() string { return "static" }

func (StaticProvider) Fetch(_ context.Context, ref string, _ model.TokenFeedConfig) (Reading, error) {
	v, err := strconv.ParseFloat(ref, 64)
	if err != nil {
		return Reading{}, fmt.Errorf("static: %w: %q", ErrNoValue, ref)
	}
	return Reading{Value: v}, nil
}

// Func adapts a function to the Provider interface. Used for development and tests.
type Func struct {
	ProviderName string
	Fn           func(ctx context.Context, ref string, token model.TokenFeedConfig) (Reading, error)
}

func (f Func) Name() string { return f.ProviderName }

func (f Func) Fetch(ctx context.Context, ref string, token model.TokenFeedConfig) (Reading, error) {
	if f.Fn == nil {
		return Reading{}, ErrNoValue
	}
	return f.Fn(ctx, ref, token)
}
