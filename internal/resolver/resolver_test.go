package resolver

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"RateSentinel/internal/model"
	"RateSentinel/internal/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu       sync.Mutex
	attempts []Attempt
}

func (o *recordingObserver) ObserveAttempt(_ string, a Attempt) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempts = append(o.attempts, a)
}

func fixed(name string, v float64, err error) provider.Func {
	return provider.Func{
		ProviderName: name,
		Fn: func(context.Context, string, model.TokenFeedConfig) (provider.Reading, error) {
			return provider.Reading{Value: v}, err
		},
	}
}

func TestResolve_FirstSuccessWins(t *testing.T) {
	down := fixed("down", 0, errors.New("connection refused"))
	reg := provider.NewRegistry(down, provider.StaticProvider{})
	obs := &recordingObserver{}
	r := New(reg, Options{Observer: obs})

	token := model.TokenFeedConfig{
		Symbol:         "EURC",
		TargetCurrency: "EUR",
		FeedIDs:        []string{"down:eur", "static:0.92", "static:0.50"},
	}
	res := r.Resolve(context.Background(), token)

	require.True(t, res.Found)
	assert.Equal(t, 0.92, res.Sample.Rate)
	assert.Equal(t, 0.92, res.Sample.RawRate)
	assert.Equal(t, "static:0.92", res.Sample.Source)
	assert.Equal(t, "EUR", res.Sample.TargetCurrency)
	assert.True(t, res.Sample.Healthy)
	assert.False(t, res.Sample.ObservedAt.IsZero())

	// the third feed is never consulted
	require.Len(t, res.Attempts, 2)
	assert.Error(t, res.Attempts[0].Err)
	assert.Equal(t, "down", res.Attempts[0].Provider)
	assert.NoError(t, res.Attempts[1].Err)
	assert.Len(t, obs.attempts, 2)
}

func TestResolve_AllFail(t *testing.T) {
	reg := provider.NewRegistry(
		fixed("zero", 0, nil),
		fixed("nan", math.NaN(), nil),
		fixed("neg", -1, nil),
	)
	r := New(reg, Options{})

	token := model.TokenFeedConfig{
		Symbol:  "XYZ",
		FeedIDs: []string{"zero:a", "nan:b", "neg:c", "ghost:d", "malformed"},
	}
	res := r.Resolve(context.Background(), token)

	assert.False(t, res.Found)
	require.Len(t, res.Attempts, 5)
	assert.ErrorIs(t, res.Attempts[0].Err, provider.ErrNonPositive)
	assert.ErrorIs(t, res.Attempts[1].Err, provider.ErrNonPositive)
	assert.ErrorIs(t, res.Attempts[2].Err, provider.ErrNonPositive)
	assert.ErrorIs(t, res.Attempts[3].Err, provider.ErrUnknownProvider)
	assert.ErrorIs(t, res.Attempts[4].Err, provider.ErrBadFeedID)
}

func TestResolve_NoFeeds(t *testing.T) {
	r := New(provider.NewRegistry(), Options{})
	res := r.Resolve(context.Background(), model.TokenFeedConfig{Symbol: "NONE"})
	assert.False(t, res.Found)
	assert.Empty(t, res.Attempts)
}

func TestResolve_AttemptTimeout(t *testing.T) {
	slow := provider.Func{
		ProviderName: "slow",
		Fn: func(ctx context.Context, _ string, _ model.TokenFeedConfig) (provider.Reading, error) {
			<-ctx.Done()
			return provider.Reading{}, ctx.Err()
		},
	}
	reg := provider.NewRegistry(slow, provider.StaticProvider{})
	r := New(reg, Options{AttemptTimeout: 20 * time.Millisecond})

	token := model.TokenFeedConfig{Symbol: "EURC", FeedIDs: []string{"slow:x", "static:0.9"}}
	res := r.Resolve(context.Background(), token)

	require.True(t, res.Found)
	assert.Equal(t, 0.9, res.Sample.Rate)
	assert.ErrorIs(t, res.Attempts[0].Err, context.DeadlineExceeded)
}

func TestResolve_Invert(t *testing.T) {
	r := New(provider.NewRegistry(provider.StaticProvider{}), Options{})
	token := model.TokenFeedConfig{Symbol: "USDJPY", Invert: true, FeedIDs: []string{"static:4"}}

	res := r.Resolve(context.Background(), token)
	require.True(t, res.Found)
	assert.Equal(t, 0.25, res.Sample.Rate)
}

func TestResolve_StaleFeedIsUnhealthy(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	old := provider.Func{
		ProviderName: "old",
		Fn: func(context.Context, string, model.TokenFeedConfig) (provider.Reading, error) {
			return provider.Reading{Value: 1.1, ObservedAt: now.Add(-3 * time.Hour)}, nil
		},
	}
	reg := provider.NewRegistry(old)
	token := model.TokenFeedConfig{Symbol: "GBPC", FeedIDs: []string{"old:gbp"}}

	r := New(reg, Options{MaxFeedAge: time.Hour, Now: func() time.Time { return now }})
	res := r.Resolve(context.Background(), token)
	require.True(t, res.Found)
	assert.False(t, res.Sample.Healthy)

	r = New(reg, Options{Now: func() time.Time { return now }})
	res = r.Resolve(context.Background(), token)
	assert.True(t, res.Sample.Healthy)
}

func TestResolve_CancelledContext(t *testing.T) {
	r := New(provider.NewRegistry(provider.StaticProvider{}), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := r.Resolve(ctx, model.TokenFeedConfig{Symbol: "EURC", FeedIDs: []string{"static:1"}})
	assert.False(t, res.Found)
	assert.Empty(t, res.Attempts)
}
