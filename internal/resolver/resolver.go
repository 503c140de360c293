// Package resolver turns a token's ordered feed list into one sample.
package resolver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"RateSentinel/internal/logger"
	"RateSentinel/internal/model"
	"RateSentinel/internal/provider"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Attempt is the outcome of one provider lookup.
type Attempt struct {
	FeedID   string
	Provider string
	Duration time.Duration
	Err      error
}

// Resolution is the tagged result of resolving one token: either Found with
// a Sample, or not found with every failed Attempt recorded.
type Resolution struct {
	Sample   model.RateSample
	Found    bool
	Attempts []Attempt
}

// Observer receives every attempt; used for metrics.
type Observer interface {
	ObserveAttempt(symbol string, a Attempt)
}

// Options configures a Resolver.
type Options struct {
	AttemptTimeout time.Duration
	// MaxFeedAge marks samples older than this unhealthy. Zero disables it.
	MaxFeedAge    time.Duration
	RatePerSecond float64
	Burst         int
	Now           func() time.Time
	Observer      Observer
	Logger        *logrus.Logger
}

// Resolver tries a token's providers in priority order.
type Resolver struct {
	registry *provider.Registry
	opts     Options
	log      *logrus.Entry

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a Resolver over the given provider registry.
func New(registry *provider.Registry, opts Options) *Resolver {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 5 * time.Second
	}
	return &Resolver{
		registry: registry,
		opts:     opts,
		log:      logger.Component(opts.Logger, "resolver"),
		limiters: make(map[string]*rate.Limiter),
	}
}

// Resolve returns the first usable sample for token. A token whose providers
// all fail yields Found=false; that is a normal outcome, not an error.
func (r *Resolver) Resolve(ctx context.Context, token model.TokenFeedConfig) Resolution {
	var res Resolution
	for _, id := range token.FeedIDs {
		if ctx.Err() != nil {
			break
		}
		reading, attempt := r.attempt(ctx, id, token)
		if r.opts.Observer != nil {
			r.opts.Observer.ObserveAttempt(token.Symbol, attempt)
		}
		res.Attempts = append(res.Attempts, attempt)
		if attempt.Err != nil {
			r.log.WithFields(logrus.Fields{
				"symbol": token.Symbol,
				"feed":   id,
			}).WithError(attempt.Err).Debug("provider attempt failed")
			continue
		}
		res.Sample = r.sample(token, id, reading)
		res.Found = true
		return res
	}
	r.log.WithFields(logrus.Fields{
		"symbol":   token.Symbol,
		"attempts": len(res.Attempts),
	}).Warn("no provider produced a usable rate")
	return res
}

func (r *Resolver) attempt(ctx context.Context, id string, token model.TokenFeedConfig) (provider.Reading, Attempt) {
	start := r.opts.Now()
	a := Attempt{FeedID: id}
	finish := func(err error) Attempt {
		a.Err = err
		a.Duration = r.opts.Now().Sub(start)
		return a
	}

	feed, err := provider.ParseFeedID(id)
	if err != nil {
		return provider.Reading{}, finish(err)
	}
	a.Provider = feed.Provider
	p, err := r.registry.Lookup(feed.Provider)
	if err != nil {
		return provider.Reading{}, finish(err)
	}

	actx, cancel := context.WithTimeout(ctx, r.opts.AttemptTimeout)
	defer cancel()
	if err := r.limiter(feed.Provider).Wait(actx); err != nil {
		return provider.Reading{}, finish(fmt.Errorf("rate limit wait: %w", err))
	}

	reading, err := p.Fetch(actx, feed.Reference, token)
	if err != nil {
		return provider.Reading{}, finish(err)
	}
	if err := provider.CheckValue(reading.Value); err != nil {
		return provider.Reading{}, finish(err)
	}
	if token.Invert {
		reading.Value = 1 / reading.Value
		if err := provider.CheckValue(reading.Value); err != nil {
			return provider.Reading{}, finish(err)
		}
	}
	return reading, finish(nil)
}

func (r *Resolver) sample(token model.TokenFeedConfig, id string, reading provider.Reading) model.RateSample {
	now := r.opts.Now()
	s := model.RateSample{
		Symbol:         token.Symbol,
		TargetCurrency: token.TargetCurrency,
		Network:        token.Network,
		Rate:           reading.Value,
		RawRate:        reading.Value,
		Source:         id,
		Healthy:        true,
		ObservedAt:     reading.ObservedAt,
	}
	if s.ObservedAt.IsZero() {
		s.ObservedAt = now
	}
	if r.opts.MaxFeedAge > 0 && now.Sub(s.ObservedAt) > r.opts.MaxFeedAge {
		r.log.WithFields(logrus.Fields{
			"symbol":      token.Symbol,
			"feed":        id,
			"observed_at": s.ObservedAt,
		}).Warn("feed answer is stale")
		s.Healthy = false
	}
	return s
}

func (r *Resolver) limiter(name string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[name]
	if !ok {
		limit := rate.Inf
		if r.opts.RatePerSecond > 0 {
			limit = rate.Limit(r.opts.RatePerSecond)
		}
		burst := r.opts.Burst
		if burst < 1 {
			burst = 1
		}
		l = rate.NewLimiter(limit, burst)
		r.limiters[name] = l
	}
	return l
}
