// Package engine orchestrates a rate refresh: cache, resolver, guard,
// reference recomputation and rescaling.
package engine

import (
	"context"
	"strings"
	"time"

	"RateSentinel/internal/cache"
	"RateSentinel/internal/calculator"
	"RateSentinel/internal/guard"
	"RateSentinel/internal/logger"
	"RateSentinel/internal/model"
	"RateSentinel/internal/publisher"
	"RateSentinel/internal/recorder"
	"RateSentinel/internal/resolver"
	"RateSentinel/internal/state"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const hookTimeout = 5 * time.Second

// SampleResolver resolves one token through its provider chain.
type SampleResolver interface {
	Resolve(ctx context.Context, token model.TokenFeedConfig) resolver.Resolution
}

// Metrics receives engine telemetry.
type Metrics interface {
	CacheLookup(hit bool)
	GuardTriggered(symbol string)
	ObserveCycle(status string, d time.Duration, missing int)
	ReferenceUpdated(value float64, recomputed bool)
}

// Options wires a Service. Resolver, Cache and State are required.
type Options struct {
	Tokens   []model.TokenFeedConfig
	Resolver SampleResolver
	Guard    *guard.Guard
	Cache    cache.Store
	State    *state.Manager
	Params   calculator.Params

	RefreshInterval time.Duration
	CacheTTL        time.Duration
	Concurrency     int

	Recorder  recorder.Recorder
	Publisher publisher.Publisher
	Metrics   Metrics
	Now       func() time.Time
	Logger    *logrus.Logger
}

// Service owns the sample cache and the reference state.
type Service struct {
	opts  Options
	group singleflight.Group
	log   *logrus.Entry
}

// New creates a Service, filling unset options with defaults.
func New(opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Guard == nil {
		opts.Guard = guard.New(nil)
	}
	if opts.Params == (calculator.Params{}) {
		opts.Params = calculator.DefaultParams()
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = time.Hour
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 24 * time.Hour
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.Recorder == nil {
		opts.Recorder = recorder.NewNoopRecorder()
	}
	if opts.Publisher == nil {
		opts.Publisher = publisher.NoopPublisher{}
	}
	return &Service{opts: opts, log: logger.Component(opts.Logger, "engine")}
}

// Tokens returns the configured registry.
func (s *Service) Tokens() []model.TokenFeedConfig { return s.opts.Tokens }

// Reference returns the current reference state.
func (s *Service) Reference() model.ReferenceState { return s.opts.State.Get() }

type outcome struct {
	sample model.RateSample
	found  bool
	fresh  bool
	done   bool
}

// GetRates resolves every configured token, recomputes the reference rate
// when due and returns all samples rescaled against it. Feed failures never
// surface as errors; they show up in Missing and Status.
func (s *Service) GetRates(ctx context.Context) *model.RatesResult {
	start := s.opts.Now()
	cycleID := uuid.NewString()
	log := s.log.WithField("cycle_id", cycleID)

	outcomes := make([]outcome, len(s.opts.Tokens))
	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, token := range s.opts.Tokens {
		i, token := i, token
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			outcomes[i] = s.resolveToken(ctx, token)
			return nil
		})
	}
	g.Wait()

	var (
		samples []model.RateSample
		fresh   []model.RateSample
		missing []string
	)
	for i, o := range outcomes {
		if !o.done || !o.found {
			missing = append(missing, s.opts.Tokens[i].Symbol)
			continue
		}
		samples = append(samples, o.sample)
		if o.fresh {
			fresh = append(fresh, o.sample)
		}
	}
	if len(fresh) > 0 {
		if err := s.opts.Recorder.RecordSamples(&recorder.SampleBatch{CycleID: cycleID, At: start, Samples: fresh}); err != nil {
			log.WithError(err).Error("failed to record samples")
		}
	}

	var (
		attempted bool
		computeOK bool
		previous  float64
		healthy   int
	)
	st, recomputed := s.opts.State.Refresh(s.opts.Now(), s.opts.RefreshInterval, func(prev float64) (float64, bool) {
		attempted = true
		previous = prev
		for _, smp := range samples {
			if smp.Healthy {
				healthy++
			}
		}
		v, ok := calculator.Recompute(samples, prev, s.opts.Params)
		computeOK = ok
		return v, ok
	})

	result := &model.RatesResult{
		CycleID:       cycleID,
		Rates:         rescale(samples, st.Value),
		ReferenceRate: st.Value,
		LastUpdated:   st.UpdatedAt,
		Missing:       missing,
		Recomputed:    recomputed,
	}
	result.Status = status(st, missing, samples, attempted && !computeOK)

	if recomputed {
		s.afterRecompute(ctx, log, model.ReferenceEvent{
			CycleID:     cycleID,
			Previous:    previous,
			Value:       st.Value,
			SampleCount: healthy,
			Status:      result.Status,
			ComputedAt:  st.LastRecomputedAt,
		})
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.ObserveCycle(string(result.Status), s.opts.Now().Sub(start), len(missing))
		s.opts.Metrics.ReferenceUpdated(st.Value, recomputed)
	}

	entry := log.WithFields(logrus.Fields{
		"rates":     len(result.Rates),
		"missing":   len(missing),
		"reference": result.ReferenceRate,
		"status":    result.Status,
	})
	if result.Status == model.StatusOK {
		entry.Debug("rates refreshed")
	} else {
		entry.Warn("rates refreshed with degraded result")
	}
	return result
}

func (s *Service) resolveToken(ctx context.Context, token model.TokenFeedConfig) outcome {
	key := token.CacheKey()
	sample, ok, err := s.opts.Cache.Get(ctx, key)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("cache read failed, treating as miss")
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.CacheLookup(ok && err == nil)
	}
	if ok && err == nil {
		return outcome{sample: sample, found: true, done: true}
	}

	// The shared resolution outlives any single caller; each caller stops
	// waiting on its own context.
	ch := s.group.DoChan(key, func() (interface{}, error) {
		rctx := context.WithoutCancel(ctx)
		res := s.opts.Resolver.Resolve(rctx, token)
		if !res.Found {
			return outcome{done: true}, nil
		}
		smp := res.Sample
		s.opts.Guard.Apply(&smp)
		if smp.GuardTriggered {
			s.log.WithFields(logrus.Fields{
				"symbol": smp.Symbol,
				"raw":    smp.RawRate,
				"rate":   smp.Rate,
			}).Warn("rate outside guard band")
			if s.opts.Metrics != nil {
				s.opts.Metrics.GuardTriggered(smp.Symbol)
			}
		}
		if err := s.opts.Cache.Put(rctx, key, smp, s.opts.CacheTTL); err != nil {
			s.log.WithError(err).WithField("key", key).Warn("cache write failed")
		}
		return outcome{sample: smp, found: true, fresh: true, done: true}, nil
	})
	select {
	case r := <-ch:
		return r.Val.(outcome)
	case <-ctx.Done():
		return outcome{}
	}
}

func (s *Service) afterRecompute(ctx context.Context, log *logrus.Entry, evt model.ReferenceEvent) {
	if err := s.opts.Recorder.RecordReference(&evt); err != nil {
		log.WithError(err).Error("failed to record reference")
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hookTimeout)
	defer cancel()
	if err := s.opts.Publisher.PublishReference(pctx, evt); err != nil {
		log.WithError(err).Error("failed to publish reference")
	}
}

// Invalidate drops cached samples for symbol, or for every token when symbol
// is empty, and forces the next refresh to recompute the reference. An
// unknown symbol touches nothing.
func (s *Service) Invalidate(ctx context.Context, symbol string) (int, error) {
	n := 0
	for _, t := range s.opts.Tokens {
		if symbol != "" && !strings.EqualFold(t.Symbol, symbol) {
			continue
		}
		if err := s.opts.Cache.Delete(ctx, t.CacheKey()); err != nil {
			return n, err
		}
		n++
	}
	if n > 0 {
		s.opts.State.Force()
	}
	return n, nil
}

func rescale(samples []model.RateSample, ref float64) []model.RateQuote {
	quotes := make([]model.RateQuote, 0, len(samples))
	for _, smp := range samples {
		q := model.RateQuote{RateSample: smp, ReferenceRate: smp.Rate * ref}
		if q.ReferenceRate > 0 {
			q.InverseRate = 1 / q.ReferenceRate
		}
		quotes = append(quotes, q)
	}
	return quotes
}

func status(st model.ReferenceState, missing []string, samples []model.RateSample, recomputeFailed bool) model.Status {
	if !st.Computed() {
		return model.StatusDefault
	}
	if len(missing) > 0 || recomputeFailed {
		return model.StatusDegraded
	}
	for _, smp := range samples {
		if !smp.Healthy {
			return model.StatusDegraded
		}
	}
	return model.StatusOK
}
