// Package scheduler runs periodic refreshes and answers operator commands.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"RateSentinel/internal/logger"
	"RateSentinel/internal/model"
	"RateSentinel/internal/notifier"
	"RateSentinel/internal/recorder"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// RateEngine is the part of the engine the scheduler drives.
type RateEngine interface {
	GetRates(ctx context.Context) *model.RatesResult
	Reference() model.ReferenceState
	Invalidate(ctx context.Context, symbol string) (int, error)
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron     *cron.Cron
	Engine   RateEngine
	Notifier notifier.Notifier
	Recorder recorder.Recorder
	Ctx      context.Context

	mu         sync.Mutex
	lastStatus model.Status
	log        *logrus.Entry
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, eng RateEngine, n notifier.Notifier, rec recorder.Recorder, l *logrus.Logger) *Scheduler {
	return &Scheduler{
		Cron:       cron.New(cron.WithSeconds()),
		Engine:     eng,
		Notifier:   n,
		Recorder:   rec,
		Ctx:        ctx,
		lastStatus: model.StatusOK,
		log:        logger.Component(l, "scheduler"),
	}
}

// RegisterAll registers the refresh and report tasks. An empty cron expression skips the task.
func (s *Scheduler) RegisterAll(refreshCron, reportCron string) error {
	if refreshCron != "" {
		if _, err := s.Cron.AddFunc(refreshCron, s.refreshTask); err != nil {
			return fmt.Errorf("register refresh task: %w", err)
		}
	}
	if reportCron != "" {
		if _, err := s.Cron.AddFunc(reportCron, s.reportTask); err != nil {
			return fmt.Errorf("register report task: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info("scheduler started")
}

// Stop stops the cron scheduler and waits for running tasks.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// RunRefreshNow executes the refresh task immediately (warm-up on start).
func (s *Scheduler) RunRefreshNow() {
	s.refreshTask()
}

func (s *Scheduler) refreshTask() {
	s.log.Debug("running refresh task")
	res := s.Engine.GetRates(s.Ctx)
	s.checkStatus(res)
}

// checkStatus alerts on transitions only, so a long outage produces one
// alert and one recovery message.
func (s *Scheduler) checkStatus(res *model.RatesResult) {
	s.mu.Lock()
	prev := s.lastStatus
	s.lastStatus = res.Status
	s.mu.Unlock()

	switch {
	case res.Status != model.StatusOK && res.Status != prev:
		s.trySend(notifier.FormatDegradedAlert(res))
	case res.Status == model.StatusOK && prev != model.StatusOK:
		s.trySend(fmt.Sprintf("✅ <b>Rates recovered</b>\n\nReference rate: %.6f", res.ReferenceRate))
	}
}

func (s *Scheduler) reportTask() {
	s.log.Info("running daily report")
	res := s.Engine.GetRates(s.Ctx)
	s.checkStatus(res)
	s.trySend(notifier.FormatRatesReport(res))
}

// HandleCommand processes an operator command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	// Commands sent in groups carry a bot suffix: /rates@RateSentinelBot
	name, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")

	switch name {
	case "/rates":
		return notifier.FormatRatesReport(s.Engine.GetRates(ctx))
	case "/reference":
		history, err := s.Recorder.RecentReferences(5)
		if err != nil {
			s.log.WithError(err).Error("load reference history")
		}
		return notifier.FormatReference(s.Engine.Reference(), history)
	case "/refresh":
		symbol := ""
		if len(fields) > 1 {
			symbol = strings.ToUpper(fields[1])
		}
		n, err := s.Engine.Invalidate(ctx, symbol)
		if err != nil {
			return fmt.Sprintf("❌ Refresh failed: %v", err)
		}
		if n == 0 {
			if symbol == "" {
				return "No tokens configured"
			}
			return fmt.Sprintf("Unknown symbol: %s", symbol)
		}
		res := s.Engine.GetRates(ctx)
		s.checkStatus(res)
		return notifier.FormatRatesReport(res)
	default:
		return helpText
	}
}

const helpText = "Available commands:\n• /rates\n• /reference\n• /refresh [SYMBOL]"

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.log.WithError(err).Error("send notification")
	}
}
