// Package state holds the process-wide reference rate.
package state

import (
	"sync"
	"time"

	"RateSentinel/internal/logger"
	"RateSentinel/internal/model"

	"github.com/sirupsen/logrus"
)

// ComputeFunc produces a new reference value from the previous one.
// previous is zero before the first successful recompute. ok=false means no value could be computed and the state must not change.
type ComputeFunc func(previous float64) (value float64, ok bool)

// Manager guards the reference state. At most one recompute runs at a time.
type Manager struct {
	mu       sync.Mutex
	state    model.ReferenceState
	filePath string
	forced   bool
	log      *logrus.Entry
}

// NewManager creates a Manager, loading state from filePath when set.
// An empty filePath keeps the state in memory only.
func NewManager(filePath string, l *logrus.Logger) (*Manager, error) {
	st, err := LoadState(filePath)
	if err != nil {
		return nil, err
	}
	return &Manager{state: st, filePath: filePath, log: logger.Component(l, "state")}, nil
}

// Get returns a copy of the current reference state.
func (m *Manager) Get() model.ReferenceState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Due reports whether more than interval has passed since the last recompute.
func (m *Manager) Due(now time.Time, interval time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.due(now, interval)
}

func (m *Manager) due(now time.Time, interval time.Duration) bool {
	if m.forced || !m.state.Computed() {
		return true
	}
	return now.Sub(m.state.LastRecomputedAt) > interval
}

// Refresh recomputes the reference if it is due. The due check is repeated
// under the lock so concurrent callers recompute once per interval.
func (m *Manager) Refresh(now time.Time, interval time.Duration, compute ComputeFunc) (model.ReferenceState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.due(now, interval) {
		return m.state, false
	}
	// The initial 1.0 is a placeholder, not a prior value to smooth against.
	var prior float64
	if m.state.Computed() {
		prior = m.state.Value
	}
	value, ok := compute(prior)
	if !ok {
		m.log.Warn("reference recompute produced no value, keeping previous state")
		return m.state, false
	}

	previous := m.state.Value
	m.forced = false
	m.state = model.ReferenceState{
		Value:            value,
		LastRecomputedAt: now,
		UpdatedAt:        now,
	}
	m.log.WithFields(logrus.Fields{
		"previous": previous,
		"value":    value,
	}).Info("reference rate recomputed")

	if m.filePath != "" {
		if err := SaveState(m.filePath, m.state); err != nil {
			m.log.WithError(err).Error("failed to save reference state")
		}
	}
	return m.state, true
}

// Force makes the next Refresh recompute regardless of the interval.
func (m *Manager) Force() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forced = true
}
