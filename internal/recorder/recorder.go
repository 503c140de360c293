package recorder

import (
	"time"

	"RateSentinel/internal/model"
)

// SampleBatch holds the freshly resolved samples of one refresh cycle.
type SampleBatch struct {
	CycleID string
	At      time.Time
	Samples []model.RateSample
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordSamples(batch *SampleBatch) error
	RecordReference(evt *model.ReferenceEvent) error
	// RecentReferences returns up to limit recomputations, newest first.
	RecentReferences(limit int) ([]model.ReferenceEvent, error)
	Close() error
}
