package recorder

import "RateSentinel/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordSamples(_ *SampleBatch) error            { return nil }
func (n *NoopRecorder) RecordReference(_ *model.ReferenceEvent) error { return nil }
func (n *NoopRecorder) Close() error                                  { return nil }

func (n *NoopRecorder) RecentReferences(_ int) ([]model.ReferenceEvent, error) {
	return nil, nil
}
