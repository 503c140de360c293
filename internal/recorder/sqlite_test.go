package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"RateSentinel/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRecorder(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "history.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestSQLiteRecorder_References(t *testing.T) {
	r := openTestRecorder(t)
	t0 := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, r.RecordReference(&model.ReferenceEvent{
		CycleID: "c1", Value: 1.515, SampleCount: 2, Status: model.StatusDegraded, ComputedAt: t0,
	}))
	require.NoError(t, r.RecordReference(&model.ReferenceEvent{
		CycleID: "c2", Previous: 1.515, Value: 1.5405, SampleCount: 3, Status: model.StatusOK, ComputedAt: t0.Add(time.Hour),
	}))

	got, err := r.RecentReferences(10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c2", got[0].CycleID)
	assert.Equal(t, 1.5405, got[0].Value)
	assert.Equal(t, 1.515, got[0].Previous)
	assert.Equal(t, model.StatusOK, got[0].Status)
	assert.True(t, got[0].ComputedAt.Equal(t0.Add(time.Hour)))
	assert.Equal(t, "c1", got[1].CycleID)

	got, err = r.RecentReferences(1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSQLiteRecorder_Samples(t *testing.T) {
	r := openTestRecorder(t)
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, r.RecordSamples(&SampleBatch{
		CycleID: "c1",
		At:      now,
		Samples: []model.RateSample{
			{Symbol: "EURC", Rate: 1.0, RawRate: 1.0, Source: "static:1", Healthy: true, ObservedAt: now},
			{Symbol: "GBPC", Rate: 1.0, RawRate: 0.5, Source: "yahoo:GBPUSD=X", GuardTriggered: true, ObservedAt: now},
		},
	}))
	require.NoError(t, r.RecordSamples(&SampleBatch{CycleID: "c2", At: now}))

	var count, guarded int
	require.NoError(t, r.db.QueryRow(`SELECT COUNT(*), SUM(guard_triggered) FROM rate_samples`).Scan(&count, &guarded))
	assert.Equal(t, 2, count)
	assert.Equal(t, 1, guarded)
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	assert.NoError(t, r.RecordReference(&model.ReferenceEvent{}))
	got, err := r.RecentReferences(5)
	assert.NoError(t, err)
	assert.Empty(t, got)
}
