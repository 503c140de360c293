package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"RateSentinel/internal/model"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisher_PublishReference(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}
	at := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	err := p.PublishReference(context.Background(), model.ReferenceEvent{
		CycleID: "c-1", Previous: 1.515, Value: 1.5405, SampleCount: 2, Status: model.StatusOK, ComputedAt: at,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "c-1", string(w.msgs[0].Key))
	assert.Equal(t, at, w.msgs[0].Time)

	var got model.ReferenceEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, 1.5405, got.Value)
	assert.Equal(t, model.StatusOK, got.Status)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := &KafkaPublisher{writer: &fakeWriter{err: errors.New("broker down")}}
	err := p.PublishReference(context.Background(), model.ReferenceEvent{CycleID: "c-2"})
	assert.ErrorContains(t, err, "broker down")
}
