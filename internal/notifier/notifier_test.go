package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"RateSentinel/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *model.RatesResult {
	return &model.RatesResult{
		CycleID:       "c-42",
		ReferenceRate: 1.515,
		LastUpdated:   time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
		Status:        model.StatusDegraded,
		Missing:       []string{"CHFC"},
		Rates: []model.RateQuote{
			{RateSample: model.RateSample{Symbol: "EURC", TargetCurrency: "EUR", Rate: 1.0, Healthy: true}, ReferenceRate: 1.515},
			{RateSample: model.RateSample{Symbol: "GBPC", TargetCurrency: "GBP", Rate: 1.0, RawRate: 0.5, GuardTriggered: true}, ReferenceRate: 1.515},
		},
	}
}

func TestFormatRatesReport(t *testing.T) {
	msg := FormatRatesReport(sampleResult())
	assert.Contains(t, msg, "Reference rate: <b>1.515000</b>")
	assert.Contains(t, msg, "degraded")
	assert.Contains(t, msg, "EURC")
	assert.Contains(t, msg, "No rate: CHFC")
	assert.Contains(t, msg, "Spread: 1.000000 – 1.000000")
}

func TestFormatDegradedAlert(t *testing.T) {
	msg := FormatDegradedAlert(sampleResult())
	assert.Contains(t, msg, "Degraded rate refresh")
	assert.Contains(t, msg, "Missing: CHFC")
	assert.Contains(t, msg, "Guarded: GBPC (0.500000 → 1.000000)")
	assert.Contains(t, msg, "c-42")

	msg = FormatDegradedAlert(&model.RatesResult{ReferenceRate: 1, Status: model.StatusDefault})
	assert.Contains(t, msg, "Reference rate unavailable")
}

func TestFormatReference(t *testing.T) {
	at := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	msg := FormatReference(
		model.ReferenceState{Value: 1.5405, LastRecomputedAt: at},
		[]model.ReferenceEvent{{Value: 1.5405, Previous: 1.515, SampleCount: 3, ComputedAt: at}},
	)
	assert.Contains(t, msg, "Value: 1.540500")
	assert.Contains(t, msg, "+1.68%")

	msg = FormatReference(model.ReferenceState{Value: 1}, nil)
	assert.Contains(t, msg, "never")
}

func TestTelegramNotifier_Send(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	n := NewTelegramNotifier("TOKEN", "1001", "", nil)
	n.APIBase = server.URL
	require.NoError(t, n.Send(context.Background(), "hello"))
	assert.Equal(t, "1001", got["chat_id"])
	assert.Equal(t, "hello", got["text"])
	assert.Equal(t, "HTML", got["parse_mode"])
}

func TestTelegramNotifier_SendWithRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	n := NewTelegramNotifier("TOKEN", "1001", "", nil)
	n.APIBase = server.URL
	require.NoError(t, n.SendWithRetry(context.Background(), "hello", 1))
	assert.Equal(t, int32(2), calls.Load())

	calls.Store(0)
	err := n.SendWithRetry(context.Background(), "hello", 0)
	assert.ErrorContains(t, err, "status 429")
}
