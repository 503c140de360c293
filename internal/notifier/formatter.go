package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"RateSentinel/internal/calculator"
	"RateSentinel/internal/model"
)

// FormatRatesReport formats a refresh result into a Telegram message.
func FormatRatesReport(res *model.RatesResult) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>RateSentinel</b> | %s\n\n", time.Now().UTC().Format("2006-01-02 15:04 UTC")))
	b.WriteString(fmt.Sprintf("Reference rate: <b>%.6f</b> (%s)\n", res.ReferenceRate, statusLabel(res.Status)))
	if !res.LastUpdated.IsZero() {
		b.WriteString(fmt.Sprintf("Last recomputed: %s\n", res.LastUpdated.UTC().Format("2006-01-02 15:04")))
	}
	b.WriteString("\n")

	b.WriteString("<pre>")
	b.WriteString(fmt.Sprintf("%-8s %-4s %12s %12s\n", "SYMBOL", "CCY", "RATE", "REF RATE"))
	for _, q := range res.Rates {
		mark := ""
		if q.GuardTriggered {
			mark = " !"
		} else if !q.Healthy {
			mark = " ~"
		}
		b.WriteString(fmt.Sprintf("%-8s %-4s %12.6f %12.6f%s\n",
			html.EscapeString(q.Symbol), html.EscapeString(q.TargetCurrency), q.Rate, q.ReferenceRate, mark))
	}
	b.WriteString("</pre>\n")

	samples := make([]model.RateSample, 0, len(res.Rates))
	for _, q := range res.Rates {
		samples = append(samples, q.RateSample)
	}
	if low, high, err := calculator.RateSpread(samples); err == nil && len(samples) > 1 {
		b.WriteString(fmt.Sprintf("Spread: %.6f – %.6f\n", low, high))
	}

	if len(res.Missing) > 0 {
		b.WriteString(fmt.Sprintf("\n⚠️ No rate: %s\n", html.EscapeString(strings.Join(res.Missing, ", "))))
	}
	return b.String()
}

// FormatDegradedAlert describes why a refresh was not fully healthy.
func FormatDegradedAlert(res *model.RatesResult) string {
	var b strings.Builder
	if res.Status == model.StatusDefault {
		b.WriteString("🚨 <b>Reference rate unavailable</b>\n\n")
		b.WriteString(fmt.Sprintf("Serving the default reference %.1f; no feed produced a healthy rate.\n", res.ReferenceRate))
	} else {
		b.WriteString("⚠️ <b>Degraded rate refresh</b>\n\n")
		b.WriteString(fmt.Sprintf("Reference rate: %.6f\n", res.ReferenceRate))
	}
	if len(res.Missing) > 0 {
		b.WriteString(fmt.Sprintf("Missing: %s\n", html.EscapeString(strings.Join(res.Missing, ", "))))
	}
	var guarded, stale []string
	for _, q := range res.Rates {
		switch {
		case q.GuardTriggered:
			guarded = append(guarded, fmt.Sprintf("%s (%.6f → %.6f)", q.Symbol, q.RawRate, q.Rate))
		case !q.Healthy:
			stale = append(stale, q.Symbol)
		}
	}
	if len(guarded) > 0 {
		b.WriteString(fmt.Sprintf("Guarded: %s\n", html.EscapeString(strings.Join(guarded, ", "))))
	}
	if len(stale) > 0 {
		b.WriteString(fmt.Sprintf("Stale: %s\n", html.EscapeString(strings.Join(stale, ", "))))
	}
	b.WriteString(fmt.Sprintf("\nCycle: <code>%s</code>", res.CycleID))
	return b.String()
}

// FormatReference formats the reference state and its recent history.
func FormatReference(st model.ReferenceState, history []model.ReferenceEvent) string {
	var b strings.Builder
	b.WriteString("📦 <b>Reference rate</b>\n\n")
	b.WriteString(fmt.Sprintf("Value: %.6f\n", st.Value))
	if st.Computed() {
		b.WriteString(fmt.Sprintf("Recomputed: %s\n", st.LastRecomputedAt.UTC().Format("2006-01-02 15:04")))
	} else {
		b.WriteString("Recomputed: never (default)\n")
	}

	if len(history) > 0 {
		b.WriteString("\n<b>History:</b>\n")
		for _, e := range history {
			change := 0.0
			if e.Previous > 0 {
				change = (e.Value - e.Previous) / e.Previous * 100
			}
			b.WriteString(fmt.Sprintf("  %s  %.6f (%+.2f%%, %d feeds)\n",
				e.ComputedAt.UTC().Format("01-02 15:04"), e.Value, change, e.SampleCount))
		}
	}
	return b.String()
}

func statusLabel(s model.Status) string {
	switch s {
	case model.StatusOK:
		return "✅ ok"
	case model.StatusDegraded:
		return "⚠️ degraded"
	default:
		return "🚨 default"
	}
}
