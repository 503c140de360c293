package api

import (
	"net/http"
	"strings"
	"time"

	"RateSentinel/internal/model"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// ReferenceResponse is the body of GET /api/v1/reference.
type ReferenceResponse struct {
	ReferenceRate float64   `json:"reference_rate"`
	LastUpdated   time.Time `json:"last_updated"`
	Computed      bool      `json:"computed"`
}

// ConvertResponse is the body of GET /api/v1/convert.
type ConvertResponse struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
	Result decimal.Decimal `json:"result"`
	Rate   decimal.Decimal `json:"rate"`
	Status model.Status    `json:"status"`
}

func (h *Handler) handleGetRates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.rates.GetRates(r.Context()))
}

func (h *Handler) handleGetRate(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	res := h.rates.GetRates(r.Context())
	q, ok := res.Find(symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "no rate for "+symbol)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) handleGetReference(w http.ResponseWriter, _ *http.Request) {
	st := h.rates.Reference()
	writeJSON(w, http.StatusOK, ReferenceResponse{
		ReferenceRate: st.Value,
		LastUpdated:   st.UpdatedAt,
		Computed:      st.Computed(),
	})
}

// handleConvert converts between two listed currencies through the reference
// unit: amount / rate(from) * rate(to).
func (h *Handler) handleConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := strings.TrimSpace(q.Get("from")), strings.TrimSpace(q.Get("to"))
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "from and to are required")
		return
	}
	amount := decimal.NewFromInt(1)
	if raw := q.Get("amount"); raw != "" {
		a, err := decimal.NewFromString(raw)
		if err != nil || a.IsNegative() {
			writeError(w, http.StatusBadRequest, "amount must be a non-negative decimal")
			return
		}
		amount = a
	}

	res := h.rates.GetRates(r.Context())
	fromQ, ok := lookup(res, from)
	if !ok {
		writeError(w, http.StatusNotFound, "no rate for "+from)
		return
	}
	toQ, ok := lookup(res, to)
	if !ok {
		writeError(w, http.StatusNotFound, "no rate for "+to)
		return
	}

	rate := decimal.NewFromFloat(toQ.ReferenceRate).Div(decimal.NewFromFloat(fromQ.ReferenceRate))
	writeJSON(w, http.StatusOK, ConvertResponse{
		From:   fromQ.TargetCurrency,
		To:     toQ.TargetCurrency,
		Amount: amount,
		Result: amount.Mul(rate).Round(6),
		Rate:   rate.Round(8),
		Status: res.Status,
	})
}

// lookup matches a token symbol first, then a target currency.
func lookup(res *model.RatesResult, code string) (model.RateQuote, bool) {
	if q, ok := res.Find(code); ok {
		return q, true
	}
	for _, q := range res.Rates {
		if strings.EqualFold(q.TargetCurrency, code) {
			return q, true
		}
	}
	return model.RateQuote{}, false
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := h.rates.Reference()
	status := "ok"
	if !st.Computed() {
		status = "starting"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         status,
		"reference_rate": st.Value,
	})
}
