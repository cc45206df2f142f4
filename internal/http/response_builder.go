package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"dormbill/internal/core"
	"dormbill/internal/log"
	"dormbill/internal/services"
)

type problem struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, code, reason string) {
	writeJSON(w, status, problem{Error: code, Reason: reason})
}

// writeError maps err to a status code: not found 404, validation 422,
// malformed requests 400, anything else 500 with the detail only logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var bad *badRequestError
	switch {
	case errors.As(err, &bad):
		writeProblem(w, http.StatusBadRequest, "bad_request", bad.reason)
	case errors.Is(err, core.ErrLedgerNotFound), errors.Is(err, core.ErrDormerNotFound):
		writeProblem(w, http.StatusNotFound, core.ErrorCode(err), core.ReasonOf(err))
	case core.IsValidation(err):
		writeProblem(w, http.StatusUnprocessableEntity, core.ErrorCode(err), core.ReasonOf(err))
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldPath, r.URL.Path,
			log.FieldError, err)
		writeProblem(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

type moneyJSON struct {
	Cents   int64  `json:"cents"`
	Amount  string `json:"amount"`
	Display string `json:"display"`
}

type dormerJSON struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Room      string    `json:"room"`
	CreatedAt time.Time `json:"created_at"`
}

type ledgerJSON struct {
	ID          string    `json:"id"`
	DormerID    string    `json:"dormer_id"`
	Kind        string    `json:"kind"`
	Period      string    `json:"period"`
	Description string    `json:"description,omitempty"`
	DueDate     string    `json:"due_date,omitempty"`
	TotalDue    moneyJSON `json:"total_due"`
	AmountPaid  moneyJSON `json:"amount_paid"`
	Balance     moneyJSON `json:"balance"`
	Status      string    `json:"status"`
	Overpaid    bool      `json:"overpaid"`
	CreatedAt   time.Time `json:"created_at"`
}

type actorJSON struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type paymentJSON struct {
	ID         string    `json:"id"`
	LedgerID   string    `json:"ledger_id"`
	Amount     moneyJSON `json:"amount"`
	PaidOn     string    `json:"paid_on"`
	Method     string    `json:"method"`
	Notes      string    `json:"notes,omitempty"`
	RecordedBy actorJSON `json:"recorded_by"`
	CreatedAt  time.Time `json:"created_at"`
}

type paymentResultJSON struct {
	Payment paymentJSON `json:"payment"`
	Ledger  ledgerJSON  `json:"ledger"`
}

type summaryJSON struct {
	TotalDue        moneyJSON      `json:"total_due"`
	TotalPaid       moneyJSON      `json:"total_paid"`
	TotalBalance    moneyJSON      `json:"total_balance"`
	ProgressPercent string         `json:"progress_percent"`
	Count           int            `json:"count"`
	Overpaid        int            `json:"overpaid"`
	ByStatus        map[string]int `json:"by_status"`
}

type dormerSummaryJSON struct {
	Dormer      dormerJSON  `json:"dormer"`
	Bills       summaryJSON `json:"bills"`
	Fines       summaryJSON `json:"fines"`
	Events      summaryJSON `json:"events"`
	Total       summaryJSON `json:"total"`
	LatePartial int         `json:"late_partially_paid"`
	AsOf        time.Time   `json:"as_of"`
}

// presenter renders domain values with the configured currency symbol.
type presenter struct {
	symbol string
	now    time.Time
}

func (p presenter) money(m core.Money) moneyJSON {
	return moneyJSON{Cents: m.Cents, Amount: m.Plain(), Display: m.Format(p.symbol)}
}

func (p presenter) dormer(d core.Dormer) dormerJSON {
	return dormerJSON{ID: d.ID, Name: d.Name, Email: d.Email, Room: d.Room, CreatedAt: d.CreatedAt}
}

func (p presenter) ledger(l core.Ledger) ledgerJSON {
	return ledgerJSON{
		ID:          l.ID,
		DormerID:    l.DormerID,
		Kind:        string(l.Kind),
		Period:      l.Period,
		Description: l.Description,
		DueDate:     l.DueDate.String(),
		TotalDue:    p.money(l.TotalDue),
		AmountPaid:  p.money(l.AmountPaid),
		Balance:     p.money(l.RemainingBalance()),
		Status:      string(l.Status(p.now)),
		Overpaid:    l.Overpaid(),
		CreatedAt:   l.CreatedAt,
	}
}

func (p presenter) payment(pay core.Payment) paymentJSON {
	return paymentJSON{
		ID:         pay.ID,
		LedgerID:   pay.LedgerID,
		Amount:     p.money(pay.Amount),
		PaidOn:     pay.PaidOn.String(),
		Method:     pay.Method,
		Notes:      pay.Notes,
		RecordedBy: actorJSON{ID: pay.RecordedBy.ID, Name: pay.RecordedBy.Name},
		CreatedAt:  pay.CreatedAt,
	}
}

func (p presenter) summary(s core.Summary) summaryJSON {
	byStatus := make(map[string]int, len(core.Statuses))
	for _, st := range core.Statuses {
		byStatus[string(st)] = s.ByStatus[st]
	}
	return summaryJSON{
		TotalDue:        p.money(s.TotalDue),
		TotalPaid:       p.money(s.TotalPaid),
		TotalBalance:    p.money(s.TotalBalance),
		ProgressPercent: s.ProgressPercent.StringFixed(2),
		Count:           s.Count,
		Overpaid:        s.Overpaid,
		ByStatus:        byStatus,
	}
}

func (p presenter) dormerSummary(ds services.DormerSummary) dormerSummaryJSON {
	return dormerSummaryJSON{
		Dormer:      p.dormer(ds.Dormer),
		Bills:       p.summary(ds.Bills),
		Fines:       p.summary(ds.Fines),
		Events:      p.summary(ds.Events),
		Total:       p.summary(ds.Total),
		LatePartial: ds.LatePartial,
		AsOf:        ds.AsOf,
	}
}
