package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"dormbill/internal/core"
)

const maxBodyBytes = 64 << 10

// badRequestError marks a body that could not be read as JSON at all.
type badRequestError struct {
	reason string
}

func (e *badRequestError) Error() string { return e.reason }

// decodeJSON reads exactly one JSON object into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return &badRequestError{reason: "request body too large"}
		case errors.Is(err, io.EOF):
			return &badRequestError{reason: "request body is empty"}
		default:
			return &badRequestError{reason: "malformed JSON: " + err.Error()}
		}
	}
	if dec.More() {
		return &badRequestError{reason: "request body must contain a single JSON object"}
	}
	return nil
}

// amountField accepts an amount as a JSON string ("1234.50" or "1234,50")
// or as a bare JSON number. The literal text is parsed as a decimal, never
// through float64.
type amountField struct {
	raw string
	set bool
}

func (a *amountField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	a.set = true
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &a.raw)
	}
	a.raw = string(b)
	return nil
}

// money parses the field, reporting failures under sentinel.
func (a amountField) money(field string, sentinel error) (core.Money, error) {
	if !a.set || strings.TrimSpace(a.raw) == "" {
		return core.Money{}, core.NewValidationError(sentinel, field+" is required")
	}
	m, err := core.ParseMoney(a.raw)
	if err != nil {
		return core.Money{}, core.NewValidationError(sentinel,
			fmt.Sprintf("%s: %s", field, core.ReasonOf(err)))
	}
	return m, nil
}

func parseDateField(field, value string) (core.Date, error) {
	d, err := core.ParseDate(value)
	if err != nil {
		return core.Date{}, core.NewValidationError(core.ErrInvalidDay, field+" must be a date in YYYY-MM-DD format")
	}
	return d, nil
}

type createDormerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Room  string `json:"room"`
}

type createLedgerRequest struct {
	Kind        string      `json:"kind"`
	Period      string      `json:"period"`
	Description string      `json:"description"`
	TotalDue    amountField `json:"total_due"`
	DueDate     string      `json:"due_date"`
}

func (req createLedgerRequest) spec(dormerID string) (core.LedgerSpec, error) {
	kind := core.KindBill
	if strings.TrimSpace(req.Kind) != "" {
		k, err := core.ParseKind(req.Kind)
		if err != nil {
			return core.LedgerSpec{}, err
		}
		kind = k
	}
	due, err := req.TotalDue.money("total_due", core.ErrInvalidAmount)
	if err != nil {
		return core.LedgerSpec{}, err
	}
	dueDate, err := parseDateField("due_date", req.DueDate)
	if err != nil {
		return core.LedgerSpec{}, err
	}
	return core.LedgerSpec{
		DormerID:    dormerID,
		Kind:        kind,
		Period:      req.Period,
		Description: req.Description,
		TotalDue:    due,
		DueDate:     dueDate,
	}, nil
}

type recordPaymentRequest struct {
	Amount amountField `json:"amount"`
	PaidOn string      `json:"paid_on"`
	Method string      `json:"method"`
	Notes  string      `json:"notes"`
}

func (req recordPaymentRequest) input() (core.PaymentInput, error) {
	amount, err := req.Amount.money("amount", core.ErrInvalidPaymentAmount)
	if err != nil {
		return core.PaymentInput{}, err
	}
	paidOn, err := parseDateField("paid_on", req.PaidOn)
	if err != nil {
		return core.PaymentInput{}, err
	}
	return core.PaymentInput{Amount: amount, PaidOn: paidOn, Method: req.Method, Notes: req.Notes}, nil
}
