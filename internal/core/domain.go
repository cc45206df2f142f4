package core

import (
	"errors"
	"net/mail"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const (
	KindBill  LedgerKind = "bill"
	KindFine  LedgerKind = "fine"
	KindEvent LedgerKind = "event"
)

// MaxNotesLength bounds the free-text notes stored with a payment.
const MaxNotesLength = 500

type (
	// LedgerKind tells bills, fines and event payables apart. All three share
	// the same ledger shape and status rules.
	LedgerKind string

	Date struct {
		time.Time
	}

	Dormer struct {
		ID        string
		Name      string
		Email     string
		Room      string
		CreatedAt time.Time
	}

	// Actor is whoever recorded a payment. The engine never interprets it.
	Actor struct {
		ID    string
		Name  string
		Email string
		Role  string
	}

	Payment struct {
		ID         string
		LedgerID   string
		Amount     Money
		PaidOn     Date
		Method     string
		Notes      string
		RecordedBy Actor
		CreatedAt  time.Time
	}
)

var (
	ErrInvalidDay    = errors.New("invalid day")
	ErrInvalidMonth  = errors.New("invalid month")
	ErrInvalidAmount = errors.New("invalid amount")

	ErrInvalidPaymentAmount = errors.New("invalid payment amount")
	ErrUnknownPaymentMethod = errors.New("unknown payment method")
	ErrLedgerNotFound       = errors.New("ledger not found")
	ErrDormerNotFound       = errors.New("dormer not found")
	ErrNotesTooLong         = errors.New("notes too long")
	ErrEmptyPeriod          = errors.New("empty billing period")
	ErrEmptyDormer          = errors.New("empty dormer")
	ErrEmptyName            = errors.New("empty name")
	ErrEmptyRoom            = errors.New("empty room")
	ErrInvalidKind          = errors.New("invalid ledger kind")
	ErrDescriptionTooLong   = errors.New("description too long")
	ErrControlCharacter     = errors.New("control character in text")
	ErrInvalidEmail         = errors.New("invalid email")
)

// ValidationError pairs a sentinel with a human readable reason.
type ValidationError struct {
	Err    error
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError wraps a sentinel with a reason.
func NewValidationError(err error, reason string) error {
	return &ValidationError{Err: err, Reason: reason}
}

func invalid(err error, reason string) error {
	return NewValidationError(err, reason)
}

// ErrorCode maps an error to a stable snake_case code for API bodies and
// metric labels. Unknown errors map to "internal".
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInvalidPaymentAmount):
		return "invalid_payment_amount"
	case errors.Is(err, ErrUnknownPaymentMethod):
		return "unknown_payment_method"
	case errors.Is(err, ErrLedgerNotFound):
		return "ledger_not_found"
	case errors.Is(err, ErrDormerNotFound):
		return "dormer_not_found"
	case errors.Is(err, ErrNotesTooLong):
		return "notes_too_long"
	case errors.Is(err, ErrDescriptionTooLong):
		return "description_too_long"
	case errors.Is(err, ErrEmptyPeriod):
		return "empty_period"
	case errors.Is(err, ErrEmptyDormer):
		return "empty_dormer"
	case errors.Is(err, ErrEmptyName):
		return "empty_name"
	case errors.Is(err, ErrEmptyRoom):
		return "empty_room"
	case errors.Is(err, ErrInvalidKind):
		return "invalid_kind"
	case errors.Is(err, ErrControlCharacter):
		return "invalid_text"
	case errors.Is(err, ErrInvalidEmail):
		return "invalid_email"
	case errors.Is(err, ErrInvalidDay), errors.Is(err, ErrInvalidMonth):
		return "invalid_date"
	}
	return "internal"
}

// IsValidation reports whether err is a caller mistake rather than a
// failure of the system.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) || ErrorCode(err) != "internal"
}

// ReasonOf returns the reason carried by a ValidationError, or err.Error().
func ReasonOf(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) && ve.Reason != "" {
		return ve.Reason
	}
	return err.Error()
}

// ParseKind accepts the plural route forms too ("bills", "fines", "events").
func ParseKind(s string) (LedgerKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bill", "bills":
		return KindBill, nil
	case "fine", "fines":
		return KindFine, nil
	case "event", "events":
		return KindEvent, nil
	}
	return "", invalid(ErrInvalidKind, "unknown ledger kind "+strconv.Quote(s))
}

func (k LedgerKind) Valid() bool {
	return k == KindBill || k == KindFine || k == KindEvent
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate reads an ISO date (2006-01-02). Empty input yields the zero Date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// IsEmpty returns true if the date is zero
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

func (d Dormer) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return invalid(ErrEmptyName, "dormer name is required")
	}
	if len(d.Name) > 200 {
		return invalid(ErrEmptyName, "name too long (max 200 characters)")
	}
	if strings.TrimSpace(d.Room) == "" {
		return invalid(ErrEmptyRoom, "room assignment is required")
	}
	if hasControl(d.Name) || hasControl(d.Room) {
		return invalid(ErrControlCharacter, "name and room must be a single line of text")
	}
	if d.Email != "" {
		addr, err := mail.ParseAddress(d.Email)
		if err != nil || addr.Name != "" || addr.Address != strings.TrimSpace(d.Email) {
			return invalid(ErrInvalidEmail, "email must be a plain address like ana@example.com")
		}
	}
	return nil
}

// hasControl reports whether s contains a control character such as CR or LF.
func hasControl(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) >= 0
}
