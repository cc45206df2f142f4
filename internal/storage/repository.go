package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dormbill/internal/core"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const ledgerColumns = `id, dormer_id, kind, period, description, total_due_cents, amount_paid_cents, due_date, created_at`

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ LedgerStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database file at dbPath and
// brings its schema up to date.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection serializes commits.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (r *SQLiteStore) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteStore) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteStore) CreateDormer(ctx context.Context, d core.Dormer) (core.Dormer, error) {
	if err := d.Validate(); err != nil {
		return core.Dormer{}, err
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = r.now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO dormers (id, name, email, room, created_at) VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.Name, d.Email, d.Room, d.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return core.Dormer{}, fmt.Errorf("create dormer: %w", err)
	}
	return d, nil
}

func (r *SQLiteStore) GetDormer(ctx context.Context, id string) (core.Dormer, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, email, room, created_at FROM dormers WHERE id = ?`, id)
	d, err := scanDormer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Dormer{}, fmt.Errorf("get dormer %s: %w", id, core.ErrDormerNotFound)
	}
	if err != nil {
		return core.Dormer{}, fmt.Errorf("get dormer %s: %w", id, err)
	}
	return d, nil
}

func (r *SQLiteStore) ListDormers(ctx context.Context) ([]core.Dormer, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, email, room, created_at FROM dormers ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list dormers: %w", err)
	}
	defer rows.Close()

	var out []core.Dormer
	for rows.Next() {
		d, err := scanDormer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dormer: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *SQLiteStore) CreateLedger(ctx context.Context, l core.Ledger) (core.Ledger, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = r.now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ledgers (`+ledgerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.DormerID, string(l.Kind), l.Period, l.Description,
		l.TotalDue.Cents, l.AmountPaid.Cents, nullDate(l.DueDate), l.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		if _, derr := r.GetDormer(ctx, l.DormerID); errors.Is(derr, core.ErrDormerNotFound) {
			return core.Ledger{}, fmt.Errorf("create ledger: %w", core.ErrDormerNotFound)
		}
		return core.Ledger{}, fmt.Errorf("create ledger: %w", err)
	}
	return l, nil
}

func (r *SQLiteStore) GetLedger(ctx context.Context, id string) (core.Ledger, error) {
	return getLedger(ctx, r.db, id)
}

func (r *SQLiteStore) ListLedgersForDormer(ctx context.Context, dormerID string, kind core.LedgerKind) ([]core.Ledger, error) {
	q := `SELECT ` + ledgerColumns + ` FROM ledgers WHERE dormer_id = ?`
	args := []any{dormerID}
	if kind != "" {
		q += ` AND kind = ?`
		args = append(args, string(kind))
	}
	q += ` ORDER BY created_at, id`
	return queryLedgers(ctx, r.db, q, args...)
}

func (r *SQLiteStore) ListOpenLedgers(ctx context.Context) ([]core.Ledger, error) {
	return queryLedgers(ctx, r.db,
		`SELECT `+ledgerColumns+` FROM ledgers WHERE amount_paid_cents < total_due_cents ORDER BY due_date, id`)
}

// CommitPayment adds the delta to the stored paid total and inserts the
// payment row in one transaction. The increment happens in SQL, never as a
// read-modify-write of the whole ledger.
func (r *SQLiteStore) CommitPayment(ctx context.Context, c PaymentCommit) (core.Ledger, error) {
	if !c.Delta.IsPositive() || c.Delta != c.Payment.Amount {
		return core.Ledger{}, fmt.Errorf("commit payment: %w", core.ErrInvalidPaymentAmount)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Ledger{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := `UPDATE ledgers SET amount_paid_cents = amount_paid_cents + ?
		WHERE id = ? AND amount_paid_cents < total_due_cents`
	args := []any{c.Delta.Cents, c.LedgerID}
	if c.CapAtTotal {
		q += ` AND amount_paid_cents + ? <= total_due_cents`
		args = append(args, c.Delta.Cents)
	}
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return core.Ledger{}, fmt.Errorf("apply payment delta: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Ledger{}, fmt.Errorf("apply payment delta: %w", err)
	}
	if n == 0 {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM ledgers WHERE id = ?`, c.LedgerID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return core.Ledger{}, fmt.Errorf("commit payment %s: %w", c.LedgerID, core.ErrLedgerNotFound)
		}
		if err != nil {
			return core.Ledger{}, fmt.Errorf("commit payment %s: %w", c.LedgerID, err)
		}
		return core.Ledger{}, fmt.Errorf("commit payment %s: %w", c.LedgerID, ErrCommitConflict)
	}

	p := c.Payment
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now().UTC()
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO payments
		(id, ledger_id, amount_cents, paid_on, method, notes,
		 recorded_by_id, recorded_by_name, recorded_by_email, recorded_by_role, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, c.LedgerID, p.Amount.Cents, p.PaidOn.String(), p.Method, p.Notes,
		p.RecordedBy.ID, p.RecordedBy.Name, p.RecordedBy.Email, p.RecordedBy.Role,
		p.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return core.Ledger{}, fmt.Errorf("insert payment: %w", err)
	}

	l, err := getLedger(ctx, tx, c.LedgerID)
	if err != nil {
		return core.Ledger{}, err
	}
	if err := tx.Commit(); err != nil {
		return core.Ledger{}, fmt.Errorf("commit transaction: %w", err)
	}

	slog.DebugContext(ctx, "Payment committed",
		"ledger_id", c.LedgerID,
		"payment_id", p.ID,
		"amount_cents", p.Amount.Cents,
		"amount_paid_cents", l.AmountPaid.Cents)
	return l, nil
}

func (r *SQLiteStore) ListPayments(ctx context.Context, ledgerID string) ([]core.Payment, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, ledger_id, amount_cents, paid_on, method, notes,
		recorded_by_id, recorded_by_name, recorded_by_email, recorded_by_role, created_at
		FROM payments WHERE ledger_id = ? ORDER BY created_at DESC, id`, ledgerID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []core.Payment
	for rows.Next() {
		var (
			p                 core.Payment
			paidOn, createdAt string
		)
		if err := rows.Scan(&p.ID, &p.LedgerID, &p.Amount.Cents, &paidOn, &p.Method, &p.Notes,
			&p.RecordedBy.ID, &p.RecordedBy.Name, &p.RecordedBy.Email, &p.RecordedBy.Role, &createdAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		if p.PaidOn, err = core.ParseDate(paidOn); err != nil {
			return nil, fmt.Errorf("parse paid_on: %w", err)
		}
		if p.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteStore) MarkReminderSent(ctx context.Context, ledgerID string, day core.Date) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO reminders (ledger_id, sent_on) VALUES (?, ?)`, ledgerID, day.String())
	if err != nil {
		return false, fmt.Errorf("mark reminder: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark reminder: %w", err)
	}
	return n == 1, nil
}

func (r *SQLiteStore) ClearReminder(ctx context.Context, ledgerID string, day core.Date) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM reminders WHERE ledger_id = ? AND sent_on = ?`, ledgerID, day.String()); err != nil {
		return fmt.Errorf("clear reminder: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDormer(s scanner) (core.Dormer, error) {
	var (
		d         core.Dormer
		createdAt string
	)
	if err := s.Scan(&d.ID, &d.Name, &d.Email, &d.Room, &createdAt); err != nil {
		return core.Dormer{}, err
	}
	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return core.Dormer{}, fmt.Errorf("parse created_at: %w", err)
	}
	d.CreatedAt = t
	return d, nil
}

func scanLedger(s scanner) (core.Ledger, error) {
	var (
		l         core.Ledger
		kind      string
		dueDate   sql.NullString
		createdAt string
	)
	if err := s.Scan(&l.ID, &l.DormerID, &kind, &l.Period, &l.Description,
		&l.TotalDue.Cents, &l.AmountPaid.Cents, &dueDate, &createdAt); err != nil {
		return core.Ledger{}, err
	}
	l.Kind = core.LedgerKind(kind)
	if dueDate.Valid {
		d, err := core.ParseDate(dueDate.String)
		if err != nil {
			return core.Ledger{}, fmt.Errorf("parse due_date: %w", err)
		}
		l.DueDate = d
	}
	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return core.Ledger{}, fmt.Errorf("parse created_at: %w", err)
	}
	l.CreatedAt = t
	return l, nil
}

func getLedger(ctx context.Context, q querier, id string) (core.Ledger, error) {
	row := q.QueryRowContext(ctx, `SELECT `+ledgerColumns+` FROM ledgers WHERE id = ?`, id)
	l, err := scanLedger(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Ledger{}, fmt.Errorf("get ledger %s: %w", id, core.ErrLedgerNotFound)
	}
	if err != nil {
		return core.Ledger{}, fmt.Errorf("get ledger %s: %w", id, err)
	}
	return l, nil
}

func queryLedgers(ctx context.Context, q querier, query string, args ...any) ([]core.Ledger, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledgers: %w", err)
	}
	defer rows.Close()

	var out []core.Ledger
	for rows.Next() {
		l, err := scanLedger(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func nullDate(d core.Date) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}
