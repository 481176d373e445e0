// Package storage implements the expense repository over a pooled
// database/sql backend.
//
// Every operation checks a single connection out of the pool with
// db.Conn(ctx) and returns it with a deferred Close on all exit paths, so a
// failed statement can never leak a pool slot. Callers beyond the pool's
// MaxOpenConns block on acquisition. Each operation is one statement, so
// writes are atomic without explicit transactions.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"expensed/internal/core"
)

type Repository struct {
	db      *sql.DB
	dialect Dialect
}

// NewRepository wraps an already-opened, already-migrated pool.
func NewRepository(db *sql.DB, dialect Dialect) *Repository {
	return &Repository{db: db, dialect: dialect}
}

// Insert persists a new expense and returns the server-assigned id.
// The expense must already be validated; Insert never reaches the backend
// with an invalid date.
func (r *Repository) Insert(ctx context.Context, e core.Expense) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}

	conn, err := r.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	query := r.dialect.rebind(`
		INSERT INTO expenses (date, amount_cents, category, subcategory, note)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`)

	var id int64
	err = conn.QueryRowContext(ctx, query,
		e.Date.String(), e.Amount.Cents, e.Category, e.Subcategory, e.Note).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", id,
		"date", e.Date.String(),
		"amount_cents", e.Amount.Cents,
		"category", e.Category)

	return id, nil
}

// Get returns the full record, or core.ErrNotFound when no row matches.
func (r *Repository) Get(ctx context.Context, id int64) (core.Expense, error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return core.Expense{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	query := r.dialect.rebind(`
		SELECT id, date, amount_cents, category, subcategory, note
		FROM expenses
		WHERE id = ?`)

	e, err := scanExpense(conn.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

// Update applies only the fields present in u and returns the affected-row
// count, so callers can tell an unknown id (0 rows) from a real update.
// An empty u returns core.ErrNoUpdateFields without touching the backend.
func (r *Repository) Update(ctx context.Context, id int64, u core.UpdateFields) (int64, error) {
	if err := u.Validate(); err != nil {
		return 0, err
	}

	var (
		sets []string
		args []any
	)
	if u.Date != nil {
		sets = append(sets, "date = ?")
		args = append(args, u.Date.String())
	}
	if u.Amount != nil {
		sets = append(sets, "amount_cents = ?")
		args = append(args, u.Amount.Cents)
	}
	if u.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *u.Category)
	}
	if u.Subcategory != nil {
		sets = append(sets, "subcategory = ?")
		args = append(args, *u.Subcategory)
	}
	if u.Note != nil {
		sets = append(sets, "note = ?")
		args = append(args, *u.Note)
	}
	args = append(args, id)

	conn, err := r.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	query := r.dialect.rebind(
		"UPDATE expenses SET " + strings.Join(sets, ", ") + " WHERE id = ?")

	res, err := conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update expense: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update expense: rows affected: %w", err)
	}

	slog.InfoContext(ctx, "Expense updated", "id", id, "fields", len(sets), "rows", rows)
	return rows, nil
}

// Delete removes the row if present. Deleting an absent id is a success
// with 0 rows; delete is idempotent.
func (r *Repository) Delete(ctx context.Context, id int64) (int64, error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	query := r.dialect.rebind("DELETE FROM expenses WHERE id = ?")
	res, err := conn.ExecContext(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("delete expense: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expense: rows affected: %w", err)
	}

	slog.InfoContext(ctx, "Expense deleted", "id", id, "rows", rows)
	return rows, nil
}

// ListRange returns all records with date in [start, end], ordered by date
// ascending with insertion id as the tiebreak. Dates are stored as ISO
// text, so BETWEEN is plain lexicographic comparison.
func (r *Repository) ListRange(ctx context.Context, start, end core.Date) ([]core.Expense, error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	query := r.dialect.rebind(`
		SELECT id, date, amount_cents, category, subcategory, note
		FROM expenses
		WHERE date BETWEEN ? AND ?
		ORDER BY date ASC, id ASC`)

	rows, err := conn.QueryContext(ctx, query, start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Summarize sums amounts grouped by category over the inclusive range,
// optionally filtered to a single category, ordered by total descending
// with category name as the tiebreak. One statement, so composite reads
// built on it see a consistent snapshot.
func (r *Repository) Summarize(ctx context.Context, start, end core.Date, category string) ([]core.CategoryTotal, error) {
	query := `
		SELECT category, SUM(amount_cents) AS total
		FROM expenses
		WHERE date BETWEEN ? AND ?`
	args := []any{start.String(), end.String()}
	if category != "" {
		query += " AND category = ?"
		args = append(args, category)
	}
	query += `
		GROUP BY category
		ORDER BY total DESC, category ASC`

	return r.queryTotals(ctx, r.dialect.rebind(query), args)
}

// TopCategories is Summarize truncated to the first limit rows.
func (r *Repository) TopCategories(ctx context.Context, start, end core.Date, limit int) ([]core.CategoryTotal, error) {
	query := r.dialect.rebind(`
		SELECT category, SUM(amount_cents) AS total
		FROM expenses
		WHERE date BETWEEN ? AND ?
		GROUP BY category
		ORDER BY total DESC, category ASC
		LIMIT ?`)

	return r.queryTotals(ctx, query, []any{start.String(), end.String(), limit})
}

// DailyTotals returns the per-day sums for days within the range that have
// at least one expense. Days with no expenses do not appear.
func (r *Repository) DailyTotals(ctx context.Context, start, end core.Date) ([]int64, error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	query := r.dialect.rebind(`
		SELECT SUM(amount_cents)
		FROM expenses
		WHERE date BETWEEN ? AND ?
		GROUP BY date`)

	rows, err := conn.QueryContext(ctx, query, start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("daily totals: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var sum int64
		if err := rows.Scan(&sum); err != nil {
			return nil, fmt.Errorf("scan daily total: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (r *Repository) queryTotals(ctx context.Context, query string, args []any) ([]core.CategoryTotal, error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("summarize expenses: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryTotal
	for rows.Next() {
		var ct core.CategoryTotal
		if err := rows.Scan(&ct.Category, &ct.Total.Cents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e       core.Expense
		dateStr string
	)
	if err := row.Scan(&e.ID, &dateStr, &e.Amount.Cents, &e.Category, &e.Subcategory, &e.Note); err != nil {
		return core.Expense{}, err
	}
	date, err := core.ParseDate(dateStr)
	if err != nil {
		return core.Expense{}, fmt.Errorf("stored date %q: %w", dateStr, err)
	}
	e.Date = date
	return e, nil
}
