package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"expensed/internal/core"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "expensed_test.db")
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(1)

	require.NoError(t, db.Ping())
	require.NoError(t, RunMigrations(db, DialectSQLite))

	return NewRepository(db, DialectSQLite)
}

func mustDate(t *testing.T, s string) core.Date {
	t.Helper()
	d, err := core.ParseDate(s)
	require.NoError(t, err)
	return d
}

func insertOne(t *testing.T, r *Repository, date string, cents int64, category, subcategory, note string) int64 {
	t.Helper()
	id, err := r.Insert(context.Background(), core.Expense{
		Date:        mustDate(t, date),
		Amount:      core.Money{Cents: cents},
		Category:    category,
		Subcategory: subcategory,
		Note:        note,
	})
	require.NoError(t, err)
	return id
}

func TestInsertGetRoundTrip(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	id := insertOne(t, r, "2024-03-01", 5000, "Food", "Groceries", "weekly shop")
	require.Greater(t, id, int64(0))

	got, err := r.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, id, got.ID)
	require.Equal(t, "2024-03-01", got.Date.String())
	require.Equal(t, int64(5000), got.Amount.Cents)
	require.Equal(t, "Food", got.Category)
	require.Equal(t, "Groceries", got.Subcategory)
	require.Equal(t, "weekly shop", got.Note)

	// Ids are assigned once and monotonically.
	id2 := insertOne(t, r, "2024-03-01", 100, "Food", "", "")
	require.Greater(t, id2, id)
}

func TestInsertRejectsInvalidRecord(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	_, err := r.Insert(ctx, core.Expense{Amount: core.Money{Cents: 100}, Category: "Food"})
	require.ErrorIs(t, err, core.ErrInvalidDate)

	_, err = r.Insert(ctx, core.Expense{Date: mustDate(t, "2024-03-01"), Amount: core.Money{Cents: 100}})
	require.ErrorIs(t, err, core.ErrEmptyCategory)
}

func TestGetNotFound(t *testing.T) {
	r := newTestRepository(t)

	_, err := r.Get(context.Background(), 4242)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestUpdatePartial(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	id := insertOne(t, r, "2024-03-01", 5000, "Food", "Groceries", "note")

	// Only amount changes; everything else must survive.
	amount := core.Money{Cents: 7500}
	rows, err := r.Update(ctx, id, core.UpdateFields{Amount: &amount})
	require.NoError(t, err)
	require.Equal(t, int64(1), rows)

	got, err := r.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(7500), got.Amount.Cents)
	require.Equal(t, "Food", got.Category)
	require.Equal(t, "Groceries", got.Subcategory)
	require.Equal(t, "note", got.Note)
}

func TestUpdateExplicitZeroValues(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	id := insertOne(t, r, "2024-03-01", 5000, "Food", "Groceries", "note")

	// amount=0 and note="" are real updates, not omissions.
	zero := core.Money{Cents: 0}
	empty := ""
	rows, err := r.Update(ctx, id, core.UpdateFields{Amount: &zero, Note: &empty})
	require.NoError(t, err)
	require.Equal(t, int64(1), rows)

	got, err := r.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(0), got.Amount.Cents)
	require.Equal(t, "", got.Note)
	require.Equal(t, "Groceries", got.Subcategory)
}

func TestUpdateNoFields(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	id := insertOne(t, r, "2024-03-01", 5000, "Food", "", "")

	_, err := r.Update(ctx, id, core.UpdateFields{})
	require.ErrorIs(t, err, core.ErrNoUpdateFields)

	// Stored record is unchanged.
	got, err := r.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(5000), got.Amount.Cents)
}

func TestUpdateUnknownID(t *testing.T) {
	r := newTestRepository(t)

	cat := "Transport"
	rows, err := r.Update(context.Background(), 999, core.UpdateFields{Category: &cat})
	require.NoError(t, err)
	require.Equal(t, int64(0), rows)
}

func TestDeleteIdempotent(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	id := insertOne(t, r, "2024-03-01", 5000, "Food", "", "")

	rows, err := r.Delete(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(1), rows)

	_, err = r.Get(ctx, id)
	require.ErrorIs(t, err, core.ErrNotFound)

	// Deleting again, or deleting an id that never existed, still succeeds.
	rows, err = r.Delete(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(0), rows)

	rows, err = r.Delete(ctx, 123456)
	require.NoError(t, err)
	require.Equal(t, int64(0), rows)
}

func TestListRange(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	insertOne(t, r, "2024-03-05", 100, "Food", "", "")
	insertOne(t, r, "2024-03-01", 200, "Food", "", "")
	insertOne(t, r, "2024-03-01", 300, "Transport", "", "")
	insertOne(t, r, "2024-02-29", 400, "Food", "", "") // outside range
	insertOne(t, r, "2024-03-10", 500, "Food", "", "") // outside range

	got, err := r.ListRange(ctx, mustDate(t, "2024-03-01"), mustDate(t, "2024-03-05"))
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Ordered by date ascending, insertion id breaking ties.
	require.Equal(t, "2024-03-01", got[0].Date.String())
	require.Equal(t, "2024-03-01", got[1].Date.String())
	require.Equal(t, "2024-03-05", got[2].Date.String())
	require.Less(t, got[0].ID, got[1].ID)

	// Bounds are inclusive.
	edge, err := r.ListRange(ctx, mustDate(t, "2024-02-29"), mustDate(t, "2024-02-29"))
	require.NoError(t, err)
	require.Len(t, edge, 1)
	require.Equal(t, int64(400), edge[0].Amount.Cents)

	empty, err := r.ListRange(ctx, mustDate(t, "2025-01-01"), mustDate(t, "2025-12-31"))
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestSummarize(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	insertOne(t, r, "2024-03-01", 5000, "Food", "", "")
	insertOne(t, r, "2024-03-02", 3000, "Food", "", "")
	insertOne(t, r, "2024-03-01", 2000, "Transport", "", "")
	insertOne(t, r, "2024-03-09", 9999, "Food", "", "") // outside range

	got, err := r.Summarize(ctx, mustDate(t, "2024-03-01"), mustDate(t, "2024-03-02"), "")
	require.NoError(t, err)
	require.Equal(t, []core.CategoryTotal{
		{Category: "Food", Total: core.Money{Cents: 8000}},
		{Category: "Transport", Total: core.Money{Cents: 2000}},
	}, got)

	// Totals must match the records ListRange returns for the same range.
	listed, err := r.ListRange(ctx, mustDate(t, "2024-03-01"), mustDate(t, "2024-03-02"))
	require.NoError(t, err)
	byCat := map[string]int64{}
	for _, e := range listed {
		byCat[e.Category] += e.Amount.Cents
	}
	for _, ct := range got {
		require.Equal(t, byCat[ct.Category], ct.Total.Cents)
	}

	// Single-category filter.
	food, err := r.Summarize(ctx, mustDate(t, "2024-03-01"), mustDate(t, "2024-03-02"), "Food")
	require.NoError(t, err)
	require.Equal(t, []core.CategoryTotal{
		{Category: "Food", Total: core.Money{Cents: 8000}},
	}, food)

	none, err := r.Summarize(ctx, mustDate(t, "2025-01-01"), mustDate(t, "2025-01-31"), "")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestTopCategoriesIsSummarizePrefix(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	insertOne(t, r, "2024-03-01", 5000, "Food", "", "")
	insertOne(t, r, "2024-03-01", 4000, "Transport", "", "")
	insertOne(t, r, "2024-03-01", 3000, "Fun", "", "")
	insertOne(t, r, "2024-03-01", 2000, "Rent", "", "")

	start, end := mustDate(t, "2024-03-01"), mustDate(t, "2024-03-31")

	full, err := r.Summarize(ctx, start, end, "")
	require.NoError(t, err)
	require.Len(t, full, 4)

	for limit := 0; limit <= 5; limit++ {
		top, err := r.TopCategories(ctx, start, end, limit)
		require.NoError(t, err)
		want := full
		if limit < len(full) {
			want = full[:limit]
		}
		if limit == 0 {
			require.Empty(t, top)
			continue
		}
		require.Equal(t, want, top, "limit=%d", limit)
	}
}

func TestDailyTotals(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	insertOne(t, r, "2024-03-01", 5000, "Food", "", "")
	insertOne(t, r, "2024-03-01", 2000, "Transport", "", "")
	insertOne(t, r, "2024-03-02", 3000, "Food", "", "")

	got, err := r.DailyTotals(ctx, mustDate(t, "2024-03-01"), mustDate(t, "2024-03-02"))
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{7000, 3000}, got)

	// Days with no expenses are not zero-padded in.
	wide, err := r.DailyTotals(ctx, mustDate(t, "2024-03-01"), mustDate(t, "2024-03-31"))
	require.NoError(t, err)
	require.Len(t, wide, 2)

	empty, err := r.DailyTotals(ctx, mustDate(t, "2025-01-01"), mustDate(t, "2025-01-31"))
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestRebind(t *testing.T) {
	q := "SELECT * FROM expenses WHERE date BETWEEN ? AND ? AND category = ?"
	require.Equal(t, q, DialectSQLite.rebind(q))
	require.Equal(t,
		"SELECT * FROM expenses WHERE date BETWEEN $1 AND $2 AND category = $3",
		DialectPostgres.rebind(q))
}

func TestMigrationsAreIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "expensed_test.db")
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, RunMigrations(db, DialectSQLite))
	require.NoError(t, RunMigrations(db, DialectSQLite))
}
