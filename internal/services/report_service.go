package services

import (
	"context"
	"math"

	"expensed/internal/core"
	"expensed/internal/storage"
)

// DefaultTopLimit is the ranking depth when the caller does not ask for one.
const DefaultTopLimit = 3

// ReportService answers the derived, read-only questions: grouped totals,
// rankings, per-day averages and budget comparison. Each report is a single
// grouped statement, so it reads one consistent snapshot of the ledger.
type ReportService struct {
	repo *storage.Repository
}

func NewReportService(repo *storage.Repository) *ReportService {
	return &ReportService{repo: repo}
}

// Summarize returns per-category totals over [start, end], optionally
// filtered to one category, ordered by total descending.
func (s *ReportService) Summarize(ctx context.Context, start, end core.Date, category string) ([]core.CategoryTotal, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	return s.repo.Summarize(ctx, start, end, category)
}

// MonthlyReport summarizes one calendar month. The end bound is the true
// last day of the month, so February and 30-day months never query an
// impossible date.
func (s *ReportService) MonthlyReport(ctx context.Context, year, month int) ([]core.CategoryTotal, error) {
	start, end, err := core.MonthRange(year, month)
	if err != nil {
		return nil, err
	}
	return s.repo.Summarize(ctx, start, end, "")
}

// TopCategories returns the first limit rows of Summarize. Limit 0 is a
// legal empty prefix; negative limits are rejected.
func (s *ReportService) TopCategories(ctx context.Context, start, end core.Date, limit int) ([]core.CategoryTotal, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, core.ErrInvalidLimit
	}
	return s.repo.TopCategories(ctx, start, end, limit)
}

// DailyAverage is the arithmetic mean of per-day sums across the days in
// range that have at least one expense, half-up rounded to the cent. A
// range with no expenses averages to 0.
func (s *ReportService) DailyAverage(ctx context.Context, start, end core.Date) (core.Money, error) {
	if err := validateRange(start, end); err != nil {
		return core.Money{}, err
	}

	totals, err := s.repo.DailyTotals(ctx, start, end)
	if err != nil {
		return core.Money{}, err
	}
	if len(totals) == 0 {
		return core.Money{}, nil
	}

	var sum int64
	for _, t := range totals {
		sum += t
	}
	mean := float64(sum) / float64(len(totals))
	return core.Money{Cents: int64(math.Round(mean))}, nil
}

// BudgetAlert compares total spend over the range with the caller's limit.
// The total comes from one summarize statement, so it is a consistent
// snapshot; status is ALERT only when spend strictly exceeds the limit.
func (s *ReportService) BudgetAlert(ctx context.Context, start, end core.Date, limit core.Money) (core.BudgetReport, error) {
	totals, err := s.Summarize(ctx, start, end, "")
	if err != nil {
		return core.BudgetReport{}, err
	}

	var spent int64
	for _, ct := range totals {
		spent += ct.Total.Cents
	}
	return core.NewBudgetReport(core.Money{Cents: spent}, limit), nil
}

func validateRange(start, end core.Date) error {
	if err := start.Validate(); err != nil {
		return err
	}
	return end.Validate()
}
