// Package services composes the repository into the operations the
// transport exposes: record CRUD here, derived reports in ReportService.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"expensed/internal/amqp"
	"expensed/internal/core"
	"expensed/internal/storage"
)

// ExpenseService owns record writes and reads. Writes publish best-effort
// events when an AMQP client is configured; a broker failure never fails
// the write, the backend already holds the truth.
type ExpenseService struct {
	repo   *storage.Repository
	events *amqp.Client
}

func NewExpenseService(repo *storage.Repository, events *amqp.Client) *ExpenseService {
	return &ExpenseService{repo: repo, events: events}
}

// Add validates and persists a new expense, returning its assigned id.
func (s *ExpenseService) Add(ctx context.Context, e core.Expense) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}

	id, err := s.repo.Insert(ctx, e)
	if err != nil {
		return 0, fmt.Errorf("add expense: %w", err)
	}

	s.publishEvent(ctx, amqp.EventExpenseCreated, id)
	return id, nil
}

// Get returns the record or core.ErrNotFound.
func (s *ExpenseService) Get(ctx context.Context, id int64) (core.Expense, error) {
	return s.repo.Get(ctx, id)
}

// Update applies the supplied fields. core.ErrNoUpdateFields when nothing
// was supplied; core.ErrNotFound when the id matched no row.
func (s *ExpenseService) Update(ctx context.Context, id int64, u core.UpdateFields) error {
	rows, err := s.repo.Update(ctx, id, u)
	if err != nil {
		return err
	}
	if rows == 0 {
		return core.ErrNotFound
	}

	s.publishEvent(ctx, amqp.EventExpenseUpdated, id)
	return nil
}

// Delete removes the record. Absent ids succeed; delete is idempotent.
func (s *ExpenseService) Delete(ctx context.Context, id int64) error {
	rows, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if rows > 0 {
		s.publishEvent(ctx, amqp.EventExpenseDeleted, id)
	}
	return nil
}

// List returns records with date in [start, end], ascending by date.
func (s *ExpenseService) List(ctx context.Context, start, end core.Date) ([]core.Expense, error) {
	if err := start.Validate(); err != nil {
		return nil, err
	}
	if err := end.Validate(); err != nil {
		return nil, err
	}
	return s.repo.ListRange(ctx, start, end)
}

func (s *ExpenseService) publishEvent(ctx context.Context, event string, id int64) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishExpenseEvent(ctx, event, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense event",
			"event", event, "id", id, "error", err)
	}
}
