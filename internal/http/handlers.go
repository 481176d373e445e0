package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"expensed/internal/core"
)

// addExpenseRequest is the add_expense payload. Amount accepts a JSON
// number or a quoted decimal string.
type addExpenseRequest struct {
	Date        string     `json:"date"`
	Amount      core.Money `json:"amount"`
	Category    string     `json:"category"`
	Subcategory string     `json:"subcategory"`
	Note        string     `json:"note"`
}

// updateExpenseRequest uses pointers so an explicitly supplied zero value
// (amount 0, empty note) is distinguishable from an omitted field.
type updateExpenseRequest struct {
	Date        *string     `json:"date"`
	Amount      *core.Money `json:"amount"`
	Category    *string     `json:"category"`
	Subcategory *string     `json:"subcategory"`
	Note        *string     `json:"note"`
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	var req addExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	date, err := core.ParseDate(req.Date)
	if err != nil {
		writeError(w, err)
		return
	}

	id, err := s.expenses.Add(r.Context(), core.Expense{
		Date:        date,
		Amount:      req.Amount,
		Category:    req.Category,
		Subcategory: req.Subcategory,
		Note:        req.Note,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "id": id})
}

func (s *Server) handleReadExpense(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	e, err := s.expenses.Get(r.Context(), id)
	if errors.Is(err, core.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "not_found"})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toExpenseJSON(e))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	var req updateExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	fields := core.UpdateFields{
		Amount:      req.Amount,
		Category:    req.Category,
		Subcategory: req.Subcategory,
		Note:        req.Note,
	}
	if req.Date != nil {
		date, err := core.ParseDate(*req.Date)
		if err != nil {
			writeError(w, err)
			return
		}
		fields.Date = &date
	}

	err = s.expenses.Update(r.Context(), id, fields)
	switch {
	case errors.Is(err, core.ErrNoUpdateFields):
		writeJSON(w, http.StatusOK, map[string]string{"status": "no_update_fields"})
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusOK, map[string]string{"status": "not_found"})
	case err != nil:
		writeError(w, err)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.expenses.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r)
	if err != nil {
		writeError(w, err)
		return
	}

	rows, err := s.expenses.List(r.Context(), start, end)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]expenseJSON, 0, len(rows))
	for _, e := range rows {
		out = append(out, toExpenseJSON(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r)
	if err != nil {
		writeError(w, err)
		return
	}

	totals, err := s.reports.Summarize(r.Context(), start, end, r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeTotals(w, totals)
}

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		writeBadRequest(w, "year must be an integer")
		return
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil {
		writeBadRequest(w, "month must be an integer")
		return
	}

	totals, err := s.reports.MonthlyReport(r.Context(), year, month)
	if err != nil {
		writeError(w, err)
		return
	}
	writeTotals(w, totals)
}

func (s *Server) handleTopCategories(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r)
	if err != nil {
		writeError(w, err)
		return
	}

	limit := 3
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil {
			writeError(w, core.ErrInvalidLimit)
			return
		}
	}

	totals, err := s.reports.TopCategories(r.Context(), start, end, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeTotals(w, totals)
}

func (s *Server) handleDailyAverage(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r)
	if err != nil {
		writeError(w, err)
		return
	}

	avg, err := s.reports.DailyAverage(r.Context(), start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]core.Money{"average_daily_spend": avg})
}

func (s *Server) handleBudgetAlert(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r)
	if err != nil {
		writeError(w, err)
		return
	}

	limit, err := core.ParseMoney(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, err)
		return
	}

	report, err := s.reports.BudgetAlert(r.Context(), start, end, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r)
	if err != nil {
		writeError(w, err)
		return
	}

	rows, err := s.expenses.List(r.Context(), start, end)
	if err != nil {
		writeError(w, err)
		return
	}

	path, err := s.exporter.Export(rows)
	if err != nil {
		writeError(w, err)
		return
	}

	slog.InfoContext(r.Context(), "Exported expenses", "file", path, "rows", len(rows))
	writeJSON(w, http.StatusOK, map[string]string{"status": "exported", "file": path})
}

// handleCategories serves the static category taxonomy as-is.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(s.categoriesPath)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleHealth reports liveness and the configured backend identity. It
// never touches the pool.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "running",
		"database": s.backendIdentity,
	})
}

// handleReady verifies the backend is actually reachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if s.pinger != nil {
		if err := s.pinger.PingContext(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeTotals(w http.ResponseWriter, totals []core.CategoryTotal) {
	if totals == nil {
		totals = []core.CategoryTotal{}
	}
	writeJSON(w, http.StatusOK, totals)
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"status": "error",
		"error":  msg,
	})
}
