package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"expensed/internal/core"
)

// expenseJSON is the wire shape of one record.
type expenseJSON struct {
	ID          int64      `json:"id"`
	Date        string     `json:"date"`
	Amount      core.Money `json:"amount"`
	Category    string     `json:"category"`
	Subcategory string     `json:"subcategory"`
	Note        string     `json:"note"`
}

func toExpenseJSON(e core.Expense) expenseJSON {
	return expenseJSON{
		ID:          e.ID,
		Date:        e.Date.String(),
		Amount:      e.Amount,
		Category:    e.Category,
		Subcategory: e.Subcategory,
		Note:        e.Note,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError converts any failure into the structured error result.
// Validation problems are the caller's fault; everything else is the
// backend's.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if isValidationError(err) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{
		"status": "error",
		"error":  err.Error(),
	})
}

func isValidationError(err error) bool {
	return errors.Is(err, core.ErrInvalidDate) ||
		errors.Is(err, core.ErrInvalidAmount) ||
		errors.Is(err, core.ErrEmptyCategory) ||
		errors.Is(err, core.ErrInvalidLimit) ||
		errors.Is(err, core.ErrNoRows)
}

// parseID reads the {id} path value.
func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, errors.New("id must be an integer")
	}
	return id, nil
}

// parseRange validates the start_date/end_date query parameters. Both are
// required and must be ISO dates.
func parseRange(r *http.Request) (core.Date, core.Date, error) {
	start, err := core.ParseDate(r.URL.Query().Get("start_date"))
	if err != nil {
		return core.Date{}, core.Date{}, err
	}
	end, err := core.ParseDate(r.URL.Query().Get("end_date"))
	if err != nil {
		return core.Date{}, core.Date{}, err
	}
	return start, end, nil
}
