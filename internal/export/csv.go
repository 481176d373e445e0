// Package export serializes list-query results into flat CSV artifacts.
// It is a pure transformation over rows the repository already produced;
// it never touches the backend.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"expensed/internal/core"
)

// header matches the expense field set, id first.
var header = []string{"id", "date", "amount", "category", "subcategory", "note"}

// Marshal renders the rows as CSV bytes with a leading header line.
// An empty input is core.ErrNoRows: with no first row there is nothing to
// derive a header from.
func Marshal(rows []core.Expense) ([]byte, error) {
	if len(rows) == 0 {
		return nil, core.ErrNoRows
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for _, e := range rows {
		record := []string{
			fmt.Sprintf("%d", e.ID),
			e.Date.String(),
			e.Amount.String(),
			e.Category,
			e.Subcategory,
			e.Note,
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Writer persists CSV artifacts under a fixed directory.
type Writer struct {
	Dir string
}

// Export writes the rows to expenses_export.csv under the writer's
// directory and returns the artifact path.
func (w Writer) Export(rows []core.Expense) (string, error) {
	data, err := Marshal(rows)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	path := filepath.Join(w.Dir, "expenses_export.csv")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	return path, nil
}
