package core

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the ISO form used at every interface boundary.
const DateLayout = "2006-01-02"

type (
	// Date is a calendar day without a time component.
	Date struct {
		time.Time
	}

	// Expense is one ledger record. ID is assigned by the backend at
	// insert time and never changes afterwards.
	Expense struct {
		ID          int64
		Date        Date
		Amount      Money
		Category    string
		Subcategory string
		Note        string
	}

	// UpdateFields carries a partial update. Nil means "leave the column
	// unchanged"; a non-nil pointer to a zero value is a real update, so
	// amount can be set to 0 and note/subcategory can be cleared.
	UpdateFields struct {
		Date        *Date
		Amount      *Money
		Category    *string
		Subcategory *string
		Note        *string
	}
)

var (
	ErrInvalidDate    = errors.New("date must be in YYYY-MM-DD format")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrEmptyCategory  = errors.New("empty category")
	ErrInvalidLimit   = errors.New("limit must be a non-negative integer")
	ErrNotFound       = errors.New("expense not found")
	ErrNoUpdateFields = errors.New("no update fields")
	ErrNoRows         = errors.New("no rows to export")
)

// ParseDate parses an ISO YYYY-MM-DD date. Anything the layout rejects,
// including impossible days such as 2024-02-31, is ErrInvalidDate.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// MonthRange returns the first and last day of a month. The end bound is
// the true last day, never a literal day 31.
func MonthRange(year, month int) (Date, Date, error) {
	if month < 1 || month > 12 {
		return Date{}, Date{}, ErrInvalidDate
	}
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return Date{Time: first}, Date{Time: last}, nil
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// IsEmpty reports whether no field was supplied at all.
func (u UpdateFields) IsEmpty() bool {
	return u.Date == nil && u.Amount == nil && u.Category == nil &&
		u.Subcategory == nil && u.Note == nil
}

func (u UpdateFields) Validate() error {
	if u.IsEmpty() {
		return ErrNoUpdateFields
	}
	if u.Date != nil {
		if err := u.Date.Validate(); err != nil {
			return err
		}
	}
	if u.Category != nil && strings.TrimSpace(*u.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}
