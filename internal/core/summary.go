package core

// Budget statuses. The threshold is strictly greater-than: spending exactly
// the limit is still SAFE.
const (
	BudgetSafe  = "SAFE"
	BudgetAlert = "ALERT"
)

// CategoryTotal is one row of a summarize result.
type CategoryTotal struct {
	Category string `json:"category"`
	Total    Money  `json:"total"`
}

// BudgetReport compares total spend over a range with a caller limit.
type BudgetReport struct {
	TotalSpent  Money  `json:"total_spent"`
	BudgetLimit Money  `json:"budget_limit"`
	Status      string `json:"status"`
}

// NewBudgetReport classifies spent against limit.
func NewBudgetReport(spent, limit Money) BudgetReport {
	status := BudgetSafe
	if spent.Cents > limit.Cents {
		status = BudgetAlert
	}
	return BudgetReport{TotalSpent: spent, BudgetLimit: limit, Status: status}
}
