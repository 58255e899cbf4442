package domain

// ReportBucket is one time slice (day or month) of a computed report.
// Balance is a cumulative running total across the whole event log up to and
// including this bucket; SafeCash is Balance minus cumulative reserved funds.
type ReportBucket struct {
	Label    string  `json:"label"`
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
	Net      float64 `json:"net"`
	Balance  float64 `json:"balance"`
	SafeCash float64 `json:"safe_cash"`
}

// SubcategoryTotal is one subcategory slice of a category breakdown.
type SubcategoryTotal struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// CategoryTotal is one category slice of an income or expense breakdown,
// with its subcategories sorted descending by value.
type CategoryTotal struct {
	Name          string             `json:"name"`
	Value         float64            `json:"value"`
	Subcategories []SubcategoryTotal `json:"subcategories"`
}

// Report is the full computed report for one workspace and window. It is
// derived state, recomputed per request and never persisted (archives are
// inert snapshots).
type Report struct {
	WorkspaceID       string       `json:"workspace_id"`
	ReportingCurrency CurrencyCode `json:"reporting_currency"`
	Daily             bool         `json:"daily"`

	TotalIncome   float64 `json:"total_income"`
	TotalExpenses float64 `json:"total_expenses"`
	GrossFlow     float64 `json:"gross_flow"`
	TotalFunding  float64 `json:"total_funding"`
	NetFlow       float64 `json:"net_flow"`

	IncomeByCategory  []CategoryTotal `json:"income_by_category"`
	ExpenseByCategory []CategoryTotal `json:"expense_by_category"`

	Buckets []ReportBucket `json:"buckets"`
}
