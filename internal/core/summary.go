package core

// Summary is the per-month projection of a ledger. Balance may be negative.
type Summary struct {
	Month   string
	Income  int64
	Expense int64
	Balance int64
}

// NewSummary builds a summary from independently computed sums.
func NewSummary(month string, income, expense int64) Summary {
	return Summary{
		Month:   month,
		Income:  income,
		Expense: expense,
		Balance: income - expense,
	}
}

// Totals sums a row set. Export totals come from here so they always match
// the rows they are printed under.
func Totals(month string, txs []Transaction) Summary {
	var income, expense int64
	for _, t := range txs {
		switch t.Type {
		case TypeIncome:
			income += t.Amount.Cents
		case TypeExpense:
			expense += t.Amount.Cents
		}
	}
	return NewSummary(month, income, expense)
}
