package core

import (
	"strings"
	"time"
)

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
	KindBoth    Kind = "both"

	TypeIncome  TxType = "income"
	TypeExpense TxType = "expense"
)

// DateLayout is the ISO calendar date accepted and stored for transactions.
const DateLayout = "2006-01-02"

// MonthLayout is the layout of a month key.
const MonthLayout = "2006-01"

type (
	// Kind tells which transaction types a category applies to.
	Kind string

	// TxType is the direction of a transaction.
	TxType string

	Money struct {
		Cents int64
	}

	Category struct {
		Name     string
		Emoji    string
		Kind     Kind
		IsActive bool
	}

	// Transaction is a single ledger entry. Amount is always positive; Type
	// carries the sign.
	Transaction struct {
		ID          int64
		OwnerID     string
		Type        TxType
		Amount      Money
		Category    string
		Description string
		Date        string // YYYY-MM-DD
		MonthKey    string // YYYY-MM
	}
)

// ParseKind accepts exactly income, expense or both.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindIncome, KindExpense, KindBoth:
		return k, nil
	default:
		return "", ErrInvalidKind
	}
}

// FilterKind returns the kind used to filter listings. Values other than
// income or expense disable filtering.
func FilterKind(s string) Kind {
	switch k := Kind(strings.TrimSpace(s)); k {
	case KindIncome, KindExpense:
		return k
	default:
		return ""
	}
}

// Matches reports whether a category of kind k is listed under filter f.
func (k Kind) Matches(f Kind) bool {
	return f == "" || k == f || k == KindBoth
}

func ParseTxType(s string) (TxType, error) {
	switch t := TxType(s); t {
	case TypeIncome, TypeExpense:
		return t, nil
	default:
		return "", ErrInvalidType
	}
}

// Label returns the display label used on statements.
func (t TxType) Label() string {
	if t == TypeIncome {
		return "Entrada"
	}
	return "Saída"
}

// ParseDate validates a YYYY-MM-DD calendar date and returns it unchanged.
func ParseDate(s string) (string, error) {
	if len(s) != len(DateLayout) {
		return "", ErrInvalidDate
	}
	if _, err := time.Parse(DateLayout, s); err != nil {
		return "", ErrInvalidDate
	}
	return s, nil
}

// MonthKeyOf derives the month partition key from a validated date.
func MonthKeyOf(date string) string {
	if len(date) < 7 {
		return ""
	}
	return date[:7]
}

// ParseMonth validates a YYYY-MM month key.
func ParseMonth(s string) (string, error) {
	if len(s) != len(MonthLayout) {
		return "", ErrInvalidMonth
	}
	if _, err := time.Parse(MonthLayout, s); err != nil {
		return "", ErrInvalidMonth
	}
	return s, nil
}

// CurrentMonth returns the month key for t in UTC.
func CurrentMonth(t time.Time) string {
	return t.UTC().Format(MonthLayout)
}

// SetDate assigns the date and recomputes the month key.
func (t *Transaction) SetDate(date string) {
	t.Date = date
	t.MonthKey = MonthKeyOf(date)
}

// Signed returns the amount with the sign implied by the type.
func (t Transaction) Signed() int64 {
	if t.Type == TypeExpense {
		return -t.Amount.Cents
	}
	return t.Amount.Cents
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(c.Emoji) == "" {
		return ErrEmptyEmoji
	}
	if _, err := ParseKind(string(c.Kind)); err != nil {
		return err
	}
	return nil
}
