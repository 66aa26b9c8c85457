// Package core provides money parsing and handling utilities.
//
// Amounts enter the system as user-typed decimal strings and are stored as
// integer cents. Decimal arithmetic is done with shopspring/decimal so no
// float ever touches a stored value.
package core

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmountCents caps a single entry at R$ 100 bilhões. Month sums of
// capped rows stay far inside int64.
const MaxAmountCents int64 = 10_000_000_000_000

// Plain decimals only: no sign, no exponent, at most 11 integer and 10
// fraction digits. Checked before any decimal arithmetic.
var amountPattern = regexp.MustCompile(`^\d{1,11}(\.\d{1,10})?$`)

var (
	hundred  = decimal.NewFromInt(100)
	maxCents = decimal.NewFromInt(MaxAmountCents)
)

// ParseAmountToCents converts a decimal string to cents.
//
// Both dot (12.34) and comma (12,34) separators are accepted, but not mixed.
// The value is rounded to the nearest cent, halves away from zero, and must
// be positive and at most MaxAmountCents after rounding. Signs and exponent
// notation are rejected.
//
// Examples:
//
//	ParseAmountToCents("45,90")  -> 4590, nil
//	ParseAmountToCents("12.345") -> 1235, nil
//	ParseAmountToCents("0.004")  -> 0, ErrInvalidAmount
func ParseAmountToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") || strings.Count(s, ",") > 1 {
			return 0, ErrInvalidAmount
		}
		s = strings.Replace(s, ",", ".", 1)
	}
	if !amountPattern.MatchString(s) {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	cents := d.Mul(hundred).Round(0)
	if !cents.IsPositive() || cents.GreaterThan(maxCents) {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

// Decimal returns the amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Float returns the amount in currency units for spreadsheet cells. Use
// Cents for arithmetic.
func (m Money) Float() float64 {
	return m.Decimal().InexactFloat64()
}

// FormatBRL renders cents as "R$ 1234,56" with a leading minus for negatives.
func FormatBRL(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return sign + "R$ " + strings.Replace(decimal.New(cents, -2).StringFixed(2), ".", ",", 1)
}
