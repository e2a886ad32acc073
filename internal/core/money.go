// Package core provides money parsing and handling utilities.
//
// Amounts are carried as decimal.Decimal. This file converts user and
// spreadsheet input into decimals and rounds values for presentation.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a decimal string into a non-negative amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators, an
// optional currency sign and surrounding whitespace. The result is rounded
// half-up to two decimal places.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("€12,34") -> 12.34, nil
//	ParseAmount("12.345") -> 12.35, nil
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimLeftFunc(s, func(r rune) bool {
		return r == '€' || r == '$' || r == '£' || unicode.IsSpace(r)
	})
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	} else {
		// thousands separators
		s = strings.ReplaceAll(s, ",", "")
	}
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d.Round(2), nil
}

// Round2 rounds a float for JSON output without changing stored precision.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// ToCents converts an amount to integer cents, rounding half-up.
func ToCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// FromCents is the inverse of ToCents.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
