package core

import (
	"errors"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for amounts that are not plain non-negative decimals.
var ErrInvalidAmount = errors.New("invalid amount")

// ParseMoney converts a user supplied amount into a decimal with two fraction digits.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up on the third decimal place. Signs, exponents and grouping separators
// are rejected.
//
// Examples:
//
//	ParseMoney("12.34")  -> 12.34
//	ParseMoney("12,345") -> 12.35
//	ParseMoney("0")      -> 0.00
func ParseMoney(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	parts := strings.Split(s, ".")
	if len(parts) > 2 || s == "." {
		return decimal.Zero, ErrInvalidAmount
	}
	if parts[0] == "" {
		s = "0" + s
	}
	s = strings.TrimSuffix(s, ".")
	for _, part := range parts {
		for _, r := range part {
			if !unicode.IsDigit(r) {
				return decimal.Zero, ErrInvalidAmount
			}
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d.Round(2), nil
}

// FormatMoney renders an amount with exactly two fraction digits.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}
