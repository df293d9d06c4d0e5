// Package core provides the ledger domain types and the locale parsing
// used to turn spreadsheet text into them.
//
// This file contains the currency parsing for amounts written the
// Brazilian way: "R$ 1.234,56", "-R$ 10,00".
package core

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// CurrencyMarker is stripped from amount cells before parsing.
const CurrencyMarker = "R$"

// ParseAmount converts a locale-formatted currency string to a decimal.
//
// The cleanup strips the currency marker and every whitespace rune
// (including the non-breaking space spreadsheets insert after "R$"),
// removes the thousands separator "." and turns the decimal comma into a
// dot before parsing.
//
// Examples:
//   ParseAmount("R$ 1.234,56") -> 1234.56, nil
//   ParseAmount("-R$ 10,00")   -> -10, nil
//   ParseAmount("R$ -10,00")   -> -10, nil
//   ParseAmount("")            -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(s, CurrencyMarker, "")
	cleaned = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, cleaned)
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	if cleaned == "" || cleaned == "-" || cleaned == "+" {
		return decimal.Zero, ErrInvalidAmount
	}
	// decimal accepts exponents; a spreadsheet cell never means one.
	if strings.ContainsAny(cleaned, "eE") {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// CoerceAmount is ParseAmount with failures mapped to zero.
func CoerceAmount(s string) decimal.Decimal {
	d, err := ParseAmount(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// FormatAmount renders d as "R$ 1.234,56", or "-R$ 1.234,56" when negative.
// At least two fractional digits are written and none is dropped, so
// ParseAmount(FormatAmount(d)) equals d.
func FormatAmount(d decimal.Decimal) string {
	neg := d.IsNegative()
	fixed := d.Abs().StringFixed(fractionDigits(d))
	intPart, fracPart, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := CurrencyMarker + " " + b.String() + "," + fracPart
	if neg {
		return "-" + out
	}
	return out
}

// fractionDigits is the number of significant fractional digits of d, at
// least two.
func fractionDigits(d decimal.Decimal) int32 {
	places := int32(2)
	if _, frac, ok := strings.Cut(d.Abs().String(), "."); ok && int32(len(frac)) > places {
		places = int32(len(frac))
	}
	return places
}
