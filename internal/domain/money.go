package domain

import (
	"math"
	"strings"
)

// CurrencyCode is an ISO-4217 currency code, normalized to upper case.
type CurrencyCode string

// NormalizeCurrency trims and upper-cases a raw currency code.
func NormalizeCurrency(code string) CurrencyCode {
	return CurrencyCode(strings.ToUpper(strings.TrimSpace(code)))
}

// Money is an amount in a single currency. Amounts from different currencies
// are never combined without an explicit conversion through an FX rate.
type Money struct {
	Amount   float64
	Currency CurrencyCode
}

// Convert applies an FX rate to an amount. No rounding is performed here;
// intermediate accumulation runs on raw values and Round2 is applied only at
// presentation.
func Convert(amount, rate float64) float64 {
	return amount * rate
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
