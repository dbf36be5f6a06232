package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Precision is the number of decimal places kept for company-currency amounts
const Precision = 2

// Epsilon is the smallest representable difference (0.01)
var Epsilon = decimal.New(1, -Precision)

// Zero is the zero amount
var Zero = decimal.Zero

// Parse converts a human-readable amount string to a rounded decimal
// Accepts "1500", "1500.5", "1 500,50" (French grouping and comma separator)
func Parse(amountStr string) (decimal.Decimal, error) {
	s := strings.TrimSpace(amountStr)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount is required")
	}

	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount format")
	}

	return Round(d), nil
}

// MustParse is Parse for literals; it panics on malformed input
func MustParse(amountStr string) decimal.Decimal {
	d, err := Parse(amountStr)
	if err != nil {
		panic(err)
	}
	return d
}

// Round rounds half away from zero to Precision decimals
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Precision)
}

// Format renders an amount with exactly two decimals, e.g. "1500.00"
func Format(d decimal.Decimal) string {
	return d.StringFixed(Precision)
}

// IsZero reports whether the amount rounds to zero
func IsZero(d decimal.Decimal) bool {
	return Round(d).IsZero()
}

// NearlyEqual reports whether |a - b| < Epsilon
func NearlyEqual(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(Epsilon)
}

// Sum adds the given amounts
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Min returns the smaller of two amounts
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
