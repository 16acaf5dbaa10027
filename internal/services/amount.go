package services

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	strictAmountPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([a-z]*)$`)
	digitRunPattern     = regexp.MustCompile(`\d+`)

	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)
)

// ParseAmount converts shorthand such as "20rb", "1jt" or "20.000" into a
// number. Dots are thousands separators and a comma marks decimals ("1,5jt").
// Unparseable input yields zero; callers must reject it with IsValidAmount.
func ParseAmount(input string) decimal.Decimal {
	raw := strings.ToLower(strings.TrimSpace(input))
	if raw == "" {
		return decimal.Zero
	}

	cleaned := strings.ReplaceAll(raw, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	if m := strictAmountPattern.FindStringSubmatch(cleaned); m != nil {
		if multiplier, ok := suffixMultiplier(m[2]); ok {
			value, err := decimal.NewFromString(m[1])
			if err == nil {
				return value.Mul(multiplier)
			}
		}
	}

	digits := digitRunPattern.FindString(cleaned)
	if digits == "" {
		return decimal.Zero
	}
	value, err := decimal.NewFromString(digits)
	if err != nil {
		return decimal.Zero
	}

	switch {
	case strings.Contains(raw, "jt"), strings.Contains(raw, "juta"):
		return value.Mul(million)
	case strings.Contains(raw, "k"), strings.Contains(raw, "rb"), strings.Contains(raw, "ribu"):
		return value.Mul(thousand)
	}
	return value
}

func suffixMultiplier(suffix string) (decimal.Decimal, bool) {
	switch suffix {
	case "":
		return decimal.NewFromInt(1), true
	case "k", "rb", "ribu":
		return thousand, true
	case "jt", "juta":
		return million, true
	}
	return decimal.Zero, false
}

// IsValidAmount reports whether a parsed amount can be staged. Amounts are
// stored with two decimal places, so anything that rounds to zero is rejected.
func IsValidAmount(amount decimal.Decimal) bool {
	return amount.Round(2).IsPositive()
}
