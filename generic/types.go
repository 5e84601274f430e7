/*
Package generic provides the domain-agnostic building blocks of the
commission engine.

PURPOSE:
  Imported spreadsheets are dirty: amounts arrive with comma decimal
  separators and currency symbols, dates arrive as "05.03.24", "нояб. 25 г."
  or ISO strings. This package normalizes both into values the engine can
  compare and sum, and defines the reporting Window used to filter them.

KEY CONCEPTS IN THIS FILE (types.go):
  - ParseAmount: lenient monetary string parser (malformed => 0)
  - ParseAmountValue: same contract for values of unknown type
  - Percent / CapAt: the two arithmetic steps shared by rules and milestones

DESIGN PRINCIPLES:
  1. Leniency: parsing never fails, dirty input degrades to zero
  2. Precision: decimal.Decimal everywhere, no float accumulation
  3. Determinism: the same input always yields the same value

USAGE:
  amount := generic.ParseAmount("1 234,56 $") // 1234.56
  fee := generic.Percent(amount, decimal.NewFromInt(10))

SEE ALSO:
  - time.go: Date normalization
  - period.go: Reporting window
  - errors.go: Sentinel errors
*/
package generic

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// =============================================================================
// AMOUNT PARSING - Locale-tolerant monetary values
// =============================================================================

// ParseAmount normalizes a locale-formatted monetary string.
//
// The first comma is treated as the decimal separator, every character other
// than a digit, '.' or '-' is stripped, and the longest numeric prefix of
// what remains is parsed. Anything unparseable yields zero.
//
//	"1234,56"   => 1234.56
//	"$ 500"     => 500
//	"abc"       => 0
//	"1,234.56"  => 1.234 (comma is a decimal separator, not thousands)
func ParseAmount(raw string) decimal.Decimal {
	s := strings.Replace(raw, ",", ".", 1)

	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}

	prefix := numericPrefix(b.String())
	if prefix == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(prefix)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// numericPrefix returns the longest prefix of s shaped like -?\d*(\.\d*)?
// that contains at least one digit.
func numericPrefix(s string) string {
	i := 0
	if i < len(s) && s[i] == '-' {
		i++
	}
	digits := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		digits++
	}
	end := i
	if i < len(s) && s[i] == '.' {
		i++
		frac := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
			frac++
		}
		if frac > 0 {
			end = i
			digits += frac
		}
	}
	if digits == 0 {
		return ""
	}
	return s[:end]
}

// ParseAmountValue coerces a value of unknown type into an amount.
// Strings go through ParseAmount, numbers are converted directly,
// NaN, infinities, nil and unknown types become zero.
func ParseAmountValue(v any) decimal.Decimal {
	switch x := v.(type) {
	case nil:
		return decimal.Zero
	case string:
		return ParseAmount(x)
	case decimal.Decimal:
		return x
	case json.Number:
		return ParseAmount(x.String())
	case float64:
		return fromFloat(x)
	case float32:
		return fromFloat(float64(x))
	case int:
		return decimal.NewFromInt(int64(x))
	case int32:
		return decimal.NewFromInt(int64(x))
	case int64:
		return decimal.NewFromInt(x)
	default:
		return decimal.Zero
	}
}

func fromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

// =============================================================================
// PAYOUT ARITHMETIC
// =============================================================================

// Percent returns base * pct / 100.
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(hundred)
}

// CapAt returns min(v, *limit), or v unchanged when limit is nil.
func CapAt(v decimal.Decimal, limit *decimal.Decimal) decimal.Decimal {
	if limit == nil {
		return v
	}
	return decimal.Min(v, *limit)
}

// DecimalPtr returns a pointer to d. Handy for optional constraint fields.
func DecimalPtr(d decimal.Decimal) *decimal.Decimal { return &d }
