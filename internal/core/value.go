// Package core provides value coercion for raw snapshot columns.
//
// Source tables store portfolio values and periods as loosely typed columns.
// Coercion never fails loudly: anything that cannot be read as a number
// becomes an absent value, which classification and totals then treat
// differently (presence for status, zero for sums).
package core

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseValue reads a raw portfolio value as an optional decimal.
//
// It accepts plain decimals with an optional sign and an optional exponent,
// surrounded by whitespace, the same inputs a SQL cast to FLOAT accepts. A
// comma is not a decimal separator:
//
//	ParseValue("1500.25") -> 1500.25
//	ParseValue(" -3 ")    -> -3
//	ParseValue("1.5e3")   -> 1500
//	ParseValue("1234,5")  -> null
//	ParseValue("n/a")     -> null
func ParseValue(raw string) decimal.NullDecimal {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.NullDecimal{}
	}
	s = strings.TrimPrefix(s, "+")
	for _, r := range s {
		if !(r >= '0' && r <= '9') && r != '.' && r != '-' && r != 'e' && r != 'E' && r != '+' {
			return decimal.NullDecimal{}
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// CoerceValue converts a driver value into an optional decimal.
func CoerceValue(v any) decimal.NullDecimal {
	switch x := v.(type) {
	case nil:
		return decimal.NullDecimal{}
	case decimal.Decimal:
		return decimal.NewNullDecimal(x)
	case decimal.NullDecimal:
		return x
	case int:
		return decimal.NewNullDecimal(decimal.NewFromInt(int64(x)))
	case int32:
		return decimal.NewNullDecimal(decimal.NewFromInt(int64(x)))
	case int64:
		return decimal.NewNullDecimal(decimal.NewFromInt(x))
	case float32:
		return coerceFloat(float64(x))
	case float64:
		return coerceFloat(x)
	case string:
		return ParseValue(x)
	case []byte:
		return ParseValue(string(x))
	default:
		return ParseValue(fmt.Sprint(x))
	}
}

func coerceFloat(f float64) decimal.NullDecimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(f))
}

// ParsePeriod reads a raw arrears period. Integral numbers (including
// "201801.0") are accepted; anything else is an absent period.
func ParsePeriod(raw string) Period {
	v := ParseValue(raw)
	if !v.Valid || !v.Decimal.Equal(v.Decimal.Truncate(0)) {
		return Period{}
	}
	if !v.Decimal.BigInt().IsInt64() {
		return Period{}
	}
	n := v.Decimal.IntPart()
	if n > math.MaxInt32 || n < math.MinInt32 {
		return Period{}
	}
	return PeriodOf(int(n))
}

// MustValue is a helper for fixtures and tests.
func MustValue(s string) decimal.NullDecimal {
	v := ParseValue(s)
	if !v.Valid {
		panic(fmt.Sprintf("core: invalid value %q", s))
	}
	return v
}
