// Package money normalizes the loosely-typed monetary values that come out
// of receipt extraction into integer minor units (Rupiah).
package money

import (
	"encoding/json"
	"math"
	"strconv"
)

// ParseAmount converts an arbitrary extracted value into a non-negative
// integer amount of minor units. It is total: invalid input yields 0, never
// an error.
//
// Rules:
//   - nil -> 0
//   - integers pass through
//   - floats round to nearest, ties away from zero
//   - strings keep only their digit characters and parse the remaining run
//     as a non-negative integer ("Rp 12.500" -> 12500). Decimal points,
//     currency symbols and signs are discarded. This is a documented
//     limitation of the upstream extraction format, not something to fix
//     here: Rupiah amounts have no fractional part and the dots are
//     thousands separators.
//   - anything else -> 0
func ParseAmount(v any) int64 {
	switch n := v.(type) {
	case nil:
		return 0
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case float32:
		return int64(math.Round(float64(n)))
	case float64:
		return int64(math.Round(n))
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return int64(math.Round(f))
		}
		return 0
	case string:
		return parseDigits(n)
	default:
		return 0
	}
}

// parseDigits keeps the digit characters of s and parses them as one
// integer run. No digits means 0.
func parseDigits(s string) int64 {
	digits := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			digits = append(digits, s[i])
		}
	}
	if len(digits) == 0 {
		return 0
	}
	n, err := strconv.ParseInt(string(digits), 10, 64)
	if err != nil {
		// Digit run overflows int64; treat like any other unparseable input.
		return 0
	}
	return n
}
