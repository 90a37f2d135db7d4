package utils

import (
	"fmt"
	"math"
	"strings"

	"github.com/oarkflow/convert"
)

// ToFloat coerces v to a float64 using the shared conversion rules.
func ToFloat(v any) (float64, bool) {
	return convert.ToFloat64(v)
}

// ParseAmount parses a monetary element into a float64. X12 monetary
// values carry at most two fractional digits; an empty element is zero.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	f, ok := convert.ToFloat64(s)
	if !ok {
		return 0, fmt.Errorf("invalid monetary value %q", s)
	}
	return f, nil
}

// FormatAmount renders a monetary value with two fractional digits.
func FormatAmount(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

// AmountsEqual compares two monetary values within tolerance.
func AmountsEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

// FormatDateYYMMDD normalizes YYMMDD to YYYY-MM-DD. Values that do not
// match the expected width pass through unchanged.
func FormatDateYYMMDD(s string) string {
	if len(s) == 6 {
		return "20" + s[0:2] + "-" + s[2:4] + "-" + s[4:6]
	}
	return s
}

// FormatDateCCYYMMDD normalizes CCYYMMDD to YYYY-MM-DD.
func FormatDateCCYYMMDD(s string) string {
	if len(s) == 8 {
		return s[0:4] + "-" + s[4:6] + "-" + s[6:8]
	}
	return s
}

// FormatTimeHHMM normalizes HHMM to HH:MM. Longer values (HHMMSS) keep
// only hours and minutes, matching interchange time precision.
func FormatTimeHHMM(s string) string {
	if len(s) >= 4 {
		return s[0:2] + ":" + s[2:4]
	}
	return s
}
