package rules

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/oarkflow/convert"

	"github.com/oarkflow/edi/pkg/utils"
)

var operators = map[string]bool{
	"exists": true, "not_exists": true,
	"eq": true, "ne": true,
	"gt": true, "lt": true, "gte": true, "lte": true,
	"in": true, "not_in": true,
	"matches": true, "not_matches": true,
}

func knownOperator(op string) bool { return operators[strings.ToLower(op)] }

// evalCondition evaluates one condition against a resolved value.
// Presence is decided by the caller; exists/not_exists consume only the
// presence flag, every other operator short-circuits to false on an
// absent or incomparable value.
func evalCondition(c Condition, value any, present bool) bool {
	switch strings.ToLower(c.Operator) {
	case "exists":
		return present
	case "not_exists":
		return !present
	}
	if !present {
		return false
	}
	switch strings.ToLower(c.Operator) {
	case "eq":
		return equalValues(value, c.Value)
	case "ne":
		return !equalValues(value, c.Value)
	case "gt", "lt", "gte", "lte":
		a, aok := toNumber(value)
		b, bok := toNumber(c.Value)
		if !aok || !bok {
			return false
		}
		switch strings.ToLower(c.Operator) {
		case "gt":
			return a > b
		case "lt":
			return a < b
		case "gte":
			return a >= b
		default:
			return a <= b
		}
	case "in":
		return containsValue(c.Value, value)
	case "not_in":
		return !containsValue(c.Value, value)
	case "matches":
		re, err := compilePattern(fmt.Sprint(c.Value))
		return err == nil && re.MatchString(stringValue(value))
	case "not_matches":
		re, err := compilePattern(fmt.Sprint(c.Value))
		return err == nil && !re.MatchString(stringValue(value))
	}
	return false
}

// equalValues compares numerically when both sides coerce to a number,
// textually otherwise.
func equalValues(a, b any) bool {
	af, aok := toNumber(a)
	bf, bok := toNumber(b)
	if aok && bok {
		return af == bf
	}
	return stringValue(a) == stringValue(b)
}

// containsValue reports membership of needle in a literal list. A
// scalar literal acts as a one-element list.
func containsValue(list any, needle any) bool {
	switch items := list.(type) {
	case []any:
		for _, item := range items {
			if equalValues(needle, item) {
				return true
			}
		}
	case []string:
		for _, item := range items {
			if equalValues(needle, item) {
				return true
			}
		}
	default:
		return equalValues(needle, list)
	}
	return false
}

func toNumber(v any) (float64, bool) {
	switch v.(type) {
	case nil, bool:
		return 0, false
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return 0, false
	}
	return convert.ToFloat64(v)
}

// stringValue renders a value for comparison and interpolation.
// Monetary floats keep two decimal places.
func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return utils.FormatAmount(t)
	case float32:
		return utils.FormatAmount(float64(t))
	default:
		return fmt.Sprint(v)
	}
}

var (
	patternMu    sync.RWMutex
	patternCache = map[string]*regexp.Regexp{}
)

func compilePattern(pattern string) (*regexp.Regexp, error) {
	patternMu.RLock()
	re, ok := patternCache[pattern]
	patternMu.RUnlock()
	if ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	patternMu.Lock()
	patternCache[pattern] = re
	patternMu.Unlock()
	return re, nil
}

// interpolate substitutes {value} and {field} placeholders in a rule
// message.
func interpolate(msg, field string, value any) string {
	msg = strings.ReplaceAll(msg, "{value}", stringValue(value))
	msg = strings.ReplaceAll(msg, "{field}", field)
	return msg
}
