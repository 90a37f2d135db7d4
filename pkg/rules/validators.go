package rules

import (
	"fmt"
	"math"
	"strings"

	"github.com/oarkflow/date"

	"github.com/oarkflow/edi/pkg/diag"
)

// runValidators applies every field-level validator of a rule against
// one transaction tree.
func runValidators(r *Rule, target map[string]any, path string, col *diag.Collector) {
	for _, v := range r.Validators {
		switch strings.ToLower(v.Type) {
		case "required":
			checkRequired(r, v, target, path, col)
		case "conditional_required":
			if v.When != nil && conditionHolds(*v.When, target) {
				checkRequired(r, v, target, path, col)
			}
		default:
			for _, m := range expand(target, v.Field) {
				checkValue(r, v, m, path, col)
			}
		}
	}
}

func conditionHolds(c Condition, target map[string]any) bool {
	value, present := resolve(target, c.Field)
	return evalCondition(c, value, present)
}

// checkRequired verifies presence and non-emptiness of the leaf field,
// expanding any wildcards in the parent path so absent list members are
// still reported.
func checkRequired(r *Rule, v Validator, target map[string]any, path string, col *diag.Collector) {
	parent, leaf, ok := splitLeaf(v.Field)
	if !ok {
		return
	}
	parents := []match{{path: "", value: any(target)}}
	if parent != "" {
		parents = expand(target, parent)
	}
	for _, pm := range parents {
		node, isMap := pm.value.(map[string]any)
		if !isMap {
			continue
		}
		fieldPath := leaf
		if pm.path != "" {
			fieldPath = pm.path + "." + leaf
		}
		value, present := node[leaf]
		if !present || stringValue(value) == "" {
			report(r, v, col, path, fieldPath, value,
				fmt.Sprintf("required field %s is missing or empty", fieldPath))
		}
	}
}

// splitLeaf separates a field path into its parent path and final map
// key. The last step must be a plain field.
func splitLeaf(path string) (parent, leaf string, ok bool) {
	steps, err := parseSteps(path)
	if err != nil || len(steps) == 0 {
		return "", "", false
	}
	last := steps[len(steps)-1]
	if last.isIndex || last.wildcard {
		return "", "", false
	}
	leaf = last.field
	i := strings.LastIndex(path, leaf)
	parent = strings.TrimSuffix(path[:i], ".")
	return parent, leaf, true
}

func checkValue(r *Rule, v Validator, m match, path string, col *diag.Collector) {
	// format checks apply to present values only; absence is the domain
	// of required and conditional_required
	if stringValue(m.value) == "" {
		return
	}
	switch strings.ToLower(v.Type) {
	case "currency_format":
		if !validCurrency(m.value) {
			report(r, v, col, path, m.path, m.value,
				fmt.Sprintf("%s is not a monetary value with at most two decimal places", m.path))
		}
	case "date_format":
		t, err := date.Parse(stringValue(m.value))
		if err != nil {
			report(r, v, col, path, m.path, m.value,
				fmt.Sprintf("%s is not a recognizable date", m.path))
			return
		}
		if v.MinDate != "" {
			if min, err := date.Parse(v.MinDate); err == nil && t.Before(min) {
				report(r, v, col, path, m.path, m.value,
					fmt.Sprintf("%s precedes minimum date %s", m.path, v.MinDate))
			}
		}
		if v.MaxDate != "" {
			if max, err := date.Parse(v.MaxDate); err == nil && t.After(max) {
				report(r, v, col, path, m.path, m.value,
					fmt.Sprintf("%s exceeds maximum date %s", m.path, v.MaxDate))
			}
		}
	case "npi_format":
		if !ValidNPI(stringValue(m.value)) {
			report(r, v, col, path, m.path, m.value,
				fmt.Sprintf("%s is not a valid NPI", m.path))
		}
	case "tax_id_format":
		if !ValidTaxID(stringValue(m.value)) {
			report(r, v, col, path, m.path, m.value,
				fmt.Sprintf("%s is not a valid tax id", m.path))
		}
	case "range":
		f, ok := toNumber(m.value)
		if !ok {
			return
		}
		if (v.Min != nil && f < *v.Min) || (v.Max != nil && f > *v.Max) {
			report(r, v, col, path, m.path, m.value,
				fmt.Sprintf("%s is outside the allowed range", m.path))
		}
	case "enum":
		s := stringValue(m.value)
		for _, allowed := range v.Values {
			if s == allowed {
				return
			}
		}
		report(r, v, col, path, m.path, m.value,
			fmt.Sprintf("%s has value %q outside the allowed set", m.path, s))
	case "regex":
		re, err := compilePattern(v.Pattern)
		if err != nil {
			return
		}
		if !re.MatchString(stringValue(m.value)) {
			report(r, v, col, path, m.path, m.value,
				fmt.Sprintf("%s does not match pattern %s", m.path, v.Pattern))
		}
	}
}

// validCurrency accepts numbers with at most two decimal places, in
// numeric or textual form.
func validCurrency(v any) bool {
	if s, ok := v.(string); ok {
		re, err := compilePattern(`^-?\d+(\.\d{1,2})?$`)
		return err == nil && re.MatchString(strings.TrimSpace(s))
	}
	f, ok := toNumber(v)
	if !ok {
		return false
	}
	cents := f * 100
	return math.Abs(cents-math.Round(cents)) < 1e-6
}

// ValidNPI checks the 10-digit National Provider Identifier format and
// its checksum: Luhn over the identifier prefixed with 80840.
func ValidNPI(s string) bool {
	if len(s) != 10 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return luhnValid("80840" + s)
}

func luhnValid(s string) bool {
	sum := 0
	double := false
	for i := len(s) - 1; i >= 0; i-- {
		d := int(s[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// ValidTaxID accepts a 9-digit employer identification number, with or
// without the conventional hyphen after the second digit.
func ValidTaxID(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) == 10 && s[2] == '-' {
		s = s[:2] + s[3:]
	}
	if len(s) != 9 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// report emits a field-validation diagnostic carrying the rule's
// severity and the validator kind in the code.
func report(r *Rule, v Validator, col *diag.Collector, path, fieldPath string, value any, fallback string) {
	msg := r.Message
	if msg == "" {
		msg = fallback
	} else {
		msg = interpolate(msg, fieldPath, value)
	}
	col.Add(diag.Diagnostic{
		Code:      "FIELD_VALIDATION_" + strings.ToUpper(v.Type),
		Severity:  r.DiagSeverity(),
		Path:      path,
		FieldPath: fieldPath,
		Value:     stringValue(value),
		RuleID:    r.ID,
		Message:   msg,
	})
}
