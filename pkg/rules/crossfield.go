package rules

import (
	"fmt"
	"math"
	"strings"

	"github.com/oarkflow/expr"

	"github.com/oarkflow/edi/pkg/diag"
	"github.com/oarkflow/edi/pkg/utils"
)

// runCrossChecks applies every cross-field check of a rule against one
// transaction tree.
func runCrossChecks(r *Rule, target map[string]any, path string, col *diag.Collector) {
	for _, cc := range r.CrossChecks {
		switch strings.ToLower(cc.Type) {
		case "balance_check":
			balanceCheck(r, cc, target, path, col)
		case "consistency_check":
			consistencyCheck(r, cc, target, path, col)
		case "calculation_check":
			calculationCheck(r, cc, target, path, col)
		}
	}
}

// balanceCheck compares two sums of fields within a tolerance. Zero
// tolerance means exact match to the cent.
func balanceCheck(r *Rule, cc CrossCheck, target map[string]any, path string, col *diag.Collector) {
	left := sumPaths(target, cc.LeftSum)
	right := sumPaths(target, cc.RightSum)
	tolerance := cc.Tolerance
	if tolerance == 0 {
		tolerance = 0.01
	}
	delta := math.Abs(left - right)
	if delta <= tolerance {
		return
	}
	msg := r.Message
	if msg == "" {
		msg = fmt.Sprintf("sums differ by %s, beyond tolerance %s",
			utils.FormatAmount(delta), utils.FormatAmount(tolerance))
	}
	col.Add(diag.Diagnostic{
		Code:     r.Code(),
		Severity: r.DiagSeverity(),
		Path:     path,
		RuleID:   r.ID,
		Message:  msg,
		Context: map[string]any{
			"left":      utils.FormatAmount(left),
			"right":     utils.FormatAmount(right),
			"delta":     utils.FormatAmount(delta),
			"tolerance": utils.FormatAmount(tolerance),
		},
	})
}

// consistencyCheck requires all present listed fields to hold the same
// value.
func consistencyCheck(r *Rule, cc CrossCheck, target map[string]any, path string, col *diag.Collector) {
	var first any
	var firstPath string
	seen := false
	for _, p := range cc.Fields {
		for _, m := range expand(target, p) {
			if !seen {
				first, firstPath, seen = m.value, m.path, true
				continue
			}
			if !equalValues(first, m.value) {
				msg := r.Message
				if msg == "" {
					msg = fmt.Sprintf("%s (%s) disagrees with %s (%s)",
						m.path, stringValue(m.value), firstPath, stringValue(first))
				}
				col.Add(diag.Diagnostic{
					Code:      r.Code(),
					Severity:  r.DiagSeverity(),
					Path:      path,
					FieldPath: m.path,
					Value:     stringValue(m.value),
					RuleID:    r.ID,
					Message:   msg,
				})
			}
		}
	}
}

// calculationCheck evaluates a boolean expression over the transaction
// tree and fires when the expression is false. Expressions that fail to
// parse or evaluate do not fire.
func calculationCheck(r *Rule, cc CrossCheck, target map[string]any, path string, col *diag.Collector) {
	program, err := expr.Parse(cc.Expression)
	if err != nil {
		return
	}
	result, err := program.Eval(target)
	if err != nil {
		return
	}
	if ok, isBool := result.(bool); isBool && ok {
		return
	}
	msg := r.Message
	if msg == "" {
		msg = fmt.Sprintf("calculation %q does not hold", cc.Expression)
	}
	col.Add(diag.Diagnostic{
		Code:     r.Code(),
		Severity: r.DiagSeverity(),
		Path:     path,
		RuleID:   r.ID,
		Message:  msg,
	})
}
