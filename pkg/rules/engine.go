package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/oarkflow/edi/pkg/diag"
	"github.com/oarkflow/edi/pkg/x12"
)

// Policy is the engine's error strategy. MaxErrors caps the total
// error-severity diagnostics of a run (zero means unlimited); FailFast
// stops rule evaluation at the first error-severity rule firing. The
// parsed document is returned either way.
type Policy struct {
	MaxErrors int
	FailFast  bool
}

// Engine evaluates an ordered rule list against a parsed document. It
// is constructed once, holds no mutable state across runs, and may be
// shared by concurrent evaluations of distinct documents.
type Engine struct {
	rules  []*Rule
	policy Policy
	budget time.Duration
}

func NewEngine(ruleset []*Rule, policy Policy) *Engine {
	return &Engine{rules: ruleset, policy: policy}
}

// SetBudget installs a wall-clock budget for Evaluate. When exceeded,
// remaining rules are skipped and a RULES_TIMEOUT info diagnostic is
// recorded.
func (e *Engine) SetBudget(d time.Duration) { e.budget = d }

// Rules returns the engine's rule list in registration order.
func (e *Engine) Rules() []*Rule { return e.rules }

// evalTarget flattens one transaction set for field resolution: the
// semantic tree's fields at top level with the envelope header
// alongside, so rules can reference both "financial_information.x" and
// "header.control_number".
type evalTarget struct {
	path   string
	code   string
	target map[string]any
}

// Evaluate runs every enabled rule against every projected transaction
// of the document, in rule-registration order. Transactions without a
// semantic tree are not evaluated.
func (e *Engine) Evaluate(doc *x12.Document, col *diag.Collector) {
	var deadline time.Time
	if e.budget > 0 {
		deadline = time.Now().Add(e.budget)
	}
	// fail-fast covers errors already collected during parsing and
	// projection, not just rule firings
	if e.policy.FailFast && col.ErrorCount() > 0 {
		return
	}
	targets := collectTargets(doc)
	for _, r := range e.rules {
		if !r.IsEnabled() {
			continue
		}
		if e.policy.MaxErrors > 0 && col.ErrorCount() >= e.policy.MaxErrors {
			return
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			col.Info("RULES_TIMEOUT", "",
				"rule evaluation budget exhausted; remaining rules skipped")
			return
		}
		before := col.ErrorCount()
		applied := false
		for _, t := range targets {
			if !r.AppliesTo(t.code) {
				continue
			}
			applied = true
			e.evalRule(r, t, col)
		}
		if r.docCheck != nil {
			applied = true
			r.docCheck(doc, r, col)
		}
		if applied {
			col.RuleApplied()
		}
		if e.policy.FailFast && col.ErrorCount() > before {
			return
		}
	}
}

func collectTargets(doc *x12.Document) []evalTarget {
	var targets []evalTarget
	for i, ic := range doc.Interchanges {
		for j, g := range ic.FunctionalGroups {
			for k, ts := range g.Transactions {
				if ts.Data == nil {
					continue
				}
				path := fmt.Sprintf("interchanges[%d].functional_groups[%d].transactions[%d]", i, j, k)
				tree := ts.Data.ToMap()
				target := make(map[string]any, len(tree)+1)
				for key, value := range tree {
					target[key] = value
				}
				target["header"] = map[string]any{
					"transaction_set_code": ts.Header.Code,
					"control_number":       ts.Header.ControlNumber,
				}
				targets = append(targets, evalTarget{path: path, code: ts.Header.Code, target: target})
			}
		}
	}
	return targets
}

func (e *Engine) evalRule(r *Rule, t evalTarget, col *diag.Collector) {
	if len(r.Conditions) > 0 {
		e.evalConditions(r, t, col)
	}
	if len(r.Validators) > 0 {
		runValidators(r, t.target, t.path, col)
	}
	if len(r.CrossChecks) > 0 {
		runCrossChecks(r, t.target, t.path, col)
	}
	if r.check != nil {
		r.check(t.code, t.target, t.path, r, col)
	}
}

// evalConditions fires the rule when every condition holds. A wildcard
// in a condition field multiplies evaluation: the first wildcarded
// condition drives, its brackets are bound to concrete indices one at a
// time, and sibling conditions sharing each bound prefix follow the
// same binding. The rule fires once per complete binding that satisfies
// every condition.
func (e *Engine) evalConditions(r *Rule, t evalTarget, col *diag.Collector) {
	driver := -1
	for i, c := range r.Conditions {
		if strings.Contains(c.Field, "[*]") {
			driver = i
			break
		}
	}
	if driver < 0 {
		if fieldPath, value, ok := evalConcrete(r.Conditions, t.target); ok {
			e.fire(r, t, fieldPath, value, col)
		}
		return
	}
	e.evalBindings(r, r.Conditions, driver, t, col)
}

// evalBindings rebinds the driver's leftmost remaining wildcard to each
// concrete index and recurses until the driver path is fully concrete,
// then evaluates the bound condition set.
func (e *Engine) evalBindings(r *Rule, conditions []Condition, driver int, t evalTarget, col *diag.Collector) {
	field := conditions[driver].Field
	star := strings.Index(field, "[*]")
	if star < 0 {
		if _, _, ok := evalConcrete(conditions, t.target); ok {
			value, _ := resolve(t.target, field)
			e.fire(r, t, field, value, col)
		}
		return
	}
	prefix := field[:star+3]
	for _, m := range expand(t.target, prefix) {
		// m.path is the concrete counterpart of prefix, e.g. "claims[2]"
		bound := make([]Condition, len(conditions))
		for i, c := range conditions {
			bound[i] = c
			if strings.HasPrefix(c.Field, prefix) {
				bound[i].Field = m.path + c.Field[len(prefix):]
			}
		}
		e.evalBindings(r, bound, driver, t, col)
	}
}

// evalConcrete evaluates concrete conditions, returning the field and
// value of the first condition for diagnostic annotation.
func evalConcrete(conditions []Condition, target map[string]any) (string, any, bool) {
	var fieldPath string
	var value any
	for i, c := range conditions {
		v, present := resolve(target, c.Field)
		if !evalCondition(c, v, present) {
			return "", nil, false
		}
		if i == 0 {
			fieldPath, value = c.Field, v
		}
	}
	return fieldPath, value, true
}

func (e *Engine) fire(r *Rule, t evalTarget, fieldPath string, value any, col *diag.Collector) {
	msg := r.Message
	if msg == "" {
		msg = r.Description
	}
	col.Add(diag.Diagnostic{
		Code:      r.Code(),
		Severity:  r.DiagSeverity(),
		Path:      t.path,
		FieldPath: fieldPath,
		Value:     stringValue(value),
		RuleID:    r.ID,
		Message:   interpolate(msg, fieldPath, value),
	})
}
