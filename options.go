package edi

import (
	"fmt"
	"time"

	"github.com/oarkflow/edi/pkg/rules"
	"github.com/oarkflow/edi/pkg/transactions"
)

type Option func(*EDI) error

// WithRuleSets appends one or more built-in rule sets by name: basic,
// business, hipaa, hipaa-advanced, enhanced-business, comprehensive,
// all.
func WithRuleSets(names ...string) Option {
	return func(e *EDI) error {
		for _, name := range names {
			set, err := rules.BuiltinSet(name)
			if err != nil {
				return err
			}
			e.ruleList = append(e.ruleList, set...)
		}
		return nil
	}
}

// WithRules appends rules directly.
func WithRules(ruleset ...*rules.Rule) Option {
	return func(e *EDI) error {
		e.ruleList = append(e.ruleList, ruleset...)
		return nil
	}
}

// WithRuleFile loads a rule file (yaml, json, or bcl by extension) and
// appends its rules.
func WithRuleFile(path string) Option {
	return func(e *EDI) error {
		f, err := rules.LoadFile(path)
		if err != nil {
			return err
		}
		e.ruleList = append(e.ruleList, f.Rules...)
		return nil
	}
}

// WithRuleSource parses inline rule text in the given format and
// appends its rules.
func WithRuleSource(content, format string) Option {
	return func(e *EDI) error {
		f, err := rules.LoadFileFromString(content, format)
		if err != nil {
			return err
		}
		e.ruleList = append(e.ruleList, f.Rules...)
		return nil
	}
}

// WithProjector registers a projector for an additional transaction-set
// code, with optional default rules that join the engine's list.
func WithProjector(code string, p transactions.Projector, defaults ...*rules.Rule) Option {
	return func(e *EDI) error {
		if code == "" || p == nil {
			return fmt.Errorf("projector registration needs a code and a projector")
		}
		e.pending = append(e.pending, pendingProjector{code: code, p: p, defaults: defaults})
		return nil
	}
}

// WithPolicy sets the error strategy for rule evaluation.
func WithPolicy(p rules.Policy) Option {
	return func(e *EDI) error {
		e.policy = p
		return nil
	}
}

// WithRuleBudget caps wall-clock time spent in rule evaluation. On
// overrun the remaining rules are skipped and a RULES_TIMEOUT info
// diagnostic is recorded.
func WithRuleBudget(d time.Duration) Option {
	return func(e *EDI) error {
		e.budget = d
		return nil
	}
}

// WithPLBSignConvention selects how provider-level adjustment amounts
// enter the 835 balance equation.
func WithPLBSignConvention(sign transactions.PLBSignConvention) Option {
	return func(e *EDI) error {
		e.cfg.PLBSign = sign
		return nil
	}
}
