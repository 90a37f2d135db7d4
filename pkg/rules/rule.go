package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oarkflow/bcl"
	"github.com/oarkflow/json"
	"gopkg.in/yaml.v3"

	"github.com/oarkflow/edi/pkg/diag"
	"github.com/oarkflow/edi/pkg/x12"
)

// Condition is one predicate of a rule. All conditions of a rule must
// hold for the rule to fire.
type Condition struct {
	Field    string `json:"field" yaml:"field"`
	Operator string `json:"operator" yaml:"operator"`
	Value    any    `json:"value,omitempty" yaml:"value,omitempty"`
	Message  string `json:"message,omitempty" yaml:"message,omitempty"`
}

// Validator is a declarative field-level check. Type selects the check;
// the remaining fields parameterize it.
type Validator struct {
	Field   string   `json:"field" yaml:"field"`
	Type    string   `json:"type" yaml:"type"`
	Min     *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max     *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	MinDate string   `json:"min_date,omitempty" yaml:"min_date,omitempty"`
	MaxDate string   `json:"max_date,omitempty" yaml:"max_date,omitempty"`
	Values  []string `json:"values,omitempty" yaml:"values,omitempty"`
	Pattern string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	// When gates conditional_required: the field is required only while
	// the gate condition holds.
	When *Condition `json:"when,omitempty" yaml:"when,omitempty"`
}

// CrossCheck is a declarative cross-field check. Type selects between
// balance_check (sum comparison within tolerance), consistency_check
// (all listed fields equal), and calculation_check (a boolean
// expression over the transaction tree).
type CrossCheck struct {
	Type       string   `json:"type" yaml:"type"`
	LeftSum    []string `json:"left_sum,omitempty" yaml:"left_sum,omitempty"`
	RightSum   []string `json:"right_sum,omitempty" yaml:"right_sum,omitempty"`
	Tolerance  float64  `json:"tolerance,omitempty" yaml:"tolerance,omitempty"`
	Fields     []string `json:"fields,omitempty" yaml:"fields,omitempty"`
	Expression string   `json:"expression,omitempty" yaml:"expression,omitempty"`
}

// CheckFunc is the programmatic escape hatch for built-in rules whose
// logic is not expressible as conditions, such as control-number
// uniqueness. It receives the transaction-set code, the transaction
// tree, and the envelope path of the transaction under evaluation.
type CheckFunc func(code string, target map[string]any, path string, r *Rule, col *diag.Collector)

// DocCheckFunc is the document-scoped counterpart of CheckFunc, for
// checks that span transactions, such as control-number uniqueness
// within a run. It runs once per evaluation.
type DocCheckFunc func(doc *x12.Document, r *Rule, col *diag.Collector)

// Rule is one declarative validation rule.
type Rule struct {
	ID               string       `json:"id" yaml:"id"`
	Description      string       `json:"description,omitempty" yaml:"description,omitempty"`
	Severity         string       `json:"severity" yaml:"severity"`
	TransactionTypes []string     `json:"transaction_types,omitempty" yaml:"transaction_types,omitempty"`
	Category         string       `json:"category,omitempty" yaml:"category,omitempty"`
	Enabled          *bool        `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Conditions       []Condition  `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Validators       []Validator  `json:"validators,omitempty" yaml:"validators,omitempty"`
	CrossChecks      []CrossCheck `json:"cross_checks,omitempty" yaml:"cross_checks,omitempty"`
	ErrorCode        string       `json:"error_code,omitempty" yaml:"error_code,omitempty"`
	Message          string       `json:"message,omitempty" yaml:"message,omitempty"`

	check    CheckFunc
	docCheck DocCheckFunc
}

// IsEnabled reports whether the rule participates in evaluation.
// Absence of the enabled flag means enabled.
func (r *Rule) IsEnabled() bool { return r.Enabled == nil || *r.Enabled }

// AppliesTo reports whether the rule targets the given transaction-set
// code. An empty type set matches everything.
func (r *Rule) AppliesTo(code string) bool {
	if len(r.TransactionTypes) == 0 {
		return true
	}
	for _, t := range r.TransactionTypes {
		if t == code {
			return true
		}
	}
	return false
}

// Code returns the diagnostic code the rule emits, defaulting to its id.
func (r *Rule) Code() string {
	if r.ErrorCode != "" {
		return r.ErrorCode
	}
	return r.ID
}

// DiagSeverity maps the rule's declared severity onto the collector's
// scale. Unrecognized values degrade to warning.
func (r *Rule) DiagSeverity() diag.Severity {
	switch strings.ToLower(r.Severity) {
	case "error":
		return diag.SeverityError
	case "info":
		return diag.SeverityInfo
	default:
		return diag.SeverityWarning
	}
}

// File is the on-disk shape of a rule file. Unknown top-level fields
// land in Metadata and are carried along untouched.
type File struct {
	Version        string         `json:"version" yaml:"version"`
	TransactionSet string         `json:"transaction_set,omitempty" yaml:"transaction_set,omitempty"`
	Description    string         `json:"description,omitempty" yaml:"description,omitempty"`
	Rules          []*Rule        `json:"rules" yaml:"rules"`
	Metadata       map[string]any `json:"metadata,omitempty" yaml:",inline"`
}

// LoadFile loads a rule file based on its extension.
func LoadFile(path string) (*File, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return loadFile(path, yaml.Unmarshal)
	case ".json":
		return loadFile(path, func(data []byte, v any) error {
			return json.Unmarshal(data, v)
		})
	case ".bcl":
		return loadFile(path, func(data []byte, v any) error {
			_, err := bcl.Unmarshal(data, v)
			return err
		})
	default:
		return nil, fmt.Errorf("unsupported rule file format: %s", ext)
	}
}

// LoadFileFromString loads rules from raw text, useful for tests and
// inline configuration.
func LoadFileFromString(content, format string) (*File, error) {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		return decodeFile([]byte(content), yaml.Unmarshal)
	case "json":
		return decodeFile([]byte(content), func(data []byte, v any) error {
			return json.Unmarshal(data, v)
		})
	case "bcl":
		return decodeFile([]byte(content), func(data []byte, v any) error {
			_, err := bcl.Unmarshal(data, v)
			return err
		})
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func loadFile(path string, unmarshal func([]byte, any) error) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file %s: %w", path, err)
	}
	f, err := decodeFile(data, unmarshal)
	if err != nil {
		return nil, fmt.Errorf("parse rule file %s: %w", path, err)
	}
	return f, nil
}

func decodeFile(data []byte, unmarshal func([]byte, any) error) (*File, error) {
	var f File
	if err := unmarshal(data, &f); err != nil {
		return nil, err
	}
	f.collectMetadata(data, unmarshal)
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// collectMetadata carries unknown top-level fields into Metadata for
// formats without an inline capture (yaml handles this through its
// struct tag). A second decode into a generic map catches the rest.
func (f *File) collectMetadata(data []byte, unmarshal func([]byte, any) error) {
	var raw map[string]any
	if err := unmarshal(data, &raw); err != nil {
		return
	}
	for k, v := range raw {
		switch k {
		case "version", "transaction_set", "description", "rules", "metadata":
			continue
		}
		if f.Metadata == nil {
			f.Metadata = make(map[string]any)
		}
		if _, ok := f.Metadata[k]; !ok {
			f.Metadata[k] = v
		}
	}
}

// Validate checks structural invariants of a loaded rule file: every
// rule needs an id, a known severity, and at least one condition,
// validator, or cross check. File-level transaction_set, when present,
// becomes the default type filter of rules that declare none.
func (f *File) Validate() error {
	seen := make(map[string]bool, len(f.Rules))
	for i, r := range f.Rules {
		if r == nil {
			return fmt.Errorf("rule at index %d is empty", i)
		}
		if r.ID == "" {
			return fmt.Errorf("rule at index %d is missing an id", i)
		}
		if seen[r.ID] {
			return fmt.Errorf("duplicate rule id %q", r.ID)
		}
		seen[r.ID] = true
		switch strings.ToLower(r.Severity) {
		case "", "error", "warning", "info":
		default:
			return fmt.Errorf("rule %s: unknown severity %q", r.ID, r.Severity)
		}
		if len(r.Conditions) == 0 && len(r.Validators) == 0 && len(r.CrossChecks) == 0 {
			return fmt.Errorf("rule %s has no conditions, validators, or cross checks", r.ID)
		}
		for _, c := range r.Conditions {
			if !knownOperator(c.Operator) {
				return fmt.Errorf("rule %s: unknown operator %q", r.ID, c.Operator)
			}
		}
		if len(r.TransactionTypes) == 0 && f.TransactionSet != "" {
			r.TransactionTypes = []string{f.TransactionSet}
		}
	}
	return nil
}
