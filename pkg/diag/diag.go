package diag

import (
	"strings"

	"github.com/oarkflow/xid"
)

// Severity classifies a diagnostic entry.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Diagnostic is a single finding produced by parsing, projection, or rule
// evaluation. Codes are stable strings; once published they keep their
// semantics across versions.
type Diagnostic struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Severity  Severity       `json:"severity"`
	Path      string         `json:"path,omitempty"`
	FieldPath string         `json:"field_path,omitempty"`
	Value     string         `json:"value,omitempty"`
	RuleID    string         `json:"rule_id,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

// Collector accumulates diagnostics in production order. It is append-only
// and scoped to a single parse invocation. Duplicate entries, keyed by
// (code, path, value), are suppressed.
type Collector struct {
	entries      []Diagnostic
	seen         map[string]struct{}
	counts       map[Severity]int
	rulesApplied int
}

func NewCollector() *Collector {
	return &Collector{
		seen:   make(map[string]struct{}),
		counts: make(map[Severity]int),
	}
}

// Add appends d unless an identical (code, path, value) entry exists.
func (c *Collector) Add(d Diagnostic) {
	var key strings.Builder
	key.WriteString(d.Code)
	key.WriteByte(0)
	key.WriteString(d.Path)
	key.WriteByte(0)
	key.WriteString(d.FieldPath)
	key.WriteByte(0)
	key.WriteString(d.Value)
	if _, dup := c.seen[key.String()]; dup {
		return
	}
	c.seen[key.String()] = struct{}{}
	c.entries = append(c.entries, d)
	c.counts[d.Severity]++
}

// Error records an error-severity diagnostic.
func (c *Collector) Error(code, path, message string) {
	c.Add(Diagnostic{Code: code, Path: path, Message: message, Severity: SeverityError})
}

// Warning records a warning-severity diagnostic.
func (c *Collector) Warning(code, path, message string) {
	c.Add(Diagnostic{Code: code, Path: path, Message: message, Severity: SeverityWarning})
}

// Info records an info-severity diagnostic.
func (c *Collector) Info(code, path, message string) {
	c.Add(Diagnostic{Code: code, Path: path, Message: message, Severity: SeverityInfo})
}

// RuleApplied bumps the count of rules evaluated during this run.
func (c *Collector) RuleApplied() { c.rulesApplied++ }

// RulesApplied reports how many rules have been evaluated so far.
func (c *Collector) RulesApplied() int { return c.rulesApplied }

// Entries returns the accumulated diagnostics in production order.
func (c *Collector) Entries() []Diagnostic { return c.entries }

// Count returns the number of entries recorded at the given severity.
func (c *Collector) Count(sev Severity) int { return c.counts[sev] }

// ErrorCount returns the number of error-severity entries.
func (c *Collector) ErrorCount() int { return c.counts[SeverityError] }

// IsValid reports whether the run produced zero error-severity entries.
func (c *Collector) IsValid() bool { return c.counts[SeverityError] == 0 }

// Summary holds per-severity counts for a validation run.
type Summary struct {
	Errors       int `json:"errors"`
	Warnings     int `json:"warnings"`
	Info         int `json:"info"`
	RulesApplied int `json:"rules_applied"`
}

// Report is the serializable diagnostic report for one parse+validate run.
type Report struct {
	RunID    string       `json:"run_id"`
	IsValid  bool         `json:"is_valid"`
	Summary  Summary      `json:"summary"`
	Errors   []Diagnostic `json:"errors"`
	Warnings []Diagnostic `json:"warnings"`
	Info     []Diagnostic `json:"info"`
}

// Report materializes the collector into the report shape. Entry order
// within each severity bucket follows production order.
func (c *Collector) Report() *Report {
	r := &Report{
		RunID:   xid.New().String(),
		IsValid: c.IsValid(),
		Summary: Summary{
			Errors:       c.counts[SeverityError],
			Warnings:     c.counts[SeverityWarning],
			Info:         c.counts[SeverityInfo],
			RulesApplied: c.rulesApplied,
		},
		Errors:   []Diagnostic{},
		Warnings: []Diagnostic{},
		Info:     []Diagnostic{},
	}
	for _, d := range c.entries {
		switch d.Severity {
		case SeverityError:
			r.Errors = append(r.Errors, d)
		case SeverityWarning:
			r.Warnings = append(r.Warnings, d)
		default:
			r.Info = append(r.Info, d)
		}
	}
	return r
}
