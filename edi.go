// Package edi parses, projects, and validates X12 healthcare EDI
// documents (835, 837P, 270/271, 276/277). A byte stream becomes a
// canonical envelope tree, recognized transaction sets become typed
// semantic trees, and declarative rules turn findings into a
// severity-tagged diagnostic report.
package edi

import (
	"fmt"
	"os"
	"time"

	"github.com/oarkflow/edi/pkg/diag"
	"github.com/oarkflow/edi/pkg/rules"
	"github.com/oarkflow/edi/pkg/transactions"
	"github.com/oarkflow/edi/pkg/x12"
)

// EDI wires the pipeline together: parser, projector registry, and
// rule engine. Construct once with New, then run any number of
// documents through Parse or Validate; each run gets its own
// collector, so one EDI may serve concurrent callers.
type EDI struct {
	registry *transactions.Registry
	engine   *rules.Engine

	cfg      transactions.Config
	ruleList []*rules.Rule
	policy   rules.Policy
	budget   time.Duration
	pending  []pendingProjector
}

type pendingProjector struct {
	code     string
	p        transactions.Projector
	defaults []*rules.Rule
}

// New builds a validator from the given options. Without options the
// pipeline parses and projects but applies no rules.
func New(opts ...Option) (*EDI, error) {
	e := &EDI{}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.registry = transactions.NewRegistry(e.cfg)
	for _, pp := range e.pending {
		e.registry.Register(pp.code, pp.p)
		e.ruleList = append(e.ruleList, pp.defaults...)
	}
	e.ruleList = rules.MergeSets(e.ruleList)
	e.engine = rules.NewEngine(e.ruleList, e.policy)
	if e.budget > 0 {
		e.engine.SetBudget(e.budget)
	}
	return e, nil
}

// Result is the outcome of one validation run: the parsed document
// (possibly partial) and the diagnostic report.
type Result struct {
	Document *x12.Document
	Report   *diag.Report
}

// IsValid reports whether the run produced zero error diagnostics.
func (r *Result) IsValid() bool { return r.Report != nil && r.Report.IsValid }

// ToMap serializes the result into the canonical JSON shape.
func (r *Result) ToMap() map[string]any {
	return map[string]any{
		"document": r.Document.ToMap(),
		"report":   r.Report,
	}
}

// Detect reports whether the data looks like an X12 interchange.
func Detect(data []byte) bool {
	return x12.NewParser(diag.NewCollector()).Detect(data)
}

// Parse runs delimiter detection, tokenization, envelope assembly, and
// transaction projection, without rule evaluation. The returned
// collector holds the structural diagnostics. The only hard failure is
// x12.ErrInvalidHeader.
func (e *EDI) Parse(data []byte) (*x12.Document, *diag.Collector, error) {
	col := diag.NewCollector()
	doc, err := x12.NewParser(col).Parse(data)
	if err != nil {
		return nil, col, err
	}
	e.registry.Project(doc, col)
	return doc, col, nil
}

// Validate runs the full pipeline: parse, project, evaluate rules, and
// materialize the report.
func (e *EDI) Validate(data []byte) (*Result, error) {
	doc, col, err := e.Parse(data)
	if err != nil {
		return nil, err
	}
	e.engine.Evaluate(doc, col)
	return &Result{Document: doc, Report: col.Report()}, nil
}

// ValidateFile validates the contents of a file on disk.
func (e *EDI) ValidateFile(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return e.Validate(data)
}

// Rules returns the engine's rule list in registration order.
func (e *EDI) Rules() []*rules.Rule { return e.ruleList }
