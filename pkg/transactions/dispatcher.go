package transactions

import (
	"fmt"

	"github.com/oarkflow/edi/pkg/diag"
	"github.com/oarkflow/edi/pkg/x12"
)

// Projector walks one transaction window (the segments between ST and
// SE, both exclusive) and produces the typed semantic tree for its
// transaction-set codes. Problems are recorded in the collector; a
// projector never fails outright.
type Projector interface {
	Name() string
	Codes() []string
	Project(code string, segments []x12.Segment, path string, col *diag.Collector) x12.TransactionData
}

// PLBSignConvention selects how provider-level adjustment amounts enter
// the 835 balance equation. The default treats a positive PLB as
// reducing the payer's obligation.
type PLBSignConvention int

const (
	PLBSignDeductive PLBSignConvention = iota
	PLBSignAdditive
)

// Config carries projection options shared by the built-in projectors.
type Config struct {
	PLBSign PLBSignConvention
}

// Registry maps transaction-set codes (ST01) to projectors. It is built
// once at construction time and read-only afterwards; callers extend it
// through Register before the first Project call.
type Registry struct {
	projectors map[string]Projector
}

// NewRegistry returns a registry preloaded with the built-in projectors
// for 835, 837, 270, 271, 276, and 277.
func NewRegistry(cfg Config) *Registry {
	r := &Registry{projectors: make(map[string]Projector)}
	for _, p := range []Projector{
		NewProjector835(cfg),
		NewProjector837P(),
		NewProjectorEligibility(),
		NewProjectorClaimStatus(),
	} {
		for _, code := range p.Codes() {
			r.projectors[code] = p
		}
	}
	return r
}

// Register installs a projector for an additional transaction-set code,
// replacing any existing binding. This is the construction-time plugin
// surface; no code is loaded dynamically.
func (r *Registry) Register(code string, p Projector) {
	r.projectors[code] = p
}

// Lookup returns the projector bound to the given code.
func (r *Registry) Lookup(code string) (Projector, bool) {
	p, ok := r.projectors[code]
	return p, ok
}

// Project dispatches every transaction set in the document to its
// projector. Unknown transaction-set codes keep their raw segments and
// record an info diagnostic.
func (r *Registry) Project(doc *x12.Document, col *diag.Collector) {
	for i, ic := range doc.Interchanges {
		for j, g := range ic.FunctionalGroups {
			for k, ts := range g.Transactions {
				path := fmt.Sprintf("interchanges[%d].functional_groups[%d].transactions[%d]", i, j, k)
				p, ok := r.projectors[ts.Header.Code]
				if !ok {
					col.Info("UNKNOWN_TRANSACTION", path,
						fmt.Sprintf("no projector registered for transaction set %q; raw segments retained", ts.Header.Code))
					continue
				}
				window := transactionWindow(ts.Segments)
				ts.Data = p.Project(ts.Header.Code, window, path, col)
			}
		}
	}
}

// transactionWindow strips the ST and SE envelope segments from the
// stored window.
func transactionWindow(segments []x12.Segment) []x12.Segment {
	if len(segments) == 0 {
		return nil
	}
	start, end := 0, len(segments)
	if segments[0].ID == "ST" {
		start = 1
	}
	if end > start && segments[end-1].ID == "SE" {
		end--
	}
	return segments[start:end]
}
