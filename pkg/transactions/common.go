package transactions

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/oarkflow/edi/pkg/diag"
	"github.com/oarkflow/edi/pkg/utils"
	"github.com/oarkflow/edi/pkg/x12"
)

// amount parses a monetary element. Invalid numerics record a
// NUMERIC_FORMAT error and default to zero.
func amount(col *diag.Collector, path, fieldPath string, seg x12.Segment, idx int) float64 {
	raw := strings.TrimSpace(seg.Get(idx))
	if raw == "" {
		return 0
	}
	f, err := utils.ParseAmount(raw)
	if err != nil {
		col.Add(diag.Diagnostic{
			Code:      "NUMERIC_FORMAT",
			Severity:  diag.SeverityError,
			Path:      path,
			FieldPath: fieldPath,
			Value:     raw,
			Message:   fmt.Sprintf("element %s%02d is not a valid monetary value", seg.ID, idx),
		})
		return 0
	}
	return f
}

// quantity parses a numeric element with a fallback default.
func quantity(seg x12.Segment, idx int, def float64) float64 {
	raw := strings.TrimSpace(seg.Get(idx))
	if raw == "" {
		return def
	}
	f, ok := utils.ToFloat(raw)
	if !ok {
		return def
	}
	return f
}

// intValue parses an integer element with a fallback default.
func intValue(seg x12.Segment, idx, def int) int {
	raw := strings.TrimSpace(seg.Get(idx))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// parseProcedure splits a composite procedure element into the bare
// procedure code and its ordered modifiers. The composite may carry a
// leading qualifier ("HC:99213:25"), or be a bare code ("99213").
func parseProcedure(components []string) (code string, modifiers []string) {
	if len(components) == 0 {
		return "", nil
	}
	rest := components
	if len(components) >= 2 {
		code = components[1]
		rest = components[2:]
	} else {
		code = components[0]
		rest = nil
	}
	for _, m := range rest {
		if m != "" {
			modifiers = append(modifiers, m)
		}
	}
	return code, modifiers
}

// unexpectedSegment records the shared skip-and-continue diagnostic for
// a segment the state machine does not expect.
func unexpectedSegment(col *diag.Collector, path, state string, seg x12.Segment) {
	col.Add(diag.Diagnostic{
		Code:     "UNEXPECTED_SEGMENT",
		Severity: diag.SeverityWarning,
		Path:     path,
		Value:    seg.ID,
		Message:  fmt.Sprintf("segment %s not expected in %s context; skipped", seg.ID, state),
	})
}

// missingRequired records the shared missing-segment diagnostic.
func missingRequired(col *diag.Collector, path, fieldPath, what string) {
	col.Add(diag.Diagnostic{
		Code:      "MISSING_REQUIRED",
		Severity:  diag.SeverityError,
		Path:      path,
		FieldPath: fieldPath,
		Message:   what + " is required but absent; defaults substituted",
	})
}

// Party is a named entity (payer, payee, provider, subscriber) with its
// qualified identifiers.
type Party struct {
	Name        string
	FirstName   string
	IDQualifier string
	ID          string
	NPI         string
	TaxID       string
	Identifiers []Identifier
	Address     []string
	City        string
	State       string
	PostalCode  string
}

// Identifier is one qualified reference value attached to a party.
type Identifier struct {
	Qualifier string
	Value     string
	Kind      string
}

func (p *Party) ToMap() map[string]any {
	if p == nil {
		return nil
	}
	m := map[string]any{"name": p.Name}
	if p.FirstName != "" {
		m["first_name"] = p.FirstName
	}
	if p.IDQualifier != "" {
		m["id_qualifier"] = p.IDQualifier
	}
	if p.ID != "" {
		m["id"] = p.ID
	}
	if p.NPI != "" {
		m["npi"] = p.NPI
	}
	if p.TaxID != "" {
		m["tax_id"] = p.TaxID
	}
	if len(p.Identifiers) > 0 {
		ids := make([]any, 0, len(p.Identifiers))
		for _, id := range p.Identifiers {
			entry := map[string]any{"qualifier": id.Qualifier, "value": id.Value}
			if id.Kind != "" {
				entry["kind"] = id.Kind
			}
			ids = append(ids, entry)
		}
		m["identifiers"] = ids
	}
	if len(p.Address) > 0 {
		m["address"] = append([]string(nil), p.Address...)
	}
	if p.City != "" {
		m["city"] = p.City
	}
	if p.State != "" {
		m["state"] = p.State
	}
	if p.PostalCode != "" {
		m["postal_code"] = p.PostalCode
	}
	return m
}

// partyFromNM1 builds a Party from an NM1 segment: entity qualifier at
// 1, last/org name at 3, first name at 4, id qualifier at 8, id at 9.
func partyFromNM1(seg x12.Segment) *Party {
	p := &Party{
		Name:        seg.GetTrimmed(3),
		FirstName:   seg.GetTrimmed(4),
		IDQualifier: seg.GetTrimmed(8),
		ID:          seg.GetTrimmed(9),
	}
	if p.IDQualifier == "XX" {
		p.NPI = p.ID
	}
	return p
}

// applyAddress folds N3/N4 segments into the party.
func (p *Party) applyAddress(seg x12.Segment) {
	switch seg.ID {
	case "N3":
		if v := seg.GetTrimmed(1); v != "" {
			p.Address = append(p.Address, v)
		}
		if v := seg.GetTrimmed(2); v != "" {
			p.Address = append(p.Address, v)
		}
	case "N4":
		p.City = seg.GetTrimmed(1)
		p.State = seg.GetTrimmed(2)
		p.PostalCode = seg.GetTrimmed(3)
	}
}
