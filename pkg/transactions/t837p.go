package transactions

import (
	"fmt"

	"github.com/oarkflow/edi/pkg/diag"
	"github.com/oarkflow/edi/pkg/utils"
	"github.com/oarkflow/edi/pkg/x12"
)

// Transaction837P is the semantic tree for a professional claim.
type Transaction837P struct {
	Submitter         *Party
	Receiver          *Party
	BillingProvider   *Party
	RenderingProvider *Party
	Subscriber        *Party
	Patient           *Party
	Claim             Claim837P
	Diagnoses         []string
	ServiceLines      []*ServiceLine837P
}

func (t *Transaction837P) TransactionCode() string { return "837" }

func (t *Transaction837P) ToMap() map[string]any {
	diagnoses := t.Diagnoses
	if diagnoses == nil {
		diagnoses = []string{}
	}
	lines := make([]any, 0, len(t.ServiceLines))
	for _, l := range t.ServiceLines {
		lines = append(lines, l.ToMap())
	}
	m := map[string]any{
		"claim":         t.Claim.ToMap(),
		"diagnoses":     diagnoses,
		"service_lines": lines,
	}
	if t.Submitter != nil {
		m["submitter"] = t.Submitter.ToMap()
	}
	if t.Receiver != nil {
		m["receiver"] = t.Receiver.ToMap()
	}
	if t.BillingProvider != nil {
		m["billing_provider"] = t.BillingProvider.ToMap()
	}
	if t.RenderingProvider != nil {
		m["rendering_provider"] = t.RenderingProvider.ToMap()
	}
	if t.Subscriber != nil {
		m["subscriber"] = t.Subscriber.ToMap()
	}
	if t.Patient != nil {
		m["patient"] = t.Patient.ToMap()
	}
	return m
}

// Claim837P mirrors the CLM segment.
type Claim837P struct {
	ClaimID           string
	TotalCharge       float64
	PlaceOfService    string
	FrequencyCode     string
	ProviderSignature string
	AssignmentCode    string
	BenefitsAssigned  string
	ReleaseOfInfo     string
}

func (c Claim837P) ToMap() map[string]any {
	m := map[string]any{
		"claim_id":         c.ClaimID,
		"total_charge":     c.TotalCharge,
		"place_of_service": c.PlaceOfService,
	}
	if c.FrequencyCode != "" {
		m["frequency_code"] = c.FrequencyCode
	}
	if c.ProviderSignature != "" {
		m["provider_signature"] = c.ProviderSignature
	}
	if c.AssignmentCode != "" {
		m["assignment_code"] = c.AssignmentCode
	}
	if c.BenefitsAssigned != "" {
		m["benefits_assigned"] = c.BenefitsAssigned
	}
	if c.ReleaseOfInfo != "" {
		m["release_of_information"] = c.ReleaseOfInfo
	}
	return m
}

// ServiceLine837P mirrors one LX/SV1 loop.
type ServiceLine837P struct {
	LineNumber        string
	ProcedureCode     string
	Modifiers         []string
	Charge            float64
	UnitOfMeasure     string
	Units             float64
	DiagnosisPointers []string
	ServiceDate       string
}

func (l *ServiceLine837P) ToMap() map[string]any {
	modifiers := l.Modifiers
	if modifiers == nil {
		modifiers = []string{}
	}
	pointers := l.DiagnosisPointers
	if pointers == nil {
		pointers = []string{}
	}
	m := map[string]any{
		"procedure_code":     l.ProcedureCode,
		"modifiers":          modifiers,
		"charge":             l.Charge,
		"units":              l.Units,
		"diagnosis_pointers": pointers,
	}
	if l.LineNumber != "" {
		m["line_number"] = l.LineNumber
	}
	if l.UnitOfMeasure != "" {
		m["unit_of_measure"] = l.UnitOfMeasure
	}
	if l.ServiceDate != "" {
		m["service_date"] = l.ServiceDate
	}
	return m
}

// loop contexts of the 837P walk
type state837 int

const (
	s837Header state837 = iota
	s837Submitter
	s837Receiver
	s837BillingProvider
	s837Subscriber
	s837Patient
	s837Claim
	s837ServiceLine
)

func (s state837) String() string {
	switch s {
	case s837Header:
		return "header"
	case s837Submitter:
		return "submitter"
	case s837Receiver:
		return "receiver"
	case s837BillingProvider:
		return "billing provider"
	case s837Subscriber:
		return "subscriber"
	case s837Patient:
		return "patient"
	case s837Claim:
		return "claim"
	default:
		return "service line"
	}
}

// Projector837P walks professional claim windows.
type Projector837P struct{}

func NewProjector837P() *Projector837P { return &Projector837P{} }

func (p *Projector837P) Name() string { return "837P" }

func (p *Projector837P) Codes() []string { return []string{"837"} }

func (p *Projector837P) Project(_ string, segments []x12.Segment, path string, col *diag.Collector) x12.TransactionData {
	t := &Transaction837P{}
	state := s837Header

	var line *ServiceLine837P
	var current *Party

	for _, seg := range segments {
		switch seg.ID {
		case "BHT", "HL", "SBR", "PAT", "DMG", "PER", "PRV", "CUR":
			// hierarchy and demographic segments carry loop structure the
			// projector tracks through NM1 qualifiers instead

		case "NM1":
			current = partyFromNM1(seg)
			switch seg.GetTrimmed(1) {
			case "41":
				t.Submitter = current
				state = s837Submitter
			case "40":
				t.Receiver = current
				state = s837Receiver
			case "85":
				t.BillingProvider = current
				state = s837BillingProvider
			case "82":
				t.RenderingProvider = current
				state = s837Claim
			case "IL":
				t.Subscriber = current
				state = s837Subscriber
			case "QC":
				t.Patient = current
				state = s837Patient
			default:
				// other loop entities (payer, referring provider) are
				// tolerated but not part of the canonical tree
			}

		case "N3", "N4":
			if current != nil {
				current.applyAddress(seg)
			} else {
				unexpectedSegment(col, path, state.String(), seg)
			}

		case "REF":
			if current == nil {
				unexpectedSegment(col, path, state.String(), seg)
				continue
			}
			qualifier := seg.GetTrimmed(1)
			value := seg.GetTrimmed(2)
			switch qualifier {
			case "EI", "SY":
				current.TaxID = value
				current.Identifiers = append(current.Identifiers, Identifier{Qualifier: qualifier, Value: value, Kind: "tax_id"})
			default:
				current.Identifiers = append(current.Identifiers, Identifier{Qualifier: qualifier, Value: value})
			}

		case "CLM":
			t.Claim = Claim837P{
				ClaimID:     seg.GetTrimmed(1),
				TotalCharge: amount(col, path, "claim.total_charge", seg, 2),
			}
			// CLM05 is a composite: place of service, facility qualifier,
			// frequency code
			t.Claim.PlaceOfService = seg.Component(5, 0)
			t.Claim.FrequencyCode = seg.Component(5, 2)
			t.Claim.ProviderSignature = seg.GetTrimmed(6)
			t.Claim.AssignmentCode = seg.GetTrimmed(7)
			t.Claim.BenefitsAssigned = seg.GetTrimmed(8)
			t.Claim.ReleaseOfInfo = seg.GetTrimmed(9)
			state = s837Claim

		case "HI":
			for i := 1; i <= seg.Len(); i++ {
				comps := seg.Composite(i)
				if len(comps) >= 2 && comps[1] != "" {
					t.Diagnoses = append(t.Diagnoses, comps[1])
				}
			}

		case "LX":
			line = &ServiceLine837P{LineNumber: seg.GetTrimmed(1)}
			t.ServiceLines = append(t.ServiceLines, line)
			state = s837ServiceLine

		case "SV1":
			if line == nil {
				line = &ServiceLine837P{}
				t.ServiceLines = append(t.ServiceLines, line)
				state = s837ServiceLine
			}
			code, modifiers := parseProcedure(seg.Composite(1))
			line.ProcedureCode = code
			line.Modifiers = modifiers
			line.Charge = amount(col, path,
				fmt.Sprintf("service_lines[%d].charge", len(t.ServiceLines)-1), seg, 2)
			line.UnitOfMeasure = seg.GetTrimmed(3)
			line.Units = quantity(seg, 4, 1)
			for _, ptr := range seg.Composite(7) {
				if ptr != "" {
					line.DiagnosisPointers = append(line.DiagnosisPointers, ptr)
				}
			}

		case "DTP":
			if state == s837ServiceLine && line != nil && seg.GetTrimmed(1) == "472" {
				line.ServiceDate = utils.FormatDateCCYYMMDD(seg.GetTrimmed(3))
			}

		case "AMT", "QTY", "K3", "NTE", "CRC", "CR1", "CR2":
			// supplemental claim detail outside the canonical tree

		default:
			unexpectedSegment(col, path, state.String(), seg)
		}
	}

	if t.Submitter == nil {
		missingRequired(col, path, "submitter", "NM1*41 submitter")
	}
	if t.BillingProvider == nil {
		missingRequired(col, path, "billing_provider", "NM1*85 billing provider")
	}
	if t.Subscriber == nil {
		missingRequired(col, path, "subscriber", "NM1*IL subscriber")
	}
	if t.Claim.ClaimID == "" {
		missingRequired(col, path, "claim", "CLM claim information")
	}
	return t
}
