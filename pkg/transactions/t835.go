package transactions

import (
	"fmt"
	"math"
	"strings"

	"github.com/oarkflow/edi/pkg/diag"
	"github.com/oarkflow/edi/pkg/utils"
	"github.com/oarkflow/edi/pkg/x12"
)

// balanceTolerance is the maximum allowed delta between BPR02 and the
// claim/PLB totals before an imbalance is reported.
const balanceTolerance = 0.01

// loop contexts of the 835 walk
type state835 int

const (
	s835Header state835 = iota
	s835Payer
	s835Payee
	s835Claim
	s835Service
	s835Summary
)

func (s state835) String() string {
	switch s {
	case s835Header:
		return "header"
	case s835Payer:
		return "payer"
	case s835Payee:
		return "payee"
	case s835Claim:
		return "claim"
	case s835Service:
		return "service"
	default:
		return "summary"
	}
}

// Projector835 walks Health Care Claim Payment/Advice windows.
type Projector835 struct {
	cfg Config
}

func NewProjector835(cfg Config) *Projector835 {
	return &Projector835{cfg: cfg}
}

func (p *Projector835) Name() string { return "835" }

func (p *Projector835) Codes() []string { return []string{"835"} }

func (p *Projector835) Project(_ string, segments []x12.Segment, path string, col *diag.Collector) x12.TransactionData {
	t := &Transaction835{}
	state := s835Header

	var (
		claim   *Claim835
		service *Service835
	)

	for _, seg := range segments {
		switch seg.ID {
		case "BPR":
			t.FinancialInformation.TotalPaid = amount(col, path, "financial_information.total_paid", seg, 2)
			t.FinancialInformation.PaymentMethod = seg.GetTrimmed(4)
			t.FinancialInformation.PaymentDate = utils.FormatDateCCYYMMDD(seg.GetTrimmed(16))
			state = s835Header

		case "TRN":
			if v := seg.GetTrimmed(2); v != "" {
				t.FinancialInformation.TraceNumber = v
				t.ReferenceNumbers = append(t.ReferenceNumbers, Reference{Type: "trace_number", Value: v})
			}

		case "CUR":
			// payment currency, informational only

		case "REF":
			p.applyReference(t, claim, state, seg, path, col)

		case "DTM":
			p.applyDate(t, service, state, seg)

		case "N1":
			switch seg.GetTrimmed(1) {
			case "PR":
				t.Payer = &Party{Name: seg.GetTrimmed(2), IDQualifier: seg.GetTrimmed(3), ID: seg.GetTrimmed(4)}
				state = s835Payer
			case "PE":
				t.Payee = &Party{Name: seg.GetTrimmed(2), IDQualifier: seg.GetTrimmed(3), ID: seg.GetTrimmed(4)}
				if t.Payee.IDQualifier == "XX" {
					t.Payee.NPI = t.Payee.ID
				}
				state = s835Payee
			default:
				unexpectedSegment(col, path, state.String(), seg)
			}

		case "N3", "N4":
			switch state {
			case s835Payer:
				t.Payer.applyAddress(seg)
			case s835Payee:
				t.Payee.applyAddress(seg)
			default:
				unexpectedSegment(col, path, state.String(), seg)
			}

		case "PER":
			// payer/payee contact, not part of the canonical tree

		case "NM1":
			switch state {
			case s835Payee:
				if seg.GetTrimmed(8) == "XX" {
					t.Payee.NPI = seg.GetTrimmed(9)
				}
			case s835Claim, s835Service:
				if seg.GetTrimmed(1) == "QC" {
					name := seg.GetTrimmed(3)
					if first := seg.GetTrimmed(4); first != "" {
						name = name + ", " + first
					}
					claim.PatientName = name
				}
			default:
				unexpectedSegment(col, path, state.String(), seg)
			}

		case "LX":
			// service line grouping header, structural only

		case "CLP":
			claim = &Claim835{
				ClaimID:            seg.GetTrimmed(1),
				StatusCode:         intValue(seg, 2, 1),
				FilingIndicator:    seg.GetTrimmed(6),
				PayerControlNumber: seg.GetTrimmed(7),
			}
			idx := len(t.Claims)
			claim.TotalCharge = amount(col, path, fmt.Sprintf("claims[%d].total_charge", idx), seg, 3)
			claim.TotalPaid = amount(col, path, fmt.Sprintf("claims[%d].total_paid", idx), seg, 4)
			claim.PatientResponsibility = amount(col, path, fmt.Sprintf("claims[%d].patient_responsibility", idx), seg, 5)
			t.Claims = append(t.Claims, claim)
			service = nil
			state = s835Claim

		case "CAS":
			switch state {
			case s835Claim:
				claim.Adjustments = append(claim.Adjustments, parseAdjustments(col, path,
					fmt.Sprintf("claims[%d].adjustments", len(t.Claims)-1), seg)...)
			case s835Service:
				service.Adjustments = append(service.Adjustments, parseAdjustments(col, path,
					fmt.Sprintf("claims[%d].services[%d].adjustments", len(t.Claims)-1, len(claim.Services)-1), seg)...)
			default:
				unexpectedSegment(col, path, state.String(), seg)
			}

		case "SVC":
			if claim == nil {
				unexpectedSegment(col, path, state.String(), seg)
				continue
			}
			code, modifiers := parseProcedure(seg.Composite(1))
			service = &Service835{
				ProcedureCode: code,
				Modifiers:     modifiers,
				RevenueCode:   seg.GetTrimmed(4),
				Units:         quantity(seg, 5, 1),
			}
			cIdx, sIdx := len(t.Claims)-1, len(claim.Services)
			service.Charge = amount(col, path, fmt.Sprintf("claims[%d].services[%d].charge", cIdx, sIdx), seg, 2)
			service.Paid = amount(col, path, fmt.Sprintf("claims[%d].services[%d].paid", cIdx, sIdx), seg, 3)
			claim.Services = append(claim.Services, service)
			state = s835Service

		case "AMT", "QTY":
			if state != s835Claim && state != s835Service {
				unexpectedSegment(col, path, state.String(), seg)
			}

		case "PLB":
			t.PLBAdjustments = append(t.PLBAdjustments, parsePLB(col, path, len(t.PLBAdjustments), seg)...)
			state = s835Summary

		default:
			unexpectedSegment(col, path, state.String(), seg)
		}
	}

	p.checkRequired(t, path, col)
	p.checkBalance(t, path, col)
	return t
}

func (p *Projector835) applyReference(t *Transaction835, claim *Claim835, state state835, seg x12.Segment, path string, col *diag.Collector) {
	qualifier := seg.GetTrimmed(1)
	value := seg.GetTrimmed(2)
	if value == "" {
		return
	}
	switch state {
	case s835Payer:
		t.Payer.Identifiers = append(t.Payer.Identifiers, Identifier{Qualifier: qualifier, Value: value})
	case s835Payee:
		switch qualifier {
		case "TJ":
			// REF*TJ carries the payee Tax ID, not an NPI
			t.Payee.TaxID = value
			t.Payee.Identifiers = append(t.Payee.Identifiers, Identifier{Qualifier: qualifier, Value: value, Kind: "tax_id"})
		case "HPI":
			t.Payee.NPI = value
			t.Payee.Identifiers = append(t.Payee.Identifiers, Identifier{Qualifier: qualifier, Value: value, Kind: "npi"})
		case "1D":
			// REF*1D semantics differ across versions; keep it as an NPI
			// candidate rather than overwriting the NPI slot
			t.Payee.Identifiers = append(t.Payee.Identifiers, Identifier{Qualifier: qualifier, Value: value, Kind: "npi_candidate"})
			col.Add(diag.Diagnostic{
				Code:      "835_REF_1D_NPI_CANDIDATE",
				Severity:  diag.SeverityInfo,
				Path:      path,
				FieldPath: "payee.identifiers",
				Value:     value,
				Message:   "REF*1D value recorded as NPI candidate",
			})
		default:
			t.Payee.Identifiers = append(t.Payee.Identifiers, Identifier{Qualifier: qualifier, Value: value})
		}
	case s835Claim, s835Service:
		claim.References = append(claim.References, Identifier{Qualifier: qualifier, Value: value})
	default:
		t.ReferenceNumbers = append(t.ReferenceNumbers, Reference{Type: qualifier, Value: value})
	}
}

func (p *Projector835) applyDate(t *Transaction835, service *Service835, state state835, seg x12.Segment) {
	qualifier := seg.GetTrimmed(1)
	value := seg.GetTrimmed(2)
	if value == "" {
		return
	}
	formatted := utils.FormatDateCCYYMMDD(value)
	if (state == s835Service) && (qualifier == "472" || qualifier == "484") && service != nil {
		service.ServiceDate = formatted
		return
	}
	dateType := "other"
	if qualifier == "405" {
		dateType = "production_date"
	}
	t.Dates = append(t.Dates, DateValue{Type: dateType, Date: formatted})
}

func (p *Projector835) checkRequired(t *Transaction835, path string, col *diag.Collector) {
	if t.FinancialInformation.PaymentMethod == "" && t.FinancialInformation.TotalPaid == 0 && t.FinancialInformation.PaymentDate == "" {
		missingRequired(col, path, "financial_information", "BPR financial information segment")
	}
	if t.Payer == nil {
		missingRequired(col, path, "payer", "N1*PR payer identification")
	}
	if t.Payee == nil {
		missingRequired(col, path, "payee", "N1*PE payee identification")
	}
}

// checkBalance enforces the remittance balance equation. With the
// deductive sign convention a positive PLB reduces the payer's
// obligation, so the expected BPR total is claims minus PLB.
func (p *Projector835) checkBalance(t *Transaction835, path string, col *diag.Collector) {
	claimsTotal := 0.0
	for _, c := range t.Claims {
		claimsTotal += c.TotalPaid
	}
	plbTotal := 0.0
	for _, a := range t.PLBAdjustments {
		plbTotal += a.Amount
	}
	expected := claimsTotal - plbTotal
	if p.cfg.PLBSign == PLBSignAdditive {
		expected = claimsTotal + plbTotal
	}
	delta := math.Abs(t.FinancialInformation.TotalPaid - expected)
	if delta > balanceTolerance {
		col.Add(diag.Diagnostic{
			Code:      "835_FINANCIAL_IMBALANCE",
			Severity:  diag.SeverityWarning,
			Path:      path,
			FieldPath: "financial_information.total_paid",
			Value:     utils.FormatAmount(t.FinancialInformation.TotalPaid),
			Message: fmt.Sprintf("BPR total %s does not balance against claims %s and PLB %s (delta %s)",
				utils.FormatAmount(t.FinancialInformation.TotalPaid),
				utils.FormatAmount(claimsTotal),
				utils.FormatAmount(plbTotal),
				utils.FormatAmount(delta)),
			Context: map[string]any{
				"bpr_total":    utils.FormatAmount(t.FinancialInformation.TotalPaid),
				"claims_total": utils.FormatAmount(claimsTotal),
				"plb_total":    utils.FormatAmount(plbTotal),
				"delta":        utils.FormatAmount(delta),
				"tolerance":    utils.FormatAmount(balanceTolerance),
			},
		})
	}
}

// parseAdjustments captures every (reason, amount, quantity) triplet of
// a CAS segment; all triplets share the leading group code.
func parseAdjustments(col *diag.Collector, path, fieldPath string, seg x12.Segment) []Adjustment {
	group := seg.GetTrimmed(1)
	var out []Adjustment
	for i := 2; i <= seg.Len(); i += 3 {
		reason := seg.GetTrimmed(i)
		if reason == "" {
			break
		}
		out = append(out, Adjustment{
			GroupCode:  group,
			ReasonCode: reason,
			Amount:     amount(col, path, fieldPath, seg, i+1),
			Quantity:   quantity(seg, i+2, 1),
		})
	}
	return out
}

// parsePLB captures the reason/amount pairs of a provider-level
// adjustment. PLB01 is the provider id, PLB02 the fiscal period, and
// pairs follow from PLB03; the reason may be a composite whose first
// component is the adjustment reason code.
func parsePLB(col *diag.Collector, path string, baseIdx int, seg x12.Segment) []PLBAdjustment {
	provider := seg.GetTrimmed(1)
	fiscal := utils.FormatDateCCYYMMDD(seg.GetTrimmed(2))
	var out []PLBAdjustment
	for i := 3; i <= seg.Len(); i += 2 {
		reason := strings.TrimSpace(seg.Component(i, 0))
		amt := strings.TrimSpace(seg.Get(i + 1))
		if reason == "" && amt == "" {
			continue
		}
		out = append(out, PLBAdjustment{
			ProviderID:   provider,
			FiscalPeriod: fiscal,
			ReasonCode:   reason,
			Amount: amount(col, path,
				fmt.Sprintf("plb_adjustments[%d].amount", baseIdx+len(out)), seg, i+1),
		})
	}
	return out
}
