package transactions

// Transaction835 is the semantic tree for a Health Care Claim
// Payment/Advice transaction.
type Transaction835 struct {
	FinancialInformation FinancialInformation
	ReferenceNumbers     []Reference
	Dates                []DateValue
	Payer                *Party
	Payee                *Party
	Claims               []*Claim835
	PLBAdjustments       []PLBAdjustment
}

func (t *Transaction835) TransactionCode() string { return "835" }

func (t *Transaction835) ToMap() map[string]any {
	claims := make([]any, 0, len(t.Claims))
	for _, c := range t.Claims {
		claims = append(claims, c.ToMap())
	}
	plb := make([]any, 0, len(t.PLBAdjustments))
	for _, p := range t.PLBAdjustments {
		plb = append(plb, p.ToMap())
	}
	m := map[string]any{
		"financial_information": t.FinancialInformation.ToMap(),
		"claims":                claims,
		"plb_adjustments":       plb,
	}
	if t.Payer != nil {
		m["payer"] = t.Payer.ToMap()
	}
	if t.Payee != nil {
		m["payee"] = t.Payee.ToMap()
	}
	if len(t.ReferenceNumbers) > 0 {
		refs := make([]any, 0, len(t.ReferenceNumbers))
		for _, r := range t.ReferenceNumbers {
			refs = append(refs, map[string]any{"type": r.Type, "value": r.Value})
		}
		m["reference_numbers"] = refs
	}
	if len(t.Dates) > 0 {
		dates := make([]any, 0, len(t.Dates))
		for _, d := range t.Dates {
			dates = append(dates, map[string]any{"type": d.Type, "date": d.Date})
		}
		m["dates"] = dates
	}
	return m
}

// FinancialInformation mirrors the BPR segment plus the TRN trace.
type FinancialInformation struct {
	TotalPaid     float64
	PaymentMethod string
	PaymentDate   string
	TraceNumber   string
}

func (f FinancialInformation) ToMap() map[string]any {
	return map[string]any{
		"total_paid":     f.TotalPaid,
		"payment_method": f.PaymentMethod,
		"payment_date":   f.PaymentDate,
		"trace_number":   f.TraceNumber,
	}
}

// Reference is a typed reference number captured at transaction level.
type Reference struct {
	Type  string
	Value string
}

// DateValue is a qualified date captured at transaction level.
type DateValue struct {
	Type string
	Date string
}

// Claim835 is one CLP loop.
type Claim835 struct {
	ClaimID               string
	StatusCode            int
	TotalCharge           float64
	TotalPaid             float64
	PatientResponsibility float64
	FilingIndicator       string
	PayerControlNumber    string
	PatientName           string
	References            []Identifier
	Adjustments           []Adjustment
	Services              []*Service835
}

func (c *Claim835) ToMap() map[string]any {
	adjustments := make([]any, 0, len(c.Adjustments))
	for _, a := range c.Adjustments {
		adjustments = append(adjustments, a.ToMap())
	}
	services := make([]any, 0, len(c.Services))
	for _, s := range c.Services {
		services = append(services, s.ToMap())
	}
	m := map[string]any{
		"claim_id":               c.ClaimID,
		"status_code":            c.StatusCode,
		"total_charge":           c.TotalCharge,
		"total_paid":             c.TotalPaid,
		"patient_responsibility": c.PatientResponsibility,
		"adjustments":            adjustments,
		"services":               services,
	}
	if c.FilingIndicator != "" {
		m["filing_indicator"] = c.FilingIndicator
	}
	if c.PayerControlNumber != "" {
		m["payer_control_number"] = c.PayerControlNumber
	}
	if c.PatientName != "" {
		m["patient_name"] = c.PatientName
	}
	if len(c.References) > 0 {
		refs := make([]any, 0, len(c.References))
		for _, r := range c.References {
			refs = append(refs, map[string]any{"qualifier": r.Qualifier, "value": r.Value})
		}
		m["references"] = refs
	}
	return m
}

// Adjustment is one (group, reason, amount, quantity) tuple from a CAS
// segment. A single CAS may carry several reason triplets sharing one
// group code; each becomes its own Adjustment.
type Adjustment struct {
	GroupCode  string
	ReasonCode string
	Amount     float64
	Quantity   float64
}

func (a Adjustment) ToMap() map[string]any {
	return map[string]any{
		"group_code":  a.GroupCode,
		"reason_code": a.ReasonCode,
		"amount":      a.Amount,
		"quantity":    a.Quantity,
	}
}

// Service835 is one SVC loop inside a claim.
type Service835 struct {
	ProcedureCode string
	Modifiers     []string
	Charge        float64
	Paid          float64
	RevenueCode   string
	Units         float64
	ServiceDate   string
	Adjustments   []Adjustment
}

func (s *Service835) ToMap() map[string]any {
	adjustments := make([]any, 0, len(s.Adjustments))
	for _, a := range s.Adjustments {
		adjustments = append(adjustments, a.ToMap())
	}
	modifiers := s.Modifiers
	if modifiers == nil {
		modifiers = []string{}
	}
	m := map[string]any{
		"procedure_code": s.ProcedureCode,
		"modifiers":      modifiers,
		"charge":         s.Charge,
		"paid":           s.Paid,
		"units":          s.Units,
		"adjustments":    adjustments,
	}
	if s.RevenueCode != "" {
		m["revenue_code"] = s.RevenueCode
	}
	if s.ServiceDate != "" {
		m["service_date"] = s.ServiceDate
	}
	return m
}

// PLBAdjustment is one reason/amount pair from a provider-level
// adjustment segment.
type PLBAdjustment struct {
	ProviderID   string
	FiscalPeriod string
	ReasonCode   string
	Amount       float64
}

func (p PLBAdjustment) ToMap() map[string]any {
	m := map[string]any{
		"provider_id": p.ProviderID,
		"reason_code": p.ReasonCode,
		"amount":      p.Amount,
	}
	if p.FiscalPeriod != "" {
		m["fiscal_period"] = p.FiscalPeriod
	}
	return m
}
