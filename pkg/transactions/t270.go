package transactions

import (
	"github.com/oarkflow/edi/pkg/diag"
	"github.com/oarkflow/edi/pkg/x12"
)

// TransactionEligibility is the shared semantic tree for eligibility
// inquiry (270) and response (271) transactions. Inquiries populate for
// a 270, Benefits and Messages for a 271.
type TransactionEligibility struct {
	Code                string
	InformationSource   *Party
	InformationReceiver *Party
	Subscriber          *Party
	Dependent           *Party
	Inquiries           []EligibilityInquiry
	Benefits            []EligibilityBenefit
	Messages            []string
}

func (t *TransactionEligibility) TransactionCode() string { return t.Code }

func (t *TransactionEligibility) ToMap() map[string]any {
	m := map[string]any{}
	if t.InformationSource != nil {
		m["information_source"] = t.InformationSource.ToMap()
	}
	if t.InformationReceiver != nil {
		m["information_receiver"] = t.InformationReceiver.ToMap()
	}
	if t.Subscriber != nil {
		m["subscriber"] = t.Subscriber.ToMap()
	}
	if t.Dependent != nil {
		m["dependent"] = t.Dependent.ToMap()
	}
	if t.Code == "270" {
		inquiries := make([]any, 0, len(t.Inquiries))
		for _, q := range t.Inquiries {
			inquiries = append(inquiries, q.ToMap())
		}
		m["eligibility_inquiries"] = inquiries
	} else {
		benefits := make([]any, 0, len(t.Benefits))
		for _, b := range t.Benefits {
			benefits = append(benefits, b.ToMap())
		}
		m["eligibility_benefits"] = benefits
		messages := t.Messages
		if messages == nil {
			messages = []string{}
		}
		m["messages"] = messages
	}
	return m
}

// EligibilityInquiry mirrors one EQ segment of a 270.
type EligibilityInquiry struct {
	ServiceTypeCode string
	CoverageLevel   string
}

func (q EligibilityInquiry) ToMap() map[string]any {
	m := map[string]any{"service_type_code": q.ServiceTypeCode}
	if q.CoverageLevel != "" {
		m["coverage_level"] = q.CoverageLevel
	}
	return m
}

// EligibilityBenefit mirrors one EB segment of a 271.
type EligibilityBenefit struct {
	EligibilityCode string
	CoverageLevel   string
	ServiceType     string
	InsuranceType   string
	PlanDescription string
	TimePeriod      string
	Amount          float64
	HasAmount       bool
}

func (b EligibilityBenefit) ToMap() map[string]any {
	m := map[string]any{"eligibility_code": b.EligibilityCode}
	if b.CoverageLevel != "" {
		m["coverage_level"] = b.CoverageLevel
	}
	if b.ServiceType != "" {
		m["service_type"] = b.ServiceType
	}
	if b.InsuranceType != "" {
		m["insurance_type"] = b.InsuranceType
	}
	if b.PlanDescription != "" {
		m["plan_description"] = b.PlanDescription
	}
	if b.TimePeriod != "" {
		m["time_period"] = b.TimePeriod
	}
	if b.HasAmount {
		m["amount"] = b.Amount
	}
	return m
}

// eligibility loop contexts
type stateEligibility int

const (
	sEligHeader stateEligibility = iota
	sEligSource
	sEligReceiver
	sEligSubscriber
	sEligDependent
)

func (s stateEligibility) String() string {
	switch s {
	case sEligHeader:
		return "header"
	case sEligSource:
		return "information source"
	case sEligReceiver:
		return "information receiver"
	case sEligSubscriber:
		return "subscriber"
	default:
		return "dependent"
	}
}

// ProjectorEligibility walks 270 and 271 windows over the shared
// information-source / receiver / subscriber / dependent skeleton.
type ProjectorEligibility struct{}

func NewProjectorEligibility() *ProjectorEligibility { return &ProjectorEligibility{} }

func (p *ProjectorEligibility) Name() string { return "270/271" }

func (p *ProjectorEligibility) Codes() []string { return []string{"270", "271"} }

func (p *ProjectorEligibility) Project(code string, segments []x12.Segment, path string, col *diag.Collector) x12.TransactionData {
	t := &TransactionEligibility{Code: code}
	state := sEligHeader
	var current *Party

	for _, seg := range segments {
		switch seg.ID {
		case "BHT", "HL", "TRN", "DMG", "DTP", "INS", "AAA", "III", "LS", "LE", "PER":
			// loop plumbing and demographics outside the canonical tree

		case "NM1":
			current = partyFromNM1(seg)
			switch seg.GetTrimmed(1) {
			case "PR", "2B":
				t.InformationSource = current
				state = sEligSource
			case "1P", "FA", "80":
				t.InformationReceiver = current
				state = sEligReceiver
			case "IL":
				t.Subscriber = current
				state = sEligSubscriber
			case "03":
				t.Dependent = current
				state = sEligDependent
			default:
				unexpectedSegment(col, path, state.String(), seg)
			}

		case "N3", "N4":
			if current != nil {
				current.applyAddress(seg)
			}

		case "REF":
			if current != nil {
				current.Identifiers = append(current.Identifiers,
					Identifier{Qualifier: seg.GetTrimmed(1), Value: seg.GetTrimmed(2)})
			}

		case "EQ":
			if code != "270" {
				unexpectedSegment(col, path, state.String(), seg)
				continue
			}
			t.Inquiries = append(t.Inquiries, EligibilityInquiry{
				ServiceTypeCode: seg.Component(1, 0),
				CoverageLevel:   seg.GetTrimmed(3),
			})

		case "EB":
			if code != "271" {
				unexpectedSegment(col, path, state.String(), seg)
				continue
			}
			b := EligibilityBenefit{
				EligibilityCode: seg.GetTrimmed(1),
				CoverageLevel:   seg.GetTrimmed(2),
				ServiceType:     seg.Component(3, 0),
				InsuranceType:   seg.GetTrimmed(4),
				PlanDescription: seg.GetTrimmed(5),
				TimePeriod:      seg.GetTrimmed(6),
			}
			if seg.GetTrimmed(7) != "" {
				b.Amount = amount(col, path, "eligibility_benefits.amount", seg, 7)
				b.HasAmount = true
			}
			t.Benefits = append(t.Benefits, b)

		case "MSG":
			if v := seg.GetTrimmed(1); v != "" {
				t.Messages = append(t.Messages, v)
			}

		default:
			unexpectedSegment(col, path, state.String(), seg)
		}
	}

	if t.InformationSource == nil {
		missingRequired(col, path, "information_source", "NM1*PR information source")
	}
	if t.Subscriber == nil {
		missingRequired(col, path, "subscriber", "NM1*IL subscriber")
	}
	return t
}
