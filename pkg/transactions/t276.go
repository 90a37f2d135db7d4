package transactions

import (
	"github.com/oarkflow/edi/pkg/diag"
	"github.com/oarkflow/edi/pkg/utils"
	"github.com/oarkflow/edi/pkg/x12"
)

// TransactionClaimStatus is the shared semantic tree for claim status
// request (276) and response (277) transactions. Inquiries populate for
// a 276, StatusInfo and Messages for a 277.
type TransactionClaimStatus struct {
	Code                string
	InformationSource   *Party
	InformationReceiver *Party
	Provider            *Party
	Subscriber          *Party
	Dependent           *Party
	Inquiries           []ClaimInquiry
	StatusInfo          []ClaimStatusInfo
	Messages            []string
}

func (t *TransactionClaimStatus) TransactionCode() string { return t.Code }

func (t *TransactionClaimStatus) ToMap() map[string]any {
	m := map[string]any{}
	if t.InformationSource != nil {
		m["information_source"] = t.InformationSource.ToMap()
	}
	if t.InformationReceiver != nil {
		m["information_receiver"] = t.InformationReceiver.ToMap()
	}
	if t.Provider != nil {
		m["provider"] = t.Provider.ToMap()
	}
	if t.Subscriber != nil {
		m["subscriber"] = t.Subscriber.ToMap()
	}
	if t.Dependent != nil {
		m["dependent"] = t.Dependent.ToMap()
	}
	if t.Code == "276" {
		inquiries := make([]any, 0, len(t.Inquiries))
		for _, q := range t.Inquiries {
			inquiries = append(inquiries, q.ToMap())
		}
		m["claim_inquiries"] = inquiries
	} else {
		statuses := make([]any, 0, len(t.StatusInfo))
		for _, s := range t.StatusInfo {
			statuses = append(statuses, s.ToMap())
		}
		m["claim_status_info"] = statuses
		messages := t.Messages
		if messages == nil {
			messages = []string{}
		}
		m["messages"] = messages
	}
	return m
}

// ClaimInquiry identifies one claim a 276 is asking about: the TRN
// trace plus any REF and AMT detail attached to the same loop.
type ClaimInquiry struct {
	TraceNumber   string
	References    []Identifier
	ClaimedAmount float64
	HasAmount     bool
}

func (q ClaimInquiry) ToMap() map[string]any {
	m := map[string]any{"trace_number": q.TraceNumber}
	if len(q.References) > 0 {
		refs := make([]any, 0, len(q.References))
		for _, r := range q.References {
			refs = append(refs, map[string]any{"qualifier": r.Qualifier, "value": r.Value})
		}
		m["references"] = refs
	}
	if q.HasAmount {
		m["claimed_amount"] = q.ClaimedAmount
	}
	return m
}

// ClaimStatusInfo mirrors one STC segment of a 277. STC01 is a
// composite of category code, status code, and entity code.
type ClaimStatusInfo struct {
	CategoryCode  string
	StatusCode    string
	EntityCode    string
	EffectiveDate string
	ActionCode    string
	ClaimedAmount float64
	PaidAmount    float64
	HasAmounts    bool
	TraceNumber   string
}

func (s ClaimStatusInfo) ToMap() map[string]any {
	m := map[string]any{
		"category_code": s.CategoryCode,
		"status_code":   s.StatusCode,
	}
	if s.EntityCode != "" {
		m["entity_code"] = s.EntityCode
	}
	if s.EffectiveDate != "" {
		m["effective_date"] = s.EffectiveDate
	}
	if s.ActionCode != "" {
		m["action_code"] = s.ActionCode
	}
	if s.HasAmounts {
		m["claimed_amount"] = s.ClaimedAmount
		m["paid_amount"] = s.PaidAmount
	}
	if s.TraceNumber != "" {
		m["trace_number"] = s.TraceNumber
	}
	return m
}

type stateClaimStatus int

const (
	sStatusHeader stateClaimStatus = iota
	sStatusSource
	sStatusReceiver
	sStatusProvider
	sStatusSubscriber
	sStatusDependent
	sStatusClaim
)

func (s stateClaimStatus) String() string {
	switch s {
	case sStatusHeader:
		return "header"
	case sStatusSource:
		return "information source"
	case sStatusReceiver:
		return "information receiver"
	case sStatusProvider:
		return "provider"
	case sStatusSubscriber:
		return "subscriber"
	case sStatusDependent:
		return "dependent"
	default:
		return "claim"
	}
}

// ProjectorClaimStatus walks 276 and 277 windows over the shared
// payer / receiver / provider / subscriber skeleton.
type ProjectorClaimStatus struct{}

func NewProjectorClaimStatus() *ProjectorClaimStatus { return &ProjectorClaimStatus{} }

func (p *ProjectorClaimStatus) Name() string { return "276/277" }

func (p *ProjectorClaimStatus) Codes() []string { return []string{"276", "277"} }

func (p *ProjectorClaimStatus) Project(code string, segments []x12.Segment, path string, col *diag.Collector) x12.TransactionData {
	t := &TransactionClaimStatus{Code: code}
	state := sStatusHeader

	var current *Party
	var inquiry *ClaimInquiry
	var lastTrace string

	flush := func() {
		if inquiry != nil {
			t.Inquiries = append(t.Inquiries, *inquiry)
			inquiry = nil
		}
	}

	for _, seg := range segments {
		switch seg.ID {
		case "BHT", "HL", "DMG", "DTP", "SVC", "PER", "QTY":
			// loop plumbing and service-level echo outside the canonical tree

		case "NM1":
			flush()
			current = partyFromNM1(seg)
			switch seg.GetTrimmed(1) {
			case "PR", "AY":
				t.InformationSource = current
				state = sStatusSource
			case "41", "40":
				t.InformationReceiver = current
				state = sStatusReceiver
			case "1P", "85":
				t.Provider = current
				state = sStatusProvider
			case "IL":
				t.Subscriber = current
				state = sStatusSubscriber
			case "QC", "03":
				t.Dependent = current
				state = sStatusDependent
			default:
				unexpectedSegment(col, path, state.String(), seg)
			}

		case "N3", "N4":
			if current != nil {
				current.applyAddress(seg)
			}

		case "TRN":
			lastTrace = seg.GetTrimmed(2)
			if code == "276" {
				flush()
				inquiry = &ClaimInquiry{TraceNumber: lastTrace}
				state = sStatusClaim
			}

		case "REF":
			qualifier := seg.GetTrimmed(1)
			value := seg.GetTrimmed(2)
			if inquiry != nil {
				inquiry.References = append(inquiry.References, Identifier{Qualifier: qualifier, Value: value})
			} else if current != nil {
				current.Identifiers = append(current.Identifiers, Identifier{Qualifier: qualifier, Value: value})
			} else {
				unexpectedSegment(col, path, state.String(), seg)
			}

		case "AMT":
			if inquiry != nil && seg.GetTrimmed(1) == "T3" {
				inquiry.ClaimedAmount = amount(col, path, "claim_inquiries.claimed_amount", seg, 2)
				inquiry.HasAmount = true
			}

		case "STC":
			if code != "277" {
				unexpectedSegment(col, path, state.String(), seg)
				continue
			}
			info := ClaimStatusInfo{
				CategoryCode:  seg.Component(1, 0),
				StatusCode:    seg.Component(1, 1),
				EntityCode:    seg.Component(1, 2),
				EffectiveDate: utils.FormatDateCCYYMMDD(seg.GetTrimmed(2)),
				ActionCode:    seg.GetTrimmed(3),
				TraceNumber:   lastTrace,
			}
			if seg.GetTrimmed(4) != "" || seg.GetTrimmed(5) != "" {
				info.ClaimedAmount = amount(col, path, "claim_status_info.claimed_amount", seg, 4)
				info.PaidAmount = amount(col, path, "claim_status_info.paid_amount", seg, 5)
				info.HasAmounts = true
			}
			t.StatusInfo = append(t.StatusInfo, info)
			state = sStatusClaim

		case "MSG":
			if v := seg.GetTrimmed(1); v != "" {
				t.Messages = append(t.Messages, v)
			}

		default:
			unexpectedSegment(col, path, state.String(), seg)
		}
	}
	flush()

	if t.InformationSource == nil {
		missingRequired(col, path, "information_source", "NM1*PR information source")
	}
	if t.Provider == nil {
		missingRequired(col, path, "provider", "NM1*1P provider")
	}
	return t
}
