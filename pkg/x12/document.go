package x12

import (
	"github.com/oarkflow/edi/pkg/utils"
)

// TransactionData is the semantic tree a projector produces for a
// recognized transaction-set code. The serialization step is explicit:
// the canonical JSON shape is defined once by ToMap.
type TransactionData interface {
	TransactionCode() string
	ToMap() map[string]any
}

// Document is the root of the canonical model: interchanges holding
// functional groups holding transaction sets. The document is owned by
// whichever layer last produced it.
type Document struct {
	Interchanges []*Interchange
	Delimiters   Delimiters
}

// ToMap serializes the document per the canonical JSON shape.
func (d *Document) ToMap() map[string]any {
	interchanges := make([]any, 0, len(d.Interchanges))
	for _, ic := range d.Interchanges {
		interchanges = append(interchanges, ic.ToMap())
	}
	return map[string]any{"interchanges": interchanges}
}

// InterchangeHeader mirrors the ISA segment.
type InterchangeHeader struct {
	AuthorizationQualifier string
	AuthorizationInfo      string
	SecurityQualifier      string
	SecurityInfo           string
	SenderQualifier        string
	SenderID               string
	ReceiverQualifier      string
	ReceiverID             string
	Date                   string
	Time                   string
	StandardsID            string
	Version                string
	ControlNumber          string
	AckRequested           string
	UsageIndicator         string
	ComponentSeparator     string
}

// InterchangeTrailer mirrors the IEA segment.
type InterchangeTrailer struct {
	DeclaredGroupCount string
	ControlNumber      string
}

type Interchange struct {
	Header           InterchangeHeader
	FunctionalGroups []*FunctionalGroup
	Trailer          InterchangeTrailer
}

func (ic *Interchange) ToMap() map[string]any {
	groups := make([]any, 0, len(ic.FunctionalGroups))
	for _, g := range ic.FunctionalGroups {
		groups = append(groups, g.ToMap())
	}
	return map[string]any{
		"header": map[string]any{
			"sender_qualifier":    ic.Header.SenderQualifier,
			"sender_id":           ic.Header.SenderID,
			"receiver_qualifier":  ic.Header.ReceiverQualifier,
			"receiver_id":         ic.Header.ReceiverID,
			"date":                utils.FormatDateYYMMDD(ic.Header.Date),
			"time":                utils.FormatTimeHHMM(ic.Header.Time),
			"standards_id":        ic.Header.StandardsID,
			"version":             ic.Header.Version,
			"control_number":      ic.Header.ControlNumber,
			"usage_indicator":     ic.Header.UsageIndicator,
			"component_separator": ic.Header.ComponentSeparator,
		},
		"functional_groups": groups,
	}
}

// FunctionalGroupHeader mirrors the GS segment.
type FunctionalGroupHeader struct {
	FunctionalIDCode  string
	SenderID          string
	ReceiverID        string
	Date              string
	Time              string
	ControlNumber     string
	ResponsibleAgency string
	Version           string
}

// FunctionalGroupTrailer mirrors the GE segment.
type FunctionalGroupTrailer struct {
	DeclaredTransactionCount string
	ControlNumber            string
}

type FunctionalGroup struct {
	Header       FunctionalGroupHeader
	Transactions []*TransactionSet
	Trailer      FunctionalGroupTrailer
}

func (g *FunctionalGroup) ToMap() map[string]any {
	transactions := make([]any, 0, len(g.Transactions))
	for _, t := range g.Transactions {
		transactions = append(transactions, t.ToMap())
	}
	return map[string]any{
		"header": map[string]any{
			"functional_id_code": g.Header.FunctionalIDCode,
			"sender_id":          g.Header.SenderID,
			"receiver_id":        g.Header.ReceiverID,
			"date":               utils.FormatDateCCYYMMDD(g.Header.Date),
			"time":               utils.FormatTimeHHMM(g.Header.Time),
			"control_number":     g.Header.ControlNumber,
			"responsible_agency": g.Header.ResponsibleAgency,
			"version":            g.Header.Version,
		},
		"transactions": transactions,
	}
}

// TransactionSetHeader mirrors the ST segment.
type TransactionSetHeader struct {
	Code          string
	ControlNumber string
}

// TransactionSetTrailer mirrors the SE segment.
type TransactionSetTrailer struct {
	DeclaredSegmentCount string
	ControlNumber        string
}

// TransactionSet holds one ST..SE window. Segments is the full window
// inclusive of ST and SE. Data is nil when no projector recognized the
// transaction-set code, in which case the raw segments are retained
// verbatim.
type TransactionSet struct {
	Header   TransactionSetHeader
	Segments []Segment
	Trailer  TransactionSetTrailer
	Data     TransactionData
}

func (t *TransactionSet) ToMap() map[string]any {
	m := map[string]any{
		"header": map[string]any{
			"transaction_set_code": t.Header.Code,
			"control_number":       t.Header.ControlNumber,
		},
	}
	if t.Data != nil {
		m["transaction_data"] = t.Data.ToMap()
	} else {
		segments := make([]any, 0, len(t.Segments))
		for _, s := range t.Segments {
			segments = append(segments, s.ToMap())
		}
		m["segments"] = segments
	}
	return m
}
