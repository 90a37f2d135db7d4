package x12

import (
	"fmt"
	"strconv"

	"github.com/oarkflow/edi/pkg/diag"
)

// envelope assembly state
type envelopeState int

const (
	stateOutside envelopeState = iota
	stateInInterchange
	stateInGroup
	stateInTransaction
)

// Assembler folds the segment stream into the interchange tree using a
// three-level pushdown (ISA (GS (ST..SE)+ GE)+ IEA) and verifies
// control-number and count integrity on every finalize transition.
// Mismatches are non-fatal: structure keeps being produced and
// downstream stages proceed.
type Assembler struct {
	col *diag.Collector
}

func NewAssembler(col *diag.Collector) *Assembler {
	return &Assembler{col: col}
}

func (a *Assembler) Assemble(segments []Segment) *Document {
	doc := &Document{}
	state := stateOutside

	var (
		interchange *Interchange
		group       *FunctionalGroup
		transaction *TransactionSet
	)

	icIdx, grpIdx, txnIdx := -1, -1, -1

	for _, seg := range segments {
		switch state {
		case stateOutside:
			switch seg.ID {
			case "ISA":
				interchange = &Interchange{Header: interchangeHeader(seg)}
				doc.Interchanges = append(doc.Interchanges, interchange)
				icIdx++
				grpIdx = -1
				state = stateInInterchange
			default:
				a.col.Error("UNEXPECTED", "",
					fmt.Sprintf("segment %s before any interchange header", seg.ID))
			}

		case stateInInterchange:
			switch seg.ID {
			case "ISA":
				a.col.Error("NESTED_ISA", a.icPath(icIdx),
					"ISA encountered inside an open interchange")
			case "GS":
				group = &FunctionalGroup{Header: groupHeader(seg)}
				interchange.FunctionalGroups = append(interchange.FunctionalGroups, group)
				grpIdx++
				txnIdx = -1
				state = stateInGroup
			case "IEA":
				interchange.Trailer = InterchangeTrailer{
					DeclaredGroupCount: seg.Get(1),
					ControlNumber:      seg.Get(2),
				}
				a.finalizeInterchange(interchange, icIdx)
				interchange = nil
				state = stateOutside
			case "ST", "SE", "GE":
				a.col.Error("UNEXPECTED", a.icPath(icIdx),
					fmt.Sprintf("segment %s outside a functional group", seg.ID))
			default:
				// stray segment between envelopes, ignored
			}

		case stateInGroup:
			switch seg.ID {
			case "ST":
				transaction = &TransactionSet{
					Header: TransactionSetHeader{
						Code:          seg.Get(1),
						ControlNumber: seg.Get(2),
					},
				}
				transaction.Segments = append(transaction.Segments, seg)
				group.Transactions = append(group.Transactions, transaction)
				txnIdx++
				state = stateInTransaction
			case "GE":
				group.Trailer = FunctionalGroupTrailer{
					DeclaredTransactionCount: seg.Get(1),
					ControlNumber:            seg.Get(2),
				}
				a.finalizeGroup(group, icIdx, grpIdx)
				group = nil
				state = stateInInterchange
			case "ISA", "GS", "SE", "IEA":
				a.col.Error("UNEXPECTED", a.grpPath(icIdx, grpIdx),
					fmt.Sprintf("segment %s inside a functional group outside any transaction", seg.ID))
			default:
				// stray segment, ignored
			}

		case stateInTransaction:
			switch seg.ID {
			case "SE":
				transaction.Segments = append(transaction.Segments, seg)
				transaction.Trailer = TransactionSetTrailer{
					DeclaredSegmentCount: seg.Get(1),
					ControlNumber:        seg.Get(2),
				}
				a.finalizeTransaction(transaction, icIdx, grpIdx, txnIdx)
				transaction = nil
				state = stateInGroup
			case "ISA", "GS", "ST", "GE", "IEA":
				a.col.Error("UNEXPECTED", a.txnPath(icIdx, grpIdx, txnIdx),
					fmt.Sprintf("envelope segment %s inside an open transaction", seg.ID))
			default:
				transaction.Segments = append(transaction.Segments, seg)
			}
		}
	}

	// unterminated envelopes at end of input
	switch state {
	case stateInTransaction:
		a.col.Error("ST_UNTERMINATED", a.txnPath(icIdx, grpIdx, txnIdx),
			"transaction set is missing its SE trailer")
		fallthrough
	case stateInGroup:
		a.col.Error("GS_UNTERMINATED", a.grpPath(icIdx, grpIdx),
			"functional group is missing its GE trailer")
		fallthrough
	case stateInInterchange:
		a.col.Error("ISA_UNTERMINATED", a.icPath(icIdx),
			"interchange is missing its IEA trailer")
	}

	return doc
}

func (a *Assembler) finalizeInterchange(ic *Interchange, i int) {
	path := a.icPath(i)
	if ic.Trailer.ControlNumber != ic.Header.ControlNumber {
		a.col.Add(diag.Diagnostic{
			Code:     "ISA13_IEA02_MISMATCH",
			Severity: diag.SeverityError,
			Path:     path,
			Message: fmt.Sprintf("interchange control numbers differ: ISA13=%s IEA02=%s",
				ic.Header.ControlNumber, ic.Trailer.ControlNumber),
			Context: map[string]any{
				"declared": ic.Trailer.ControlNumber,
				"expected": ic.Header.ControlNumber,
			},
		})
	}
	if declared, err := strconv.Atoi(ic.Trailer.DeclaredGroupCount); err == nil {
		if declared != len(ic.FunctionalGroups) {
			a.col.Add(diag.Diagnostic{
				Code:     "ISA_GROUP_COUNT_MISMATCH",
				Severity: diag.SeverityError,
				Path:     path,
				Message: fmt.Sprintf("IEA01 declares %d functional groups, interchange contains %d",
					declared, len(ic.FunctionalGroups)),
				Context: map[string]any{
					"declared": declared,
					"actual":   len(ic.FunctionalGroups),
				},
			})
		}
	}
}

func (a *Assembler) finalizeGroup(g *FunctionalGroup, i, j int) {
	path := a.grpPath(i, j)
	if g.Trailer.ControlNumber != g.Header.ControlNumber {
		a.col.Add(diag.Diagnostic{
			Code:     "GS06_GE02_MISMATCH",
			Severity: diag.SeverityError,
			Path:     path,
			Message: fmt.Sprintf("group control numbers differ: GS06=%s GE02=%s",
				g.Header.ControlNumber, g.Trailer.ControlNumber),
			Context: map[string]any{
				"declared": g.Trailer.ControlNumber,
				"expected": g.Header.ControlNumber,
			},
		})
	}
	if declared, err := strconv.Atoi(g.Trailer.DeclaredTransactionCount); err == nil {
		if declared != len(g.Transactions) {
			a.col.Add(diag.Diagnostic{
				Code:     "GE01_COUNT_MISMATCH",
				Severity: diag.SeverityError,
				Path:     path,
				Message: fmt.Sprintf("GE01 declares %d transaction sets, group contains %d",
					declared, len(g.Transactions)),
				Context: map[string]any{
					"declared": declared,
					"actual":   len(g.Transactions),
				},
			})
		}
	}
}

func (a *Assembler) finalizeTransaction(t *TransactionSet, i, j, k int) {
	path := a.txnPath(i, j, k)
	if t.Trailer.ControlNumber != t.Header.ControlNumber {
		a.col.Add(diag.Diagnostic{
			Code:     "ST02_SE02_MISMATCH",
			Severity: diag.SeverityError,
			Path:     path,
			Message: fmt.Sprintf("transaction control numbers differ: ST02=%s SE02=%s",
				t.Header.ControlNumber, t.Trailer.ControlNumber),
			Context: map[string]any{
				"declared": t.Trailer.ControlNumber,
				"expected": t.Header.ControlNumber,
			},
		})
	}
	actual := len(t.Segments)
	if declared, err := strconv.Atoi(t.Trailer.DeclaredSegmentCount); err == nil {
		if declared != actual {
			a.col.Add(diag.Diagnostic{
				Code:     "SE01_COUNT_INVALID",
				Severity: diag.SeverityError,
				Path:     path,
				Message: fmt.Sprintf("SE01 declares %d segments, transaction contains %d (ST through SE inclusive)",
					declared, actual),
				Context: map[string]any{
					"declared": declared,
					"actual":   actual,
				},
			})
		}
	}
}

func (a *Assembler) icPath(i int) string {
	if i < 0 {
		return ""
	}
	return fmt.Sprintf("interchanges[%d]", i)
}

func (a *Assembler) grpPath(i, j int) string {
	return fmt.Sprintf("%s.functional_groups[%d]", a.icPath(i), j)
}

func (a *Assembler) txnPath(i, j, k int) string {
	return fmt.Sprintf("%s.transactions[%d]", a.grpPath(i, j), k)
}

func interchangeHeader(seg Segment) InterchangeHeader {
	return InterchangeHeader{
		AuthorizationQualifier: seg.GetTrimmed(1),
		AuthorizationInfo:      seg.GetTrimmed(2),
		SecurityQualifier:      seg.GetTrimmed(3),
		SecurityInfo:           seg.GetTrimmed(4),
		SenderQualifier:        seg.GetTrimmed(5),
		SenderID:               seg.GetTrimmed(6),
		ReceiverQualifier:      seg.GetTrimmed(7),
		ReceiverID:             seg.GetTrimmed(8),
		Date:                   seg.GetTrimmed(9),
		Time:                   seg.GetTrimmed(10),
		StandardsID:            seg.GetTrimmed(11),
		Version:                seg.GetTrimmed(12),
		ControlNumber:          seg.GetTrimmed(13),
		AckRequested:           seg.GetTrimmed(14),
		UsageIndicator:         seg.GetTrimmed(15),
		ComponentSeparator:     seg.Get(16),
	}
}

func groupHeader(seg Segment) FunctionalGroupHeader {
	return FunctionalGroupHeader{
		FunctionalIDCode:  seg.GetTrimmed(1),
		SenderID:          seg.GetTrimmed(2),
		ReceiverID:        seg.GetTrimmed(3),
		Date:              seg.GetTrimmed(4),
		Time:              seg.GetTrimmed(5),
		ControlNumber:     seg.GetTrimmed(6),
		ResponsibleAgency: seg.GetTrimmed(7),
		Version:           seg.GetTrimmed(8),
	}
}
