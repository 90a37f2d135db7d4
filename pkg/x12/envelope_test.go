package x12

import (
	"strings"
	"testing"

	"github.com/oarkflow/edi/pkg/diag"
)

func minimal835(mutations ...func(string) string) string {
	doc := sampleISA +
		"GS*HP*SENDER*RECEIVER*20240101*1200*1*X*005010X221A1~" +
		"ST*835*0001~" +
		"BPR*I*1000.00*C*ACH*CCP*01*123456789*DA*987654321*1500000000**01*123456789*DA*987654321*20240101~" +
		"TRN*1*TRACE123*1500000000~" +
		"N1*PR*PAYER~" +
		"N1*PE*PAYEE*XX*1234567893~" +
		"CLP*CLM001*1*1200.00*1000.00*200.00*MC*PAYERCLAIM~" +
		"SE*7*0001~" +
		"GE*1*1~" +
		"IEA*1*000000001~"
	for _, m := range mutations {
		doc = m(doc)
	}
	return doc
}

func replace(old, new string) func(string) string {
	return func(doc string) string { return strings.Replace(doc, old, new, 1) }
}

func parse(t *testing.T, input string) (*Document, *diag.Collector) {
	t.Helper()
	col := diag.NewCollector()
	doc, err := NewParser(col).Parse([]byte(input))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	return doc, col
}

func hasCode(col *diag.Collector, code string) bool {
	for _, d := range col.Entries() {
		if d.Code == code {
			return true
		}
	}
	return false
}

func TestAssembleMinimal835(t *testing.T) {
	doc, col := parse(t, minimal835())
	if len(doc.Interchanges) != 1 {
		t.Fatalf("expected 1 interchange, got %d", len(doc.Interchanges))
	}
	ic := doc.Interchanges[0]
	if ic.Header.SenderID != "SENDER" || ic.Header.ReceiverID != "RECEIVER" {
		t.Errorf("unexpected interchange parties: %q -> %q", ic.Header.SenderID, ic.Header.ReceiverID)
	}
	if ic.Header.ControlNumber != "000000001" {
		t.Errorf("expected ISA13 000000001, got %q", ic.Header.ControlNumber)
	}
	if len(ic.FunctionalGroups) != 1 {
		t.Fatalf("expected 1 functional group, got %d", len(ic.FunctionalGroups))
	}
	g := ic.FunctionalGroups[0]
	if g.Header.FunctionalIDCode != "HP" {
		t.Errorf("expected functional id HP, got %q", g.Header.FunctionalIDCode)
	}
	if len(g.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(g.Transactions))
	}
	ts := g.Transactions[0]
	if ts.Header.Code != "835" || ts.Header.ControlNumber != "0001" {
		t.Errorf("unexpected ST header: %+v", ts.Header)
	}
	// ST through SE inclusive
	if len(ts.Segments) != 7 {
		t.Errorf("expected 7 segments in the transaction window, got %d", len(ts.Segments))
	}
	if !col.IsValid() {
		t.Errorf("expected a clean parse, got %+v", col.Entries())
	}
}

func TestAssembleSECountInvalid(t *testing.T) {
	_, col := parse(t, minimal835(replace("SE*7*0001~", "SE*99*0001~")))
	var found *diag.Diagnostic
	for _, d := range col.Entries() {
		if d.Code == "SE01_COUNT_INVALID" {
			d := d
			if found != nil {
				t.Fatal("expected exactly one SE01_COUNT_INVALID diagnostic")
			}
			found = &d
		}
	}
	if found == nil {
		t.Fatal("expected an SE01_COUNT_INVALID diagnostic")
	}
	if found.Context["declared"] != 99 || found.Context["actual"] != 7 {
		t.Errorf("unexpected context: %+v", found.Context)
	}
	if col.IsValid() {
		t.Error("expected the run to be invalid")
	}
}

func TestAssembleControlNumberMismatches(t *testing.T) {
	_, col := parse(t, minimal835(
		replace("IEA*1*000000001~", "IEA*1*000000099~"),
		replace("GE*1*1~", "GE*1*999999~"),
		replace("SE*7*0001~", "SE*7*XYZ999~"),
	))
	for _, code := range []string{"ISA13_IEA02_MISMATCH", "GS06_GE02_MISMATCH", "ST02_SE02_MISMATCH"} {
		if !hasCode(col, code) {
			t.Errorf("expected a %s diagnostic", code)
		}
	}
}

func TestAssembleInterchangeWithoutGroups(t *testing.T) {
	doc, col := parse(t, sampleISA+"IEA*0*000000001~")
	if len(doc.Interchanges) != 1 {
		t.Fatalf("expected 1 interchange, got %d", len(doc.Interchanges))
	}
	if len(doc.Interchanges[0].FunctionalGroups) != 0 {
		t.Errorf("expected no functional groups")
	}
	if !col.IsValid() {
		t.Errorf("unexpected diagnostics: %+v", col.Entries())
	}
}

func TestAssembleGroupCountMismatch(t *testing.T) {
	_, col := parse(t, minimal835(replace("IEA*1*000000001~", "IEA*5*000000001~")))
	if !hasCode(col, "ISA_GROUP_COUNT_MISMATCH") {
		t.Error("expected an ISA_GROUP_COUNT_MISMATCH diagnostic")
	}
}

func TestAssembleTwoGroups(t *testing.T) {
	doc, _ := parse(t, sampleISA+
		"GS*HP*SENDER*RECEIVER*20240101*1200*1*X*005010X221A1~"+
		"ST*835*0001~SE*2*0001~"+
		"GE*1*1~"+
		"GS*HB*SENDER*RECEIVER*20240101*1200*2*X*005010X279A1~"+
		"ST*271*0002~SE*2*0002~"+
		"GE*1*2~"+
		"IEA*2*000000001~")
	groups := doc.Interchanges[0].FunctionalGroups
	if len(groups) != 2 {
		t.Fatalf("expected 2 functional groups, got %d", len(groups))
	}
	if groups[0].Header.FunctionalIDCode != "HP" || groups[1].Header.FunctionalIDCode != "HB" {
		t.Errorf("unexpected group ids: %q %q", groups[0].Header.FunctionalIDCode, groups[1].Header.FunctionalIDCode)
	}
}

func TestAssembleTwoTransactionsOneGroup(t *testing.T) {
	doc, col := parse(t, sampleISA+
		"GS*HP*SENDER*RECEIVER*20240101*1200*1*X*005010X221A1~"+
		"ST*835*0001~SE*2*0001~"+
		"ST*837*0002~SE*2*0002~"+
		"GE*2*1~"+
		"IEA*1*000000001~")
	txs := doc.Interchanges[0].FunctionalGroups[0].Transactions
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	if txs[0].Header.Code != "835" || txs[1].Header.Code != "837" {
		t.Errorf("unexpected transaction codes: %q %q", txs[0].Header.Code, txs[1].Header.Code)
	}
	if !col.IsValid() {
		t.Errorf("expected a clean parse, got %+v", col.Entries())
	}
}

func TestAssembleUnterminatedEnvelopes(t *testing.T) {
	_, col := parse(t, sampleISA+
		"GS*HP*SENDER*RECEIVER*20240101*1200*1*X*005010X221A1~"+
		"ST*835*0001~BPR*I*1.00~")
	for _, code := range []string{"ST_UNTERMINATED", "GS_UNTERMINATED", "ISA_UNTERMINATED"} {
		if !hasCode(col, code) {
			t.Errorf("expected a %s diagnostic", code)
		}
	}
}

func TestAssembleNestedISA(t *testing.T) {
	_, col := parse(t, sampleISA+sampleISA+"IEA*0*000000001~")
	if !hasCode(col, "NESTED_ISA") {
		t.Error("expected a NESTED_ISA diagnostic")
	}
}

func TestParserDetect(t *testing.T) {
	p := NewParser(diag.NewCollector())
	if !p.Detect([]byte(minimal835())) {
		t.Error("expected Detect to accept an X12 interchange")
	}
	if p.Detect([]byte("MSH|^~\\&|")) {
		t.Error("expected Detect to reject non-X12 input")
	}
	if p.Detect(nil) {
		t.Error("expected Detect to reject empty input")
	}
}
