package transactions

import (
	"testing"

	"github.com/oarkflow/edi/pkg/diag"
	"github.com/oarkflow/edi/pkg/x12"
)

func segs(t *testing.T, raw string) []x12.Segment {
	t.Helper()
	delims := x12.Delimiters{Element: '*', Component: ':', Repetition: '^', Segment: '~'}
	return x12.NewTokenizer([]byte(raw), delims, diag.NewCollector()).All()
}

func project835(t *testing.T, cfg Config, raw string) (*Transaction835, *diag.Collector) {
	t.Helper()
	col := diag.NewCollector()
	data := NewProjector835(cfg).Project("835", segs(t, raw), "transactions[0]", col)
	tx, ok := data.(*Transaction835)
	if !ok {
		t.Fatalf("expected a *Transaction835, got %T", data)
	}
	return tx, col
}

const window835 = "BPR*I*1000.00*C*ACH*CCP*01*123456789*DA*987654321*1500000000**01*123456789*DA*987654321*20240101~" +
	"TRN*1*TRACE123*1500000000~" +
	"N1*PR*PAYER~" +
	"N1*PE*PAYEE*XX*1234567893~" +
	"CLP*CLM001*1*1200.00*1000.00*200.00*MC*PAYERCLAIM~"

func TestProject835Minimal(t *testing.T) {
	tx, col := project835(t, Config{}, window835)

	fi := tx.FinancialInformation
	if fi.TotalPaid != 1000.00 {
		t.Errorf("expected total_paid 1000.00, got %v", fi.TotalPaid)
	}
	if fi.PaymentMethod != "ACH" {
		t.Errorf("expected payment method ACH, got %q", fi.PaymentMethod)
	}
	if fi.PaymentDate != "2024-01-01" {
		t.Errorf("expected payment date 2024-01-01, got %q", fi.PaymentDate)
	}
	if fi.TraceNumber != "TRACE123" {
		t.Errorf("expected trace TRACE123, got %q", fi.TraceNumber)
	}
	if tx.Payer == nil || tx.Payer.Name != "PAYER" {
		t.Errorf("unexpected payer: %+v", tx.Payer)
	}
	if tx.Payee == nil || tx.Payee.NPI != "1234567893" {
		t.Errorf("expected payee NPI 1234567893, got %+v", tx.Payee)
	}
	if len(tx.Claims) != 1 {
		t.Fatalf("expected 1 claim, got %d", len(tx.Claims))
	}
	c := tx.Claims[0]
	if c.ClaimID != "CLM001" || c.StatusCode != 1 {
		t.Errorf("unexpected claim identity: %+v", c)
	}
	if c.TotalCharge != 1200.00 || c.TotalPaid != 1000.00 || c.PatientResponsibility != 200.00 {
		t.Errorf("unexpected claim amounts: charge=%v paid=%v pr=%v", c.TotalCharge, c.TotalPaid, c.PatientResponsibility)
	}
	if c.FilingIndicator != "MC" || c.PayerControlNumber != "PAYERCLAIM" {
		t.Errorf("unexpected claim codes: %+v", c)
	}
	if !col.IsValid() {
		t.Errorf("expected a clean projection, got %+v", col.Entries())
	}
}

func TestProject835PLBImbalance(t *testing.T) {
	tx, col := project835(t, Config{}, window835+"PLB*1234567893*20240101*CV*-5.00~")

	if len(tx.PLBAdjustments) != 1 {
		t.Fatalf("expected 1 PLB adjustment, got %d", len(tx.PLBAdjustments))
	}
	plb := tx.PLBAdjustments[0]
	if plb.ReasonCode != "CV" || plb.Amount != -5.00 {
		t.Errorf("unexpected PLB adjustment: %+v", plb)
	}

	var found *diag.Diagnostic
	for _, d := range col.Entries() {
		if d.Code == "835_FINANCIAL_IMBALANCE" {
			d := d
			found = &d
		}
	}
	if found == nil {
		t.Fatal("expected an 835_FINANCIAL_IMBALANCE diagnostic")
	}
	if found.Severity != diag.SeverityWarning {
		t.Errorf("expected warning severity, got %s", found.Severity)
	}
	want := map[string]any{
		"bpr_total":    "1000.00",
		"claims_total": "1000.00",
		"plb_total":    "-5.00",
		"delta":        "5.00",
		"tolerance":    "0.01",
	}
	for k, v := range want {
		if found.Context[k] != v {
			t.Errorf("context %s: expected %v, got %v", k, v, found.Context[k])
		}
	}
	// imbalance is a warning, the run stays valid
	if !col.IsValid() {
		t.Error("expected the run to remain valid")
	}
}

func TestProject835PLBSignConventions(t *testing.T) {
	// BPR 995 with claims 1000 and a positive PLB of 5 balances under
	// the deductive convention and not under the additive one
	balanced := "BPR*I*995.00*C*ACH~N1*PR*PAYER~N1*PE*PAYEE*XX*1234567893~" +
		"CLP*CLM001*1*1200.00*1000.00*200.00~" +
		"PLB*1234567893*20240101*CV*5.00~"

	_, col := project835(t, Config{}, balanced)
	for _, d := range col.Entries() {
		if d.Code == "835_FINANCIAL_IMBALANCE" {
			t.Fatalf("deductive convention should balance, got %+v", d)
		}
	}

	_, col = project835(t, Config{PLBSign: PLBSignAdditive}, balanced)
	found := false
	for _, d := range col.Entries() {
		if d.Code == "835_FINANCIAL_IMBALANCE" {
			found = true
		}
	}
	if !found {
		t.Error("additive convention should report an imbalance")
	}
}

func TestProject835PLBAlternatingSigns(t *testing.T) {
	// +10 and -10 cancel out, so the deductive equation still balances
	tx, col := project835(t, Config{}, window835+
		"PLB*1234567893*20240101*CV*10.00*WO*-10.00~")

	if len(tx.PLBAdjustments) != 2 {
		t.Fatalf("expected 2 PLB adjustments, got %d", len(tx.PLBAdjustments))
	}
	if tx.PLBAdjustments[0].Amount != 10.00 || tx.PLBAdjustments[1].Amount != -10.00 {
		t.Errorf("unexpected amounts: %+v", tx.PLBAdjustments)
	}
	if hasDiag(col, "835_FINANCIAL_IMBALANCE") {
		t.Error("cancelling PLB amounts must balance")
	}
}

func TestProject835CASTriplets(t *testing.T) {
	tx, _ := project835(t, Config{}, window835+"CAS*CO*45*200.00*1*42*20.00*2*96*5.00*3~")

	adjustments := tx.Claims[0].Adjustments
	if len(adjustments) != 3 {
		t.Fatalf("expected 3 adjustments, got %d", len(adjustments))
	}
	want := []Adjustment{
		{GroupCode: "CO", ReasonCode: "45", Amount: 200.00, Quantity: 1},
		{GroupCode: "CO", ReasonCode: "42", Amount: 20.00, Quantity: 2},
		{GroupCode: "CO", ReasonCode: "96", Amount: 5.00, Quantity: 3},
	}
	for i, w := range want {
		if adjustments[i] != w {
			t.Errorf("adjustment %d: expected %+v, got %+v", i, w, adjustments[i])
		}
	}
}

func TestProject835ServiceComposite(t *testing.T) {
	tx, _ := project835(t, Config{}, window835+
		"SVC*HC:99213:25*100.00*75.00**1~"+
		"DTM*472*20240115~"+
		"CAS*PR*1*25.00~")

	services := tx.Claims[0].Services
	if len(services) != 1 {
		t.Fatalf("expected 1 service, got %d", len(services))
	}
	s := services[0]
	if s.ProcedureCode != "99213" {
		t.Errorf("expected procedure 99213, got %q", s.ProcedureCode)
	}
	if len(s.Modifiers) != 1 || s.Modifiers[0] != "25" {
		t.Errorf("expected modifiers [25], got %v", s.Modifiers)
	}
	if s.Charge != 100.00 || s.Paid != 75.00 || s.Units != 1 {
		t.Errorf("unexpected service amounts: %+v", s)
	}
	if s.ServiceDate != "2024-01-15" {
		t.Errorf("expected service date 2024-01-15, got %q", s.ServiceDate)
	}
	if len(s.Adjustments) != 1 || s.Adjustments[0].ReasonCode != "1" {
		t.Errorf("expected one service adjustment, got %+v", s.Adjustments)
	}
}

func TestProject835BareProcedureCode(t *testing.T) {
	tx, _ := project835(t, Config{}, window835+"SVC*99213*100.00*75.00~")
	s := tx.Claims[0].Services[0]
	if s.ProcedureCode != "99213" || len(s.Modifiers) != 0 {
		t.Errorf("expected bare code 99213 without modifiers, got %q %v", s.ProcedureCode, s.Modifiers)
	}
}

func TestProject835PayeeReferences(t *testing.T) {
	tx, col := project835(t, Config{}, window835[:len(window835)-len("CLP*CLM001*1*1200.00*1000.00*200.00*MC*PAYERCLAIM~")]+
		"REF*TJ*123456789~"+
		"REF*1D*987654321~"+
		"CLP*CLM001*1*1200.00*1000.00*200.00*MC*PAYERCLAIM~")

	if tx.Payee.TaxID != "123456789" {
		t.Errorf("expected REF*TJ to set the tax id, got %q", tx.Payee.TaxID)
	}
	if tx.Payee.NPI != "1234567893" {
		t.Errorf("REF*1D must not overwrite the NPI, got %q", tx.Payee.NPI)
	}
	if !hasDiag(col, "835_REF_1D_NPI_CANDIDATE") {
		t.Error("expected an 835_REF_1D_NPI_CANDIDATE diagnostic")
	}
}

func TestProject835MissingRequired(t *testing.T) {
	_, col := project835(t, Config{}, "CLP*CLM001*1*100.00*100.00~")
	if !hasDiag(col, "MISSING_REQUIRED") {
		t.Fatal("expected MISSING_REQUIRED diagnostics")
	}
	if col.IsValid() {
		t.Error("expected the run to be invalid")
	}
}

func TestProject835BadAmount(t *testing.T) {
	_, col := project835(t, Config{}, "BPR*I*NOTANUMBER*C*ACH~N1*PR*P~N1*PE*P~")
	if !hasDiag(col, "NUMERIC_FORMAT") {
		t.Fatal("expected a NUMERIC_FORMAT diagnostic")
	}
}

func hasDiag(col *diag.Collector, code string) bool {
	for _, d := range col.Entries() {
		if d.Code == code {
			return true
		}
	}
	return false
}
