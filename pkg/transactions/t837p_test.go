package transactions

import (
	"testing"

	"github.com/oarkflow/edi/pkg/diag"
)

const window837 = "BHT*0019*00*REF47517*20240101*1200*CH~" +
	"NM1*41*2*BILLING SERVICE*****46*SUBMITTER01~" +
	"NM1*40*2*CLEARINGHOUSE*****46*RECEIVER01~" +
	"HL*1**20*1~" +
	"NM1*85*2*PROVIDER GROUP*****XX*1234567893~" +
	"N3*123 MAIN ST~" +
	"N4*SPRINGFIELD*IL*62701~" +
	"REF*EI*123456789~" +
	"HL*2*1*22*0~" +
	"SBR*P*18*GROUP123~" +
	"NM1*IL*1*DOE*JANE****MI*MEMBER001~" +
	"CLM*CLAIM001*500.00***11:B:1*Y*A*Y*Y~" +
	"HI*ABK:J189*ABF:M5416~" +
	"NM1*82*1*SMITH*JOHN****XX*1234567893~" +
	"LX*1~" +
	"SV1*HC:99213:25*125.00*UN*1***1:2~" +
	"DTP*472*D8*20240115~"

func project837(t *testing.T, raw string) (*Transaction837P, *diag.Collector) {
	t.Helper()
	col := diag.NewCollector()
	data := NewProjector837P().Project("837", segs(t, raw), "transactions[0]", col)
	tx, ok := data.(*Transaction837P)
	if !ok {
		t.Fatalf("expected a *Transaction837P, got %T", data)
	}
	return tx, col
}

func TestProject837P(t *testing.T) {
	tx, col := project837(t, window837)

	if tx.Submitter == nil || tx.Submitter.Name != "BILLING SERVICE" {
		t.Errorf("unexpected submitter: %+v", tx.Submitter)
	}
	if tx.Receiver == nil || tx.Receiver.Name != "CLEARINGHOUSE" {
		t.Errorf("unexpected receiver: %+v", tx.Receiver)
	}
	bp := tx.BillingProvider
	if bp == nil || bp.NPI != "1234567893" {
		t.Fatalf("unexpected billing provider: %+v", bp)
	}
	if bp.TaxID != "123456789" {
		t.Errorf("expected REF*EI to set the billing provider tax id, got %q", bp.TaxID)
	}
	if bp.City != "SPRINGFIELD" || bp.State != "IL" || bp.PostalCode != "62701" {
		t.Errorf("unexpected billing provider address: %+v", bp)
	}
	if tx.Subscriber == nil || tx.Subscriber.Name != "DOE" || tx.Subscriber.FirstName != "JANE" {
		t.Errorf("unexpected subscriber: %+v", tx.Subscriber)
	}
	if tx.RenderingProvider == nil || tx.RenderingProvider.NPI != "1234567893" {
		t.Errorf("unexpected rendering provider: %+v", tx.RenderingProvider)
	}

	if tx.Claim.ClaimID != "CLAIM001" || tx.Claim.TotalCharge != 500.00 {
		t.Errorf("unexpected claim: %+v", tx.Claim)
	}
	if tx.Claim.PlaceOfService != "11" {
		t.Errorf("expected place of service 11, got %q", tx.Claim.PlaceOfService)
	}
	if tx.Claim.FrequencyCode != "1" {
		t.Errorf("expected frequency code 1, got %q", tx.Claim.FrequencyCode)
	}

	if len(tx.Diagnoses) != 2 || tx.Diagnoses[0] != "J189" || tx.Diagnoses[1] != "M5416" {
		t.Errorf("unexpected diagnoses: %v", tx.Diagnoses)
	}

	if len(tx.ServiceLines) != 1 {
		t.Fatalf("expected 1 service line, got %d", len(tx.ServiceLines))
	}
	line := tx.ServiceLines[0]
	if line.LineNumber != "1" || line.ProcedureCode != "99213" {
		t.Errorf("unexpected service line identity: %+v", line)
	}
	if len(line.Modifiers) != 1 || line.Modifiers[0] != "25" {
		t.Errorf("expected modifiers [25], got %v", line.Modifiers)
	}
	if line.Charge != 125.00 || line.UnitOfMeasure != "UN" || line.Units != 1 {
		t.Errorf("unexpected service line amounts: %+v", line)
	}
	if len(line.DiagnosisPointers) != 2 || line.DiagnosisPointers[0] != "1" || line.DiagnosisPointers[1] != "2" {
		t.Errorf("unexpected diagnosis pointers: %v", line.DiagnosisPointers)
	}
	if line.ServiceDate != "2024-01-15" {
		t.Errorf("expected service date 2024-01-15, got %q", line.ServiceDate)
	}

	if !col.IsValid() {
		t.Errorf("expected a clean projection, got %+v", col.Entries())
	}
}

func TestProject837PMissingRequired(t *testing.T) {
	_, col := project837(t, "BHT*0019*00*REF1*20240101*1200*CH~")
	if !hasDiag(col, "MISSING_REQUIRED") {
		t.Fatal("expected MISSING_REQUIRED diagnostics")
	}
	if col.IsValid() {
		t.Error("expected the run to be invalid")
	}
}
