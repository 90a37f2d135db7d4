package rules

import (
	"testing"
	"time"

	"github.com/oarkflow/edi/pkg/diag"
	"github.com/oarkflow/edi/pkg/transactions"
	"github.com/oarkflow/edi/pkg/x12"
)

// doc835 wraps a semantic tree into a one-transaction document.
func doc835(data x12.TransactionData) *x12.Document {
	return &x12.Document{Interchanges: []*x12.Interchange{{
		FunctionalGroups: []*x12.FunctionalGroup{{
			Transactions: []*x12.TransactionSet{{
				Header: x12.TransactionSetHeader{Code: "835", ControlNumber: "0001"},
				Data:   data,
			}},
		}},
	}}}
}

func sampleTree() *transactions.Transaction835 {
	return &transactions.Transaction835{
		FinancialInformation: transactions.FinancialInformation{
			TotalPaid:     1000.00,
			PaymentMethod: "ACH",
			PaymentDate:   "2024-01-01",
			TraceNumber:   "TRACE123",
		},
		Payer: &transactions.Party{Name: "PAYER", ID: "PAYER01"},
		Payee: &transactions.Party{Name: "PAYEE", NPI: "1234567893", TaxID: "123456789"},
		Claims: []*transactions.Claim835{{
			ClaimID:               "CLM001",
			StatusCode:            1,
			TotalCharge:           1200.00,
			TotalPaid:             1000.00,
			PatientResponsibility: 200.00,
			FilingIndicator:       "MC",
		}},
	}
}

func TestEngineCustomRuleFires(t *testing.T) {
	rule := &Rule{
		ID:       "HIGH_VALUE",
		Severity: "info",
		Conditions: []Condition{
			{Field: "financial_information.total_paid", Operator: "gt", Value: 500},
		},
		Message: "High-value payment {value}",
	}
	col := diag.NewCollector()
	NewEngine([]*Rule{rule}, Policy{}).Evaluate(doc835(sampleTree()), col)

	entries := col.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d: %+v", len(entries), entries)
	}
	d := entries[0]
	if d.Code != "HIGH_VALUE" || d.Severity != diag.SeverityInfo {
		t.Errorf("unexpected diagnostic identity: %+v", d)
	}
	if d.Value != "1000.00" {
		t.Errorf("expected value 1000.00, got %q", d.Value)
	}
	if d.Message != "High-value payment 1000.00" {
		t.Errorf("unexpected message: %q", d.Message)
	}
	if d.RuleID != "HIGH_VALUE" {
		t.Errorf("expected rule id HIGH_VALUE, got %q", d.RuleID)
	}
	if col.RulesApplied() != 1 {
		t.Errorf("expected 1 rule applied, got %d", col.RulesApplied())
	}
}

func TestEngineWildcardFiresPerIndex(t *testing.T) {
	tree := sampleTree()
	tree.Claims = append(tree.Claims, &transactions.Claim835{ClaimID: "CLM002", TotalCharge: 100, TotalPaid: -50})
	rule := &Rule{
		ID:       "NEGATIVE_PAID",
		Severity: "warning",
		Conditions: []Condition{
			{Field: "claims[*].total_paid", Operator: "lt", Value: 0},
		},
		Message: "claim payment {value} is negative",
	}
	col := diag.NewCollector()
	NewEngine([]*Rule{rule}, Policy{}).Evaluate(doc835(tree), col)

	entries := col.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected the rule to fire once, got %d: %+v", len(entries), entries)
	}
	if entries[0].FieldPath != "claims[1].total_paid" {
		t.Errorf("expected field path claims[1].total_paid, got %q", entries[0].FieldPath)
	}
	if entries[0].Value != "-50.00" {
		t.Errorf("expected value -50.00, got %q", entries[0].Value)
	}
}

func TestEngineNestedWildcards(t *testing.T) {
	tree := sampleTree()
	tree.Claims[0].Services = []*transactions.Service835{
		{ProcedureCode: "99213", Charge: 10.00, Paid: -5.00, Units: 1},
		{ProcedureCode: "99214", Charge: 10.00, Paid: -7.00, Units: 0},
	}
	rule := &Rule{
		ID:       "NEGATIVE_SERVICE_PAID",
		Severity: "warning",
		Conditions: []Condition{
			{Field: "claims[*].services[*].paid", Operator: "lt", Value: 0},
		},
		Message: "service payment {value} is negative",
	}
	col := diag.NewCollector()
	NewEngine([]*Rule{rule}, Policy{}).Evaluate(doc835(tree), col)

	entries := col.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected one firing per negative service, got %d: %+v", len(entries), entries)
	}
	if entries[0].FieldPath != "claims[0].services[0].paid" || entries[0].Value != "-5.00" {
		t.Errorf("unexpected first firing: %+v", entries[0])
	}
	if entries[1].FieldPath != "claims[0].services[1].paid" || entries[1].Value != "-7.00" {
		t.Errorf("unexpected second firing: %+v", entries[1])
	}

	// a sibling condition follows the same binding through both brackets
	gated := &Rule{
		ID:       "NEGATIVE_BILLED_SERVICE",
		Severity: "warning",
		Conditions: []Condition{
			{Field: "claims[*].services[*].paid", Operator: "lt", Value: 0},
			{Field: "claims[*].services[*].units", Operator: "gte", Value: 1},
		},
	}
	col = diag.NewCollector()
	NewEngine([]*Rule{gated}, Policy{}).Evaluate(doc835(tree), col)

	entries = col.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected only the first service to satisfy both conditions, got %+v", entries)
	}
	if entries[0].FieldPath != "claims[0].services[0].paid" {
		t.Errorf("unexpected firing: %+v", entries[0])
	}
}

func TestEngineTransactionTypeFilter(t *testing.T) {
	rule := &Rule{
		ID:               "ONLY_837",
		Severity:         "error",
		TransactionTypes: []string{"837"},
		Conditions: []Condition{
			{Field: "financial_information.total_paid", Operator: "exists"},
		},
	}
	col := diag.NewCollector()
	NewEngine([]*Rule{rule}, Policy{}).Evaluate(doc835(sampleTree()), col)
	if len(col.Entries()) != 0 {
		t.Errorf("an 837 rule must not fire against an 835: %+v", col.Entries())
	}
}

func TestEngineDisabledRule(t *testing.T) {
	off := false
	rule := &Rule{
		ID:       "DISABLED",
		Severity: "error",
		Enabled:  &off,
		Conditions: []Condition{
			{Field: "financial_information.total_paid", Operator: "exists"},
		},
	}
	col := diag.NewCollector()
	NewEngine([]*Rule{rule}, Policy{}).Evaluate(doc835(sampleTree()), col)
	if len(col.Entries()) != 0 || col.RulesApplied() != 0 {
		t.Errorf("disabled rules must not run: %+v", col.Entries())
	}
}

func TestEngineFailFast(t *testing.T) {
	first := &Rule{
		ID:       "FIRST_ERROR",
		Severity: "error",
		Conditions: []Condition{
			{Field: "financial_information.total_paid", Operator: "exists"},
		},
	}
	second := &Rule{
		ID:       "SECOND",
		Severity: "info",
		Conditions: []Condition{
			{Field: "financial_information.total_paid", Operator: "exists"},
		},
	}
	col := diag.NewCollector()
	NewEngine([]*Rule{first, second}, Policy{FailFast: true}).Evaluate(doc835(sampleTree()), col)
	if len(col.Entries()) != 1 {
		t.Fatalf("fail-fast must stop after the first error firing, got %+v", col.Entries())
	}
	if col.Entries()[0].Code != "FIRST_ERROR" {
		t.Errorf("unexpected surviving diagnostic: %+v", col.Entries()[0])
	}
}

func TestEngineFailFastPreexistingError(t *testing.T) {
	rule := &Rule{
		ID:       "ANY",
		Severity: "info",
		Conditions: []Condition{
			{Field: "financial_information.total_paid", Operator: "exists"},
		},
	}
	col := diag.NewCollector()
	col.Error("SE01_COUNT_INVALID", "interchanges[0]", "declared segment count does not match")
	NewEngine([]*Rule{rule}, Policy{FailFast: true}).Evaluate(doc835(sampleTree()), col)

	if col.RulesApplied() != 0 {
		t.Errorf("fail-fast must not start rule evaluation over a failed parse, applied %d", col.RulesApplied())
	}
	if len(col.Entries()) != 1 {
		t.Errorf("expected only the parse diagnostic to remain: %+v", col.Entries())
	}
}

func TestEngineMaxErrors(t *testing.T) {
	var ruleset []*Rule
	for _, id := range []string{"E1", "E2", "E3"} {
		ruleset = append(ruleset, &Rule{
			ID:       id,
			Severity: "error",
			Conditions: []Condition{
				{Field: "financial_information.total_paid", Operator: "exists"},
			},
		})
	}
	col := diag.NewCollector()
	NewEngine(ruleset, Policy{MaxErrors: 2}).Evaluate(doc835(sampleTree()), col)
	if col.ErrorCount() != 2 {
		t.Errorf("expected evaluation to stop at 2 errors, got %d", col.ErrorCount())
	}
}

func TestEngineBudget(t *testing.T) {
	rule := &Rule{
		ID:       "ANY",
		Severity: "info",
		Conditions: []Condition{
			{Field: "financial_information.total_paid", Operator: "exists"},
		},
	}
	engine := NewEngine([]*Rule{rule}, Policy{})
	engine.SetBudget(time.Nanosecond)
	col := diag.NewCollector()
	time.Sleep(time.Millisecond)
	engine.Evaluate(doc835(sampleTree()), col)

	found := false
	for _, d := range col.Entries() {
		if d.Code == "RULES_TIMEOUT" && d.Severity == diag.SeverityInfo {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a RULES_TIMEOUT diagnostic")
	}
}

func TestEngineSkipsRawTransactions(t *testing.T) {
	doc := &x12.Document{Interchanges: []*x12.Interchange{{
		FunctionalGroups: []*x12.FunctionalGroup{{
			Transactions: []*x12.TransactionSet{{
				Header: x12.TransactionSetHeader{Code: "999", ControlNumber: "0001"},
			}},
		}},
	}}}
	rule := &Rule{
		ID:       "ANY",
		Severity: "error",
		Conditions: []Condition{
			{Field: "header.control_number", Operator: "exists"},
		},
	}
	col := diag.NewCollector()
	NewEngine([]*Rule{rule}, Policy{}).Evaluate(doc, col)
	if len(col.Entries()) != 0 {
		t.Errorf("rules must not run against unprojected transactions: %+v", col.Entries())
	}
}

func TestBuiltinBalanceCheck(t *testing.T) {
	tree := sampleTree()
	tree.PLBAdjustments = []transactions.PLBAdjustment{{ProviderID: "1234567893", ReasonCode: "CV", Amount: -5.00}}
	set, err := BuiltinSet("business")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	col := diag.NewCollector()
	NewEngine(set, Policy{}).Evaluate(doc835(tree), col)

	found := false
	for _, d := range col.Entries() {
		if d.Code == "835_BALANCE_CHECK" {
			found = true
			if d.Context["delta"] != "5.00" {
				t.Errorf("unexpected delta: %v", d.Context["delta"])
			}
		}
	}
	if !found {
		t.Fatal("expected the business balance check to fire")
	}
}

func TestBuiltinControlNumberUniqueness(t *testing.T) {
	doc := doc835(sampleTree())
	group := doc.Interchanges[0].FunctionalGroups[0]
	group.Transactions = append(group.Transactions, &x12.TransactionSet{
		Header: x12.TransactionSetHeader{Code: "835", ControlNumber: "0001"},
		Data:   sampleTree(),
	})
	set, err := BuiltinSet("hipaa")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	col := diag.NewCollector()
	NewEngine(set, Policy{}).Evaluate(doc, col)

	if !hasEntry(col, "CONTROL_NUMBER_UNIQUE") {
		t.Fatal("expected the duplicate control number to be flagged")
	}
}

func TestBuiltinSets(t *testing.T) {
	for _, name := range []string{"basic", "business", "hipaa", "hipaa-advanced", "enhanced-business", "comprehensive", "all"} {
		set, err := BuiltinSet(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(set) == 0 {
			t.Errorf("%s: expected rules", name)
		}
		seen := map[string]bool{}
		for _, r := range set {
			if seen[r.ID] {
				t.Errorf("%s: duplicate rule id %s", name, r.ID)
			}
			seen[r.ID] = true
		}
	}
	if _, err := BuiltinSet("bogus"); err == nil {
		t.Error("expected an error for an unknown set name")
	}
}

func hasEntry(col *diag.Collector, code string) bool {
	for _, d := range col.Entries() {
		if d.Code == code {
			return true
		}
	}
	return false
}
