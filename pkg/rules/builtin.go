package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/oarkflow/edi/pkg/diag"
	"github.com/oarkflow/edi/pkg/utils"
	"github.com/oarkflow/edi/pkg/x12"
)

func fptr(f float64) *float64 { return &f }

// recognizedTransactionSets are the codes the built-in projectors
// understand.
var recognizedTransactionSets = []string{"270", "271", "276", "277", "835", "837"}

// basicRules covers structural presence and primitive numeric sanity.
func basicRules() []*Rule {
	return []*Rule{
		{
			ID:               "835_FINANCIAL_INFO_REQUIRED",
			Description:      "an 835 must carry BPR financial information",
			Severity:         "error",
			TransactionTypes: []string{"835"},
			Category:         "structural",
			Validators: []Validator{
				{Field: "financial_information.total_paid", Type: "required"},
				{Field: "financial_information.payment_method", Type: "required"},
			},
		},
		{
			ID:               "835_CLAIM_ID_REQUIRED",
			Description:      "every claim needs a submitter claim id",
			Severity:         "error",
			TransactionTypes: []string{"835"},
			Category:         "structural",
			Validators: []Validator{
				{Field: "claims[*].claim_id", Type: "required"},
			},
		},
		{
			ID:               "835_CLAIM_STATUS_RANGE",
			Description:      "claim status codes fall between 1 and 25",
			Severity:         "warning",
			TransactionTypes: []string{"835"},
			Category:         "structural",
			Validators: []Validator{
				{Field: "claims[*].status_code", Type: "range", Min: fptr(1), Max: fptr(25)},
			},
		},
		{
			ID:               "837_CLAIM_REQUIRED",
			Description:      "a professional claim needs CLM identification",
			Severity:         "error",
			TransactionTypes: []string{"837"},
			Category:         "structural",
			Validators: []Validator{
				{Field: "claim.claim_id", Type: "required"},
			},
		},
	}
}

// businessRules covers 835 financial consistency and monetary
// invariants.
func businessRules() []*Rule {
	return []*Rule{
		{
			ID:               "835_PAYMENT_METHOD_VALID",
			Description:      "BPR payment method must be a recognized code",
			Severity:         "warning",
			TransactionTypes: []string{"835"},
			Category:         "business",
			Conditions: []Condition{
				{Field: "financial_information.payment_method", Operator: "exists"},
				{Field: "financial_information.payment_method", Operator: "not_in",
					Value: []any{"ACH", "CHK", "WIR", "NON"}},
			},
			Message: "payment method {value} is not one of ACH, CHK, WIR, NON",
		},
		{
			ID:               "835_NEGATIVE_CHARGE",
			Description:      "claim charges must not be negative",
			Severity:         "error",
			TransactionTypes: []string{"835"},
			Category:         "business",
			Conditions: []Condition{
				{Field: "claims[*].total_charge", Operator: "lt", Value: 0},
			},
			Message: "claim charge {value} is negative",
		},
		{
			ID:               "835_NEGATIVE_PAID",
			Description:      "claim payments must not be negative",
			Severity:         "warning",
			TransactionTypes: []string{"835"},
			Category:         "business",
			Conditions: []Condition{
				{Field: "claims[*].total_paid", Operator: "lt", Value: 0},
			},
			Message: "claim payment {value} is negative",
		},
		{
			ID:               "835_BALANCE_CHECK",
			Description:      "BPR total plus provider-level adjustments equals the sum of claim payments",
			Severity:         "warning",
			TransactionTypes: []string{"835"},
			Category:         "business",
			CrossChecks: []CrossCheck{
				{
					Type:      "balance_check",
					LeftSum:   []string{"financial_information.total_paid", "plb_adjustments[*].amount"},
					RightSum:  []string{"claims[*].total_paid"},
					Tolerance: 0.01,
				},
			},
			Message: "BPR total does not reconcile with claim payments and PLB adjustments",
		},
		{
			ID:               "835_PAID_EXCEEDS_CHARGE",
			Description:      "a claim payment above its charge is suspect",
			Severity:         "warning",
			TransactionTypes: []string{"835"},
			Category:         "business",
			check:            checkPaidWithinCharge,
		},
		{
			ID:               "835_SERVICE_AGGREGATION",
			Description:      "service-line payments should aggregate to the claim payment",
			Severity:         "warning",
			TransactionTypes: []string{"835"},
			Category:         "business",
			check:            checkServiceAggregation,
		},
	}
}

// checkPaidWithinCharge compares paid against charge per claim.
func checkPaidWithinCharge(_ string, target map[string]any, path string, r *Rule, col *diag.Collector) {
	for _, m := range expand(target, "claims[*]") {
		claim, ok := m.value.(map[string]any)
		if !ok {
			continue
		}
		paid, pok := toNumber(claim["total_paid"])
		charge, cok := toNumber(claim["total_charge"])
		if !pok || !cok || paid <= charge {
			continue
		}
		col.Add(diag.Diagnostic{
			Code:      r.Code(),
			Severity:  r.DiagSeverity(),
			Path:      path,
			FieldPath: m.path + ".total_paid",
			Value:     utils.FormatAmount(paid),
			RuleID:    r.ID,
			Message: fmt.Sprintf("claim payment %s exceeds charge %s",
				utils.FormatAmount(paid), utils.FormatAmount(charge)),
		})
	}
}

// checkServiceAggregation compares the sum of service-line payments to
// the claim payment when service lines are present.
func checkServiceAggregation(_ string, target map[string]any, path string, r *Rule, col *diag.Collector) {
	for _, m := range expand(target, "claims[*]") {
		claim, ok := m.value.(map[string]any)
		if !ok {
			continue
		}
		services, ok := claim["services"].([]any)
		if !ok || len(services) == 0 {
			continue
		}
		var sum float64
		for _, s := range services {
			svc, ok := s.(map[string]any)
			if !ok {
				continue
			}
			if f, ok := toNumber(svc["paid"]); ok {
				sum += f
			}
		}
		paid, ok := toNumber(claim["total_paid"])
		if !ok || !utils.AmountsEqual(sum, paid, 0.01) {
			col.Add(diag.Diagnostic{
				Code:      r.Code(),
				Severity:  r.DiagSeverity(),
				Path:      path,
				FieldPath: m.path + ".services",
				Value:     utils.FormatAmount(sum),
				RuleID:    r.ID,
				Message: fmt.Sprintf("service-line payments sum to %s but the claim paid %s",
					utils.FormatAmount(sum), utils.FormatAmount(paid)),
			})
		}
	}
}

// hipaaRules covers identifier formats, date canonicalization, monetary
// precision, and run-level control-number discipline.
func hipaaRules() []*Rule {
	return []*Rule{
		{
			ID:               "835_PAYEE_NPI_FORMAT",
			Description:      "payee NPI must pass the 80840-prefixed Luhn check",
			Severity:         "error",
			TransactionTypes: []string{"835"},
			Category:         "hipaa",
			Validators: []Validator{
				{Field: "payee.npi", Type: "npi_format"},
			},
		},
		{
			ID:               "837_PROVIDER_NPI_FORMAT",
			Description:      "provider NPIs must pass the 80840-prefixed Luhn check",
			Severity:         "error",
			TransactionTypes: []string{"837"},
			Category:         "hipaa",
			Validators: []Validator{
				{Field: "billing_provider.npi", Type: "npi_format"},
				{Field: "rendering_provider.npi", Type: "npi_format"},
			},
		},
		{
			ID:               "835_DATE_FORMAT",
			Description:      "payment dates must canonicalize",
			Severity:         "warning",
			TransactionTypes: []string{"835"},
			Category:         "hipaa",
			Validators: []Validator{
				{Field: "financial_information.payment_date", Type: "date_format"},
				{Field: "claims[*].services[*].service_date", Type: "date_format"},
			},
		},
		{
			ID:               "835_CURRENCY_PRECISION",
			Description:      "monetary values carry at most two decimal places",
			Severity:         "warning",
			TransactionTypes: []string{"835"},
			Category:         "hipaa",
			Validators: []Validator{
				{Field: "financial_information.total_paid", Type: "currency_format"},
				{Field: "claims[*].total_charge", Type: "currency_format"},
				{Field: "claims[*].total_paid", Type: "currency_format"},
			},
		},
		{
			ID:          "CONTROL_NUMBER_UNIQUE",
			Description: "transaction control numbers must be unique within a run",
			Severity:    "warning",
			Category:    "hipaa",
			docCheck:    checkControlNumberUniqueness,
		},
		{
			ID:          "RECOGNIZED_TRANSACTION_SET",
			Description: "transaction-set codes should come from the recognized HIPAA set",
			Severity:    "warning",
			Category:    "hipaa",
			docCheck:    checkRecognizedTransactionSets,
		},
	}
}

func checkControlNumberUniqueness(doc *x12.Document, r *Rule, col *diag.Collector) {
	seen := map[string]string{}
	for i, ic := range doc.Interchanges {
		for j, g := range ic.FunctionalGroups {
			for k, ts := range g.Transactions {
				cn := ts.Header.ControlNumber
				if cn == "" {
					continue
				}
				path := fmt.Sprintf("interchanges[%d].functional_groups[%d].transactions[%d]", i, j, k)
				if prev, dup := seen[cn]; dup {
					col.Add(diag.Diagnostic{
						Code:      r.Code(),
						Severity:  r.DiagSeverity(),
						Path:      path,
						FieldPath: "header.control_number",
						Value:     cn,
						RuleID:    r.ID,
						Message:   fmt.Sprintf("control number %s already used by %s", cn, prev),
					})
					continue
				}
				seen[cn] = path
			}
		}
	}
}

func checkRecognizedTransactionSets(doc *x12.Document, r *Rule, col *diag.Collector) {
	for i, ic := range doc.Interchanges {
		for j, g := range ic.FunctionalGroups {
			for k, ts := range g.Transactions {
				known := false
				for _, code := range recognizedTransactionSets {
					if ts.Header.Code == code {
						known = true
						break
					}
				}
				if known {
					continue
				}
				col.Add(diag.Diagnostic{
					Code:      r.Code(),
					Severity:  r.DiagSeverity(),
					Path:      fmt.Sprintf("interchanges[%d].functional_groups[%d].transactions[%d]", i, j, k),
					FieldPath: "header.transaction_set_code",
					Value:     ts.Header.Code,
					RuleID:    r.ID,
					Message:   fmt.Sprintf("transaction set %q is not a recognized HIPAA code", ts.Header.Code),
				})
			}
		}
	}
}

// hipaaAdvancedRules adds entity-identifier requirements, tax-id
// format, and conditional required fields on top of the hipaa set.
func hipaaAdvancedRules() []*Rule {
	return append(hipaaRules(), []*Rule{
		{
			ID:               "835_PAYER_ID_REQUIRED",
			Description:      "a named payer needs an identifier",
			Severity:         "warning",
			TransactionTypes: []string{"835"},
			Category:         "hipaa",
			Validators: []Validator{
				{
					Field: "payer.id",
					Type:  "conditional_required",
					When:  &Condition{Field: "payer.name", Operator: "exists"},
				},
			},
		},
		{
			ID:               "835_PAYEE_TAX_ID_FORMAT",
			Description:      "payee tax id must be a nine-digit EIN",
			Severity:         "warning",
			TransactionTypes: []string{"835"},
			Category:         "hipaa",
			Validators: []Validator{
				{Field: "payee.tax_id", Type: "tax_id_format"},
			},
		},
		{
			ID:               "837_SUBSCRIBER_ID_REQUIRED",
			Description:      "a named subscriber needs a member identifier",
			Severity:         "warning",
			TransactionTypes: []string{"837"},
			Category:         "hipaa",
			Validators: []Validator{
				{
					Field: "subscriber.id",
					Type:  "conditional_required",
					When:  &Condition{Field: "subscriber.name", Operator: "exists"},
				},
			},
		},
	}...)
}

// enhancedBusinessRules layers field validators and cross-field checks
// on top of the business set.
func enhancedBusinessRules() []*Rule {
	return append(businessRules(), []*Rule{
		{
			ID:               "835_FILING_INDICATOR_ENUM",
			Description:      "claim filing indicator must come from the CLP06 code set",
			Severity:         "warning",
			TransactionTypes: []string{"835"},
			Category:         "business",
			Validators: []Validator{
				{
					Field: "claims[*].filing_indicator",
					Type:  "enum",
					Values: []string{
						"12", "13", "14", "15", "16", "AM", "BL", "CH", "CI", "DS",
						"FI", "HM", "LM", "MA", "MB", "MC", "OF", "TV", "VA", "WC", "ZZ",
					},
				},
			},
		},
		{
			ID:               "835_CLAIM_ID_FORMAT",
			Description:      "claim ids stay within the CLP01 character repertoire",
			Severity:         "warning",
			TransactionTypes: []string{"835"},
			Category:         "business",
			Validators: []Validator{
				{Field: "claims[*].claim_id", Type: "regex", Pattern: `^[A-Za-z0-9.\-]{1,38}$`},
			},
		},
		{
			ID:               "835_SERVICE_UNITS_RANGE",
			Description:      "service units stay within a sane range",
			Severity:         "warning",
			TransactionTypes: []string{"835"},
			Category:         "business",
			Validators: []Validator{
				{Field: "claims[*].services[*].units", Type: "range", Min: fptr(0), Max: fptr(9999)},
			},
		},
		{
			ID:               "835_TOTAL_PAID_SANE",
			Description:      "the BPR total stays within payer processing limits",
			Severity:         "warning",
			TransactionTypes: []string{"835"},
			Category:         "business",
			CrossChecks: []CrossCheck{
				{Type: "calculation_check", Expression: "financial_information.total_paid < 1000000000.0"},
			},
			Message: "BPR total exceeds the processing limit",
		},
	}...)
}

// BuiltinSet returns the rules of a named built-in set. comprehensive
// and all are the deduplicated union of every other set.
func BuiltinSet(name string) ([]*Rule, error) {
	switch strings.ToLower(name) {
	case "basic":
		return basicRules(), nil
	case "business":
		return businessRules(), nil
	case "hipaa":
		return hipaaRules(), nil
	case "hipaa-advanced":
		return hipaaAdvancedRules(), nil
	case "enhanced-business":
		return enhancedBusinessRules(), nil
	case "comprehensive", "all":
		return MergeSets(
			basicRules(),
			businessRules(),
			hipaaAdvancedRules(),
			enhancedBusinessRules(),
		), nil
	default:
		return nil, fmt.Errorf("unknown rule set %q", name)
	}
}

// SetNames lists the built-in rule sets in stable order.
func SetNames() []string {
	names := []string{"basic", "business", "hipaa", "hipaa-advanced", "enhanced-business", "comprehensive", "all"}
	sort.Strings(names)
	return names
}

// MergeSets concatenates rule lists, dropping later duplicates by id.
func MergeSets(sets ...[]*Rule) []*Rule {
	var out []*Rule
	seen := map[string]bool{}
	for _, set := range sets {
		for _, r := range set {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			out = append(out, r)
		}
	}
	return out
}
