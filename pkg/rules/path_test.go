package rules

import "testing"

func pathFixture() map[string]any {
	return map[string]any{
		"financial_information": map[string]any{
			"total_paid": 1000.00,
		},
		"claims": []any{
			map[string]any{
				"claim_id": "CLM001",
				"services": []any{
					map[string]any{"charge": 100.00},
					map[string]any{"charge": 25.00},
				},
			},
			map[string]any{
				"claim_id": "CLM002",
				"services": []any{
					map[string]any{"charge": 50.00},
				},
			},
		},
	}
}

func TestParseSteps(t *testing.T) {
	steps, err := parseSteps("claims[*].services[0].charge")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(steps) != 5 {
		t.Fatalf("expected 5 steps, got %d: %+v", len(steps), steps)
	}
	if steps[0].field != "claims" || !steps[1].wildcard {
		t.Errorf("unexpected leading steps: %+v", steps[:2])
	}
	if steps[2].field != "services" || !steps[3].isIndex || steps[3].index != 0 {
		t.Errorf("unexpected middle steps: %+v", steps[2:4])
	}
	if steps[4].field != "charge" {
		t.Errorf("unexpected leaf step: %+v", steps[4])
	}

	for _, bad := range []string{"claims[x].id", "claims[-1].id", "a..b", "claims[0.id"} {
		if _, err := parseSteps(bad); err == nil {
			t.Errorf("expected %q to fail parsing", bad)
		}
	}
}

func TestResolveConcrete(t *testing.T) {
	target := pathFixture()
	v, ok := resolve(target, "financial_information.total_paid")
	if !ok || v != 1000.00 {
		t.Errorf("expected 1000.00, got %v (present=%v)", v, ok)
	}
	v, ok = resolve(target, "claims[1].claim_id")
	if !ok || v != "CLM002" {
		t.Errorf("expected CLM002, got %v (present=%v)", v, ok)
	}
	if _, ok := resolve(target, "claims[5].claim_id"); ok {
		t.Error("an out-of-range index must resolve to absent")
	}
	if _, ok := resolve(target, "payer.name"); ok {
		t.Error("a missing branch must resolve to absent")
	}
}

func TestExpandWildcards(t *testing.T) {
	target := pathFixture()
	matches := expand(target, "claims[*].services[*].charge")
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d: %+v", len(matches), matches)
	}
	wantPaths := []string{
		"claims[0].services[0].charge",
		"claims[0].services[1].charge",
		"claims[1].services[0].charge",
	}
	wantValues := []float64{100.00, 25.00, 50.00}
	for i, m := range matches {
		if m.path != wantPaths[i] {
			t.Errorf("match %d: expected path %s, got %s", i, wantPaths[i], m.path)
		}
		if m.value != wantValues[i] {
			t.Errorf("match %d: expected value %v, got %v", i, wantValues[i], m.value)
		}
	}

	if got := expand(target, "claims[*].missing"); len(got) != 0 {
		t.Errorf("missing leaves do not match: %+v", got)
	}
	if got := expand(target, "financial_information[*]"); len(got) != 0 {
		t.Errorf("a wildcard over a map does not match: %+v", got)
	}
}

func TestSumPaths(t *testing.T) {
	target := pathFixture()
	got := sumPaths(target, []string{
		"financial_information.total_paid",
		"claims[*].services[*].charge",
	})
	if got != 1175.00 {
		t.Errorf("expected 1175.00, got %v", got)
	}
	if got := sumPaths(target, []string{"claims[*].claim_id"}); got != 0 {
		t.Errorf("non-numeric leaves contribute nothing, got %v", got)
	}
}
