package severity

import "testing"

func mustParse(t *testing.T, text string) *Condition {
	t.Helper()
	cond, err := ParseCondition(text)
	if err != nil {
		t.Fatalf("parse %q failed: %v", text, err)
	}
	return cond
}

func TestNumericComparisons(t *testing.T) {
	cases := []struct {
		condition string
		metrics   map[string]float64
		want      bool
	}{
		{"cpu_usage > 90", map[string]float64{"cpu_usage": 95}, true},
		{"cpu_usage > 90", map[string]float64{"cpu_usage": 90}, false},
		{"cpu_usage >= 90", map[string]float64{"cpu_usage": 90}, true},
		{"temperature < 10", map[string]float64{"temperature": 5}, true},
		{"temperature <= 10", map[string]float64{"temperature": 10}, true},
		{"bgp_flap_count == 3", map[string]float64{"bgp_flap_count": 3}, true},
		// A missing metric reads as 0.
		{"queue_depth < 5", map[string]float64{}, true},
		{"cpu_usage > 90", map[string]float64{}, false},
	}
	for _, tc := range cases {
		if got := mustParse(t, tc.condition).Matches(tc.metrics); got != tc.want {
			t.Fatalf("%q over %v: expected %v, got %v", tc.condition, tc.metrics, tc.want, got)
		}
	}
}

func TestBooleanTermsRequirePresence(t *testing.T) {
	cond := mustParse(t, "device_reachable == false")
	if cond.Matches(map[string]float64{}) {
		t.Fatalf("absent metric must not match == false")
	}
	if cond.Matches(map[string]float64{"device_reachable": 1}) {
		t.Fatalf("truthy metric must not match == false")
	}
	if !cond.Matches(map[string]float64{"device_reachable": 0}) {
		t.Fatalf("zero metric must match == false")
	}

	cond = mustParse(t, "maintenance == true")
	if cond.Matches(map[string]float64{}) {
		t.Fatalf("absent metric must not match == true")
	}
	if !cond.Matches(map[string]float64{"maintenance": 1}) {
		t.Fatalf("nonzero metric must match == true")
	}
}

func TestOrJoin(t *testing.T) {
	cond := mustParse(t, "power_ok == false or fan_ok == false")
	if !cond.Matches(map[string]float64{"power_ok": 0, "fan_ok": 1}) {
		t.Fatalf("first failing term must match")
	}
	if !cond.Matches(map[string]float64{"power_ok": 1, "fan_ok": 0}) {
		t.Fatalf("second failing term must match")
	}
	if cond.Matches(map[string]float64{"power_ok": 1, "fan_ok": 1}) {
		t.Fatalf("healthy hardware must not match")
	}
	if cond.Matches(map[string]float64{}) {
		t.Fatalf("absent booleans must not match")
	}
}

func TestAndJoin(t *testing.T) {
	cond := mustParse(t, "cpu_usage > 80 and memory_usage > 80")
	if !cond.Matches(map[string]float64{"cpu_usage": 90, "memory_usage": 90}) {
		t.Fatalf("both terms true must match")
	}
	if cond.Matches(map[string]float64{"cpu_usage": 90, "memory_usage": 50}) {
		t.Fatalf("one false term must not match")
	}
}

func TestParseRejectsMalformedConditions(t *testing.T) {
	for _, text := range []string{
		"",
		"   ",
		"cpu_usage",
		"cpu_usage > banana",
		"> 90",
		"two words > 5",
		"a > 1 or b > 2 and c > 3",
	} {
		if _, err := ParseCondition(text); err == nil {
			t.Fatalf("expected parse error for %q", text)
		}
	}
}

func TestNilConditionNeverMatches(t *testing.T) {
	var cond *Condition
	if cond.Matches(map[string]float64{"cpu_usage": 100}) {
		t.Fatalf("nil condition must never match")
	}
	if cond.String() != "" {
		t.Fatalf("nil condition must render empty")
	}
}
