package rules

import (
	"testing"
	"time"

	"github.com/coverpoint/backend/internal/models"
	"github.com/coverpoint/backend/internal/thresholds"
)

func f64(v float64) *float64 { return &v }

func ts(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func activePolicy(id, number, policyType string) models.Policy {
	return models.Policy{
		ID:           id,
		ProgramID:    "prog-1",
		PolicyNumber: number,
		PolicyType:   policyType,
		Status:       models.PolicyStatusActive,
	}
}

func TestClassifyCoverageRatioBoundaries(t *testing.T) {
	th := thresholds.Default().Underinsurance

	cases := []struct {
		ratio    float64
		severity models.Severity
		gap      bool
	}{
		{0.79, models.SeverityCritical, true},
		{0.80, models.SeverityWarning, true},
		{0.89, models.SeverityWarning, true},
		{0.90, "", false},
		{1.10, "", false},
	}
	for _, c := range cases {
		severity, ok := ClassifyCoverageRatio(c.ratio, th)
		if ok != c.gap || severity != c.severity {
			t.Fatalf("ratio %.2f: expected (%s, %v), got (%s, %v)", c.ratio, c.severity, c.gap, severity, ok)
		}
	}
}

func TestEvaluateUnderinsuranceSkipsInactiveAndNonProperty(t *testing.T) {
	th := thresholds.Default()
	cancelled := activePolicy("p2", "POL-2", models.PolicyTypeProperty)
	cancelled.Status = "cancelled"
	cancelled.Limit = f64(100_000)

	gl := activePolicy("p3", "POL-3", models.PolicyTypeGeneralLiability)
	gl.Limit = f64(100_000)

	property := activePolicy("p1", "POL-1", models.PolicyTypeProperty)
	property.Limit = f64(700_000)

	snap := models.InsuranceSnapshot{
		Buildings: []models.Building{{ID: "b1", Value: f64(1_000_000)}},
		Policies:  []models.Policy{property, cancelled, gl},
	}

	out := EvaluateUnderinsurance(snap, th)
	if len(out) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(out))
	}
	if out[0].Severity != models.SeverityCritical {
		t.Fatalf("expected critical at 0.70 ratio, got %s", out[0].Severity)
	}
	if out[0].GapAmount == nil || *out[0].GapAmount != 300_000 {
		t.Fatalf("expected gap amount 300000, got %+v", out[0].GapAmount)
	}
}

func TestEvaluateUnderinsuranceNoBuildingValue(t *testing.T) {
	p := activePolicy("p1", "POL-1", models.PolicyTypeProperty)
	p.Limit = f64(500_000)
	snap := models.InsuranceSnapshot{
		Buildings: []models.Building{{ID: "b1"}},
		Policies:  []models.Policy{p},
	}
	if out := EvaluateUnderinsurance(snap, thresholds.Default()); out != nil {
		t.Fatalf("expected no candidates without known building value, got %d", len(out))
	}
}

func TestClassifyDeductibleBoundaries(t *testing.T) {
	th := thresholds.Default().Deductible

	if s, ok := ClassifyDeductiblePct(0.05, th); !ok || s != models.SeverityCritical {
		t.Fatalf("5%% of TIV should be critical, got (%s, %v)", s, ok)
	}
	if s, ok := ClassifyDeductiblePct(0.03, th); !ok || s != models.SeverityWarning {
		t.Fatalf("3%% of TIV should be warning, got (%s, %v)", s, ok)
	}
	if _, ok := ClassifyDeductiblePct(0.0299, th); ok {
		t.Fatalf("below 3%% should not gap")
	}

	if _, ok := ClassifyDeductibleFlat(500_000, th); !ok {
		t.Fatalf("500k flat should gap")
	} else if s, _ := ClassifyDeductibleFlat(500_000, th); s != models.SeverityWarning {
		t.Fatalf("exactly 500k is warning, not critical, got %s", s)
	}
	if s, ok := ClassifyDeductibleFlat(500_001, th); !ok || s != models.SeverityCritical {
		t.Fatalf("above 500k should be critical, got (%s, %v)", s, ok)
	}
	if _, ok := ClassifyDeductibleFlat(250_000, th); ok {
		t.Fatalf("exactly 250k should not gap")
	}
}

func TestEvaluateDeductiblesHigherSeverityWins(t *testing.T) {
	th := thresholds.Default()

	// 300k flat is a warning; 300k on a 5M TIV is 6%, critical.
	p := activePolicy("p1", "POL-1", models.PolicyTypeProperty)
	p.Deductible = f64(300_000)
	snap := models.InsuranceSnapshot{
		Property: models.Property{TIV: 5_000_000},
		Policies: []models.Policy{p},
	}

	out := EvaluateDeductibles(snap, th)
	if len(out) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(out))
	}
	if out[0].Severity != models.SeverityCritical {
		t.Fatalf("percentage rule should win at critical, got %s", out[0].Severity)
	}
}

func TestEvaluateDeductiblesFlatOnlyWhenTIVUnknown(t *testing.T) {
	p := activePolicy("p1", "POL-1", models.PolicyTypeProperty)
	p.Deductible = f64(600_000)
	snap := models.InsuranceSnapshot{Policies: []models.Policy{p}}

	out := EvaluateDeductibles(snap, thresholds.Default())
	if len(out) != 1 || out[0].Severity != models.SeverityCritical {
		t.Fatalf("expected flat critical without TIV, got %+v", out)
	}
}

func TestClassifyExpirationBands(t *testing.T) {
	th := thresholds.Default().Expiration

	cases := []struct {
		days     int
		severity models.Severity
		gap      bool
	}{
		{-1, models.SeverityCritical, true},
		{0, models.SeverityCritical, true},
		{30, models.SeverityCritical, true},
		{31, models.SeverityWarning, true},
		{60, models.SeverityWarning, true},
		{61, models.SeverityInfo, true},
		{90, models.SeverityInfo, true},
		{91, "", false},
	}
	for _, c := range cases {
		severity, ok := ClassifyExpirationDays(c.days, th)
		if ok != c.gap || severity != c.severity {
			t.Fatalf("days %d: expected (%s, %v), got (%s, %v)", c.days, c.severity, c.gap, severity, ok)
		}
	}
}

func TestEvaluateExpirationExpiredPolicy(t *testing.T) {
	asOf := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	p := activePolicy("p1", "POL-1", models.PolicyTypeProperty)
	p.ExpirationDate = ts(2026, 5, 15)
	snap := models.InsuranceSnapshot{Policies: []models.Policy{p}}

	out := EvaluateExpiration(snap, thresholds.Default(), asOf)
	if len(out) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(out))
	}
	if out[0].Severity != models.SeverityCritical {
		t.Fatalf("expired policy must be critical, got %s", out[0].Severity)
	}
	if out[0].CurrentValue == nil || *out[0].CurrentValue != "expired" {
		t.Fatalf("expected current value expired, got %+v", out[0].CurrentValue)
	}
}

func TestEvaluateExpirationRelativeToAsOf(t *testing.T) {
	asOf := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := activePolicy("p1", "POL-1", models.PolicyTypeProperty)
	p.ExpirationDate = ts(2026, 2, 15) // 45 days out

	out := EvaluateExpiration(models.InsuranceSnapshot{Policies: []models.Policy{p}}, thresholds.Default(), asOf)
	if len(out) != 1 || out[0].Severity != models.SeverityWarning {
		t.Fatalf("expected warning 45 days out, got %+v", out)
	}
}

func TestEvaluateMissingCoverageWithNoPolicies(t *testing.T) {
	snap := models.InsuranceSnapshot{Property: models.Property{TIV: 1_000_000}}
	out := EvaluateMissingCoverage(snap, thresholds.Default())
	if len(out) != 2 {
		t.Fatalf("expected both required coverages missing, got %d", len(out))
	}
	for _, c := range out {
		if c.Severity != models.SeverityCritical {
			t.Fatalf("missing required coverage must be critical, got %s", c.Severity)
		}
	}
}

func TestEvaluateMissingCoverageUmbrellaRecommendation(t *testing.T) {
	th := thresholds.Default()
	snap := models.InsuranceSnapshot{
		Property: models.Property{TIV: 6_000_000},
		Policies: []models.Policy{
			activePolicy("p1", "POL-1", models.PolicyTypeProperty),
			activePolicy("p2", "POL-2", models.PolicyTypeGeneralLiability),
		},
	}

	out := EvaluateMissingCoverage(snap, th)
	if len(out) != 1 {
		t.Fatalf("expected only the umbrella recommendation, got %d", len(out))
	}
	if out[0].Severity != models.SeverityWarning {
		t.Fatalf("umbrella recommendation is a warning, got %s", out[0].Severity)
	}

	// Excess coverage satisfies the umbrella recommendation.
	snap.Policies = append(snap.Policies, activePolicy("p3", "POL-3", models.PolicyTypeExcess))
	if out := EvaluateMissingCoverage(snap, th); len(out) != 0 {
		t.Fatalf("excess policy should satisfy the umbrella recommendation, got %d", len(out))
	}
}

func TestEvaluateMissingFlood(t *testing.T) {
	th := thresholds.Default()
	snap := models.InsuranceSnapshot{
		Property: models.Property{FloodZone: "AE"},
		Policies: []models.Policy{activePolicy("p1", "POL-1", models.PolicyTypeProperty)},
	}

	out := EvaluateMissingFlood(snap, th)
	if len(out) != 1 || out[0].Severity != models.SeverityCritical {
		t.Fatalf("zone AE without flood policy must be critical, got %+v", out)
	}

	snap.Property.FloodZone = "X"
	if out := EvaluateMissingFlood(snap, th); out != nil {
		t.Fatalf("zone X should not require flood coverage")
	}

	snap.Property.FloodZone = "VE"
	snap.Policies = append(snap.Policies, activePolicy("p2", "POL-2", models.PolicyTypeFlood))
	if out := EvaluateMissingFlood(snap, th); out != nil {
		t.Fatalf("active flood policy should satisfy zone VE")
	}
}

func TestEvaluateValuationMissingVsStale(t *testing.T) {
	th := thresholds.Default()
	asOf := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	missing := models.InsuranceSnapshot{Buildings: []models.Building{{ID: "b1"}}}
	out := EvaluateValuation(missing, th, asOf)
	if len(out) != 1 || out[0].Severity != models.SeverityCritical {
		t.Fatalf("missing valuation must be critical, got %+v", out)
	}
	if out[0].CurrentValue == nil || *out[0].CurrentValue != "missing" {
		t.Fatalf("missing valuation should be labeled missing, got %+v", out[0].CurrentValue)
	}

	stale := models.InsuranceSnapshot{Buildings: []models.Building{
		{ID: "b1", ValuationDate: ts(2023, 1, 1)},
		{ID: "b2", ValuationDate: ts(2024, 1, 1)},
	}}
	out = EvaluateValuation(stale, th, asOf)
	if len(out) != 1 || out[0].Severity != models.SeverityWarning {
		t.Fatalf("latest valuation 2024-01-01 is between 2 and 3 years old, expected warning, got %+v", out)
	}

	old := models.InsuranceSnapshot{Buildings: []models.Building{{ID: "b1", ValuationDate: ts(2022, 1, 1)}}}
	out = EvaluateValuation(old, th, asOf)
	if len(out) != 1 || out[0].Severity != models.SeverityCritical {
		t.Fatalf("valuation over 3 years old must be critical, got %+v", out)
	}

	fresh := models.InsuranceSnapshot{Buildings: []models.Building{{ID: "b1", ValuationDate: ts(2025, 6, 1)}}}
	if out := EvaluateValuation(fresh, th, asOf); len(out) != 0 {
		t.Fatalf("fresh valuation should not gap, got %+v", out)
	}
}

func TestEvaluateAllCompositeScenario(t *testing.T) {
	th := thresholds.Default()
	asOf := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	property := activePolicy("p1", "POL-1", models.PolicyTypeProperty)
	property.Limit = f64(800_000)

	snap := models.InsuranceSnapshot{
		Property:  models.Property{ID: "prop-1", TIV: 6_000_000, FloodZone: "AE"},
		Buildings: []models.Building{{ID: "b1", Value: f64(1_000_000), ValuationDate: ts(2025, 12, 1)}},
		Policies:  []models.Policy{property},
	}

	out := EvaluateAll(snap, th, asOf)
	if len(out) != 4 {
		t.Fatalf("expected exactly 4 gaps, got %d: %+v", len(out), out)
	}

	counts := map[models.GapType]int{}
	bySeverity := map[models.Severity]int{}
	for _, c := range out {
		counts[c.GapType]++
		bySeverity[c.Severity]++
	}
	if counts[models.GapUnderinsurance] != 1 {
		t.Fatalf("expected one underinsurance gap at 0.80 ratio, got %d", counts[models.GapUnderinsurance])
	}
	if counts[models.GapMissingCoverage] != 2 {
		t.Fatalf("expected missing GL plus umbrella recommendation, got %d", counts[models.GapMissingCoverage])
	}
	if counts[models.GapMissingFlood] != 1 {
		t.Fatalf("expected one missing flood gap, got %d", counts[models.GapMissingFlood])
	}
	if bySeverity[models.SeverityCritical] != 2 || bySeverity[models.SeverityWarning] != 2 {
		t.Fatalf("expected 2 critical and 2 warning, got %+v", bySeverity)
	}
}

func TestSortGapsOrdering(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	gaps := []models.Gap{
		{ID: "b", Severity: models.SeverityWarning, DetectedAt: t2},
		{ID: "a", Severity: models.SeverityCritical, DetectedAt: t1},
		{ID: "c", Severity: models.SeverityCritical, DetectedAt: t2},
		{ID: "d", Severity: models.SeverityInfo, DetectedAt: t2},
		{ID: "e", Severity: models.SeverityCritical, DetectedAt: t2},
	}

	SortGaps(gaps)

	wantOrder := []string{"c", "e", "a", "b", "d"}
	for i, want := range wantOrder {
		if gaps[i].ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, gaps[i].ID)
		}
	}
}
