package thresholds

import (
	"testing"

	"github.com/coverpoint/backend/internal/models"
)

func TestDefaultBandsAreOrdered(t *testing.T) {
	th := Default()
	if th.Underinsurance.CriticalRatio >= th.Underinsurance.WarningRatio {
		t.Fatalf("critical ratio must sit below warning ratio")
	}
	if th.Deductible.WarningPct >= th.Deductible.CriticalPct {
		t.Fatalf("warning pct must sit below critical pct")
	}
	if th.Deductible.WarningFlat >= th.Deductible.CriticalFlat {
		t.Fatalf("warning flat must sit below critical flat")
	}
	if !(th.Expiration.CriticalDays < th.Expiration.WarningDays && th.Expiration.WarningDays < th.Expiration.InfoDays) {
		t.Fatalf("expiration bands must be strictly increasing")
	}
	if th.Valuation.WarningYears >= th.Valuation.CriticalYears {
		t.Fatalf("valuation warning years must sit below critical years")
	}
}

func TestLenderTemplates(t *testing.T) {
	for _, name := range []string{TemplateStandard, TemplateFannieMaeMultifamily, TemplateConservative} {
		req, ok := LenderTemplate(name)
		if !ok {
			t.Fatalf("template %s missing", name)
		}
		if req.Name != name {
			t.Fatalf("template %s has name %s", name, req.Name)
		}
	}
	if _, ok := LenderTemplate("nonexistent"); ok {
		t.Fatalf("unknown template name should not resolve")
	}
}

func TestFannieMaeUmbrellaTiers(t *testing.T) {
	cases := []struct {
		units int
		want  float64
	}{
		{0, 0},
		{1, 1_000_000},
		{10, 1_000_000},
		{11, 3_000_000},
		{50, 3_000_000},
		{51, 5_000_000},
		{100, 5_000_000},
		{101, 10_000_000},
		{500, 10_000_000},
	}
	for _, c := range cases {
		if got := FannieMaeUmbrellaMinimum(c.units); got != c.want {
			t.Fatalf("units %d: expected %.0f, got %.0f", c.units, c.want, got)
		}
	}
}

func TestResolveUmbrellaMinimum(t *testing.T) {
	fannie, _ := LenderTemplate(TemplateFannieMaeMultifamily)
	if got := ResolveUmbrellaMinimum(fannie, 75); got != 5_000_000 {
		t.Fatalf("fannie template should resolve by unit count, got %.0f", got)
	}

	standard, _ := LenderTemplate(TemplateStandard)
	if got := ResolveUmbrellaMinimum(standard, 75); got != standard.MinUmbrellaLimit {
		t.Fatalf("non-fannie templates keep their fixed minimum, got %.0f", got)
	}
}

func TestHighRiskFloodZones(t *testing.T) {
	for _, zone := range []string{"A", "AE", "AH", "AO", "AR", "A99", "V", "VE"} {
		if !HighRiskFloodZones[zone] {
			t.Fatalf("zone %s should be high risk", zone)
		}
	}
	for _, zone := range []string{"X", "B", "C", ""} {
		if HighRiskFloodZones[zone] {
			t.Fatalf("zone %q should not be high risk", zone)
		}
	}
}

func TestRequiredCoveragesDefault(t *testing.T) {
	th := Default()
	want := map[string]bool{models.PolicyTypeProperty: true, models.PolicyTypeGeneralLiability: true}
	if len(th.RequiredCoverages.AlwaysRequired) != len(want) {
		t.Fatalf("expected %d required coverages, got %d", len(want), len(th.RequiredCoverages.AlwaysRequired))
	}
	for _, r := range th.RequiredCoverages.AlwaysRequired {
		if !want[r] {
			t.Fatalf("unexpected required coverage %s", r)
		}
	}
}
