// Package thresholds holds the static threshold tables the rule evaluators
// classify against. Pure data; the only logic is the Fannie Mae umbrella tier
// lookup.
package thresholds

import "github.com/coverpoint/backend/internal/models"

type UnderinsuranceThresholds struct {
	// Coverage/building-value ratio bands. Below CriticalRatio is critical,
	// below WarningRatio is warning, at or above WarningRatio no gap.
	CriticalRatio float64
	WarningRatio  float64
}

type DeductibleThresholds struct {
	// Deductible as a fraction of TIV. At or above CriticalPct is critical,
	// at or above WarningPct is warning. Flat-amount bands use strict
	// greater-than. Flat and percentage rules are evaluated independently.
	CriticalPct  float64
	WarningPct   float64
	CriticalFlat float64
	WarningFlat  float64
}

type ExpirationThresholds struct {
	// Days remaining until expiration, inclusive upper bounds per band.
	// Negative days (already expired) is a distinct critical case.
	CriticalDays int
	WarningDays  int
	InfoDays     int
}

type RequiredCoverageRules struct {
	AlwaysRequired []string
	// Umbrella is recommended, not required, above this TIV.
	UmbrellaTIVThreshold float64
}

type ValuationThresholds struct {
	WarningYears  int
	CriticalYears int
}

type Thresholds struct {
	Underinsurance    UnderinsuranceThresholds
	Deductible        DeductibleThresholds
	Expiration        ExpirationThresholds
	RequiredCoverages RequiredCoverageRules
	Valuation         ValuationThresholds
}

// Default returns the current industry threshold tables. Versioned by code:
// changing a band is a reviewed change, not runtime configuration.
func Default() Thresholds {
	return Thresholds{
		Underinsurance: UnderinsuranceThresholds{
			CriticalRatio: 0.80,
			WarningRatio:  0.90,
		},
		Deductible: DeductibleThresholds{
			CriticalPct:  0.05,
			WarningPct:   0.03,
			CriticalFlat: 500_000,
			WarningFlat:  250_000,
		},
		Expiration: ExpirationThresholds{
			CriticalDays: 30,
			WarningDays:  60,
			InfoDays:     90,
		},
		RequiredCoverages: RequiredCoverageRules{
			AlwaysRequired: []string{
				models.PolicyTypeProperty,
				models.PolicyTypeGeneralLiability,
			},
			UmbrellaTIVThreshold: 5_000_000,
		},
		Valuation: ValuationThresholds{
			WarningYears:  2,
			CriticalYears: 3,
		},
	}
}

// HighRiskFloodZones is the FEMA special flood hazard area set that makes
// flood coverage required.
var HighRiskFloodZones = map[string]bool{
	"A":   true,
	"AE":  true,
	"AH":  true,
	"AO":  true,
	"AR":  true,
	"A99": true,
	"V":   true,
	"VE":  true,
}

// Lender compliance template names.
const (
	TemplateStandard             = "standard"
	TemplateFannieMaeMultifamily = "fannie_mae_multifamily"
	TemplateConservative         = "conservative"
)

func ptr(v float64) *float64 { return &v }

// LenderTemplate returns the named compliance preset. The Fannie Mae umbrella
// minimum depends on unit count, so callers resolve it through
// FannieMaeUmbrellaMinimum before comparing.
func LenderTemplate(name string) (models.LenderRequirement, bool) {
	switch name {
	case TemplateStandard:
		return models.LenderRequirement{
			Name:              TemplateStandard,
			MinPropertyLimit:  1_000_000,
			MinGLLimit:        1_000_000,
			MinUmbrellaLimit:  5_000_000,
			MaxDeductiblePct:  ptr(0.05),
			RequiresFlood:     false,
		}, true
	case TemplateFannieMaeMultifamily:
		return models.LenderRequirement{
			Name:                   TemplateFannieMaeMultifamily,
			MinPropertyLimit:       1_000_000,
			MinGLLimit:             1_000_000,
			MinUmbrellaLimit:       0, // tiered by unit count
			MaxDeductiblePct:       ptr(0.01),
			MaxDeductibleFlat:      ptr(250_000),
			RequiresFlood:          true,
			RequiresBusinessIncome: true,
		}, true
	case TemplateConservative:
		return models.LenderRequirement{
			Name:                   TemplateConservative,
			MinPropertyLimit:       2_000_000,
			MinGLLimit:             2_000_000,
			MinUmbrellaLimit:       10_000_000,
			MaxDeductiblePct:       ptr(0.01),
			MaxDeductibleFlat:      ptr(100_000),
			RequiresFlood:          true,
			RequiresEarthquake:     true,
			RequiresTerrorism:      true,
			RequiresBusinessIncome: true,
		}, true
	}
	return models.LenderRequirement{}, false
}

// FannieMaeUmbrellaMinimum returns the required umbrella limit for a
// multifamily property by unit count.
func FannieMaeUmbrellaMinimum(units int) float64 {
	switch {
	case units <= 0:
		return 0
	case units <= 10:
		return 1_000_000
	case units <= 50:
		return 3_000_000
	case units <= 100:
		return 5_000_000
	default:
		return 10_000_000
	}
}

// ResolveUmbrellaMinimum applies the unit-count tier for the Fannie Mae
// template and returns the template value for everything else.
func ResolveUmbrellaMinimum(req models.LenderRequirement, units int) float64 {
	if req.Name == TemplateFannieMaeMultifamily {
		return FannieMaeUmbrellaMinimum(units)
	}
	return req.MinUmbrellaLimit
}
