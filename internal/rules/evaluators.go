package rules

import (
	"fmt"
	"time"

	"github.com/coverpoint/backend/internal/models"
	"github.com/coverpoint/backend/internal/thresholds"
)

// EvaluateAll runs every evaluator against the snapshot and flattens the
// results. Evaluator order does not affect the output set; the compliance
// evaluator only runs when a lender requirement is attached.
func EvaluateAll(snap models.InsuranceSnapshot, th thresholds.Thresholds, asOf time.Time) []Candidate {
	var out []Candidate
	out = append(out, EvaluateUnderinsurance(snap, th)...)
	out = append(out, EvaluateDeductibles(snap, th)...)
	out = append(out, EvaluateExpiration(snap, th, asOf)...)
	out = append(out, EvaluateMissingCoverage(snap, th)...)
	out = append(out, EvaluateMissingFlood(snap, th)...)
	out = append(out, EvaluateValuation(snap, th, asOf)...)
	if snap.LenderRequirement != nil {
		out = append(out, EvaluateCompliance(snap, *snap.LenderRequirement, th)...)
	}
	return out
}

// ClassifyCoverageRatio maps a limit/building-value ratio onto a severity.
// The second return is false when the ratio is adequate. Exactly at the
// critical boundary is a warning, exactly at the warning boundary is no gap.
func ClassifyCoverageRatio(ratio float64, th thresholds.UnderinsuranceThresholds) (models.Severity, bool) {
	switch {
	case ratio < th.CriticalRatio:
		return models.SeverityCritical, true
	case ratio < th.WarningRatio:
		return models.SeverityWarning, true
	default:
		return "", false
	}
}

// EvaluateUnderinsurance compares each active property policy's limit against
// the total known building value. At most one candidate per policy.
func EvaluateUnderinsurance(snap models.InsuranceSnapshot, th thresholds.Thresholds) []Candidate {
	var buildingValue float64
	for _, b := range snap.Buildings {
		if b.Value != nil {
			buildingValue += *b.Value
		}
	}
	if buildingValue <= 0 {
		return nil
	}

	var out []Candidate
	for _, p := range snap.ActivePolicies() {
		if p.PolicyType != models.PolicyTypeProperty || p.Limit == nil {
			continue
		}
		ratio := *p.Limit / buildingValue
		severity, ok := ClassifyCoverageRatio(ratio, th.Underinsurance)
		if !ok {
			continue
		}
		pid := p.ID
		out = append(out, Candidate{
			GapType:  models.GapUnderinsurance,
			Severity: severity,
			Title:    "Property coverage below building value",
			Description: fmt.Sprintf("Policy %s covers %s of %s building value (%s)",
				p.PolicyNumber, fmtMoney(*p.Limit), fmtMoney(buildingValue), fmtPct(ratio)),
			PolicyID:         &pid,
			ProgramID:        programRef(p),
			CoverageName:     strPtr(p.PolicyNumber),
			CurrentValue:     strPtr(fmtMoney(*p.Limit)),
			RecommendedValue: strPtr(fmtMoney(buildingValue)),
			GapAmount:        f64Ptr(buildingValue - *p.Limit),
		})
	}
	return out
}

// ClassifyDeductiblePct classifies a deductible expressed as a fraction of
// TIV. Exactly at the critical percentage is critical.
func ClassifyDeductiblePct(ratio float64, th thresholds.DeductibleThresholds) (models.Severity, bool) {
	switch {
	case ratio >= th.CriticalPct:
		return models.SeverityCritical, true
	case ratio >= th.WarningPct:
		return models.SeverityWarning, true
	default:
		return "", false
	}
}

// ClassifyDeductibleFlat classifies a flat deductible amount.
func ClassifyDeductibleFlat(amount float64, th thresholds.DeductibleThresholds) (models.Severity, bool) {
	switch {
	case amount > th.CriticalFlat:
		return models.SeverityCritical, true
	case amount > th.WarningFlat:
		return models.SeverityWarning, true
	default:
		return "", false
	}
}

// EvaluateDeductibles applies the flat and percentage-of-TIV deductible rules
// independently and emits the higher-severity result when both trigger.
func EvaluateDeductibles(snap models.InsuranceSnapshot, th thresholds.Thresholds) []Candidate {
	tiv := snap.Property.TIV
	var out []Candidate
	for _, p := range snap.ActivePolicies() {
		if p.Deductible == nil || *p.Deductible <= 0 {
			continue
		}
		deductible := *p.Deductible

		var severity models.Severity
		var reason string
		if s, ok := ClassifyDeductibleFlat(deductible, th.Deductible); ok {
			severity = s
			reason = fmt.Sprintf("deductible %s exceeds the %s flat threshold",
				fmtMoney(deductible), fmtMoney(flatThreshold(s, th.Deductible)))
		}
		if tiv > 0 {
			ratio := deductible / tiv
			if s, ok := ClassifyDeductiblePct(ratio, th.Deductible); ok && s.Rank() > severity.Rank() {
				severity = s
				reason = fmt.Sprintf("deductible %s is %s of TIV %s",
					fmtMoney(deductible), fmtPct(ratio), fmtMoney(tiv))
			}
		}
		if severity == "" {
			continue
		}

		pid := p.ID
		out = append(out, Candidate{
			GapType:          models.GapHighDeductible,
			Severity:         severity,
			Title:            "High deductible on policy " + p.PolicyNumber,
			Description:      "Policy " + p.PolicyNumber + ": " + reason,
			PolicyID:         &pid,
			ProgramID:        programRef(p),
			CoverageName:     strPtr(p.PolicyNumber),
			CurrentValue:     strPtr(fmtMoney(deductible)),
			RecommendedValue: strPtr(fmtMoney(th.Deductible.WarningFlat)),
		})
	}
	return out
}

// ClassifyExpirationDays maps days-until-expiration onto a severity band.
// Negative days are the distinct "expired" case handled by the evaluator.
func ClassifyExpirationDays(days int, th thresholds.ExpirationThresholds) (models.Severity, bool) {
	switch {
	case days < 0:
		return models.SeverityCritical, true
	case days <= th.CriticalDays:
		return models.SeverityCritical, true
	case days <= th.WarningDays:
		return models.SeverityWarning, true
	case days <= th.InfoDays:
		return models.SeverityInfo, true
	default:
		return "", false
	}
}

// DaysUntil counts whole days between asOf and the expiration date, negative
// once the date has passed.
func DaysUntil(asOf, expiration time.Time) int {
	return int(expiration.Sub(asOf).Hours() / 24)
}

// EvaluateExpiration classifies each active policy by days remaining relative
// to the explicit asOf date. Expired policies always come back critical with a
// current value distinguishing them from soon-to-expire ones.
func EvaluateExpiration(snap models.InsuranceSnapshot, th thresholds.Thresholds, asOf time.Time) []Candidate {
	var out []Candidate
	for _, p := range snap.ActivePolicies() {
		if p.ExpirationDate == nil {
			continue
		}
		days := DaysUntil(asOf, *p.ExpirationDate)
		severity, ok := ClassifyExpirationDays(days, th.Expiration)
		if !ok {
			continue
		}

		current := fmt.Sprintf("%d days remaining", days)
		title := "Policy " + p.PolicyNumber + " expires soon"
		if days < 0 {
			current = "expired"
			title = "Policy " + p.PolicyNumber + " has expired"
		}

		pid := p.ID
		out = append(out, Candidate{
			GapType:  models.GapExpiration,
			Severity: severity,
			Title:    title,
			Description: fmt.Sprintf("Policy %s expiration date %s relative to %s",
				p.PolicyNumber, p.ExpirationDate.Format("2006-01-02"), asOf.Format("2006-01-02")),
			PolicyID:         &pid,
			ProgramID:        programRef(p),
			CoverageName:     strPtr(p.PolicyNumber),
			CurrentValue:     strPtr(current),
			RecommendedValue: strPtr("renew before expiration"),
		})
	}
	return out
}

// EvaluateMissingCoverage takes the set difference between required coverage
// types and the policy types present among active policies. Missing required
// types are critical; a missing recommended umbrella above the TIV threshold
// is a warning.
func EvaluateMissingCoverage(snap models.InsuranceSnapshot, th thresholds.Thresholds) []Candidate {
	present := presentPolicyTypes(snap)

	var out []Candidate
	for _, required := range th.RequiredCoverages.AlwaysRequired {
		if present[required] {
			continue
		}
		name := required
		out = append(out, Candidate{
			GapType:          models.GapMissingCoverage,
			Severity:         models.SeverityCritical,
			Title:            "Missing required " + required + " coverage",
			Description:      "No active " + required + " policy found on the property",
			CoverageName:     &name,
			RecommendedValue: strPtr("bind " + required + " coverage"),
		})
	}

	if snap.Property.TIV > th.RequiredCoverages.UmbrellaTIVThreshold &&
		!present[models.PolicyTypeUmbrella] && !present[models.PolicyTypeExcess] {
		name := models.PolicyTypeUmbrella
		out = append(out, Candidate{
			GapType:  models.GapMissingCoverage,
			Severity: models.SeverityWarning,
			Title:    "Umbrella coverage recommended",
			Description: fmt.Sprintf("TIV %s exceeds %s without umbrella or excess coverage",
				fmtMoney(snap.Property.TIV), fmtMoney(th.RequiredCoverages.UmbrellaTIVThreshold)),
			CoverageName:     &name,
			RecommendedValue: strPtr("consider umbrella coverage above primary limits"),
		})
	}
	return out
}

// EvaluateMissingFlood flags high-risk flood zone properties without an
// active flood policy. Kept separate from missing-coverage because the
// recommendation is zone-specific.
func EvaluateMissingFlood(snap models.InsuranceSnapshot, th thresholds.Thresholds) []Candidate {
	zone := snap.Property.FloodZone
	if !thresholds.HighRiskFloodZones[zone] {
		return nil
	}
	if presentPolicyTypes(snap)[models.PolicyTypeFlood] {
		return nil
	}
	name := models.PolicyTypeFlood
	return []Candidate{{
		GapType:          models.GapMissingFlood,
		Severity:         models.SeverityCritical,
		Title:            "Flood coverage required in zone " + zone,
		Description:      "Property is in high-risk flood zone " + zone + " with no active flood policy",
		CoverageName:     &name,
		CurrentValue:     strPtr("zone " + zone),
		RecommendedValue: strPtr("bind flood coverage; zone " + zone + " is a FEMA special flood hazard area"),
	}}
}

// EvaluateValuation checks the age of the property's most recent building
// valuation. No valuation at all is a distinct critical case from a stale one.
func EvaluateValuation(snap models.InsuranceSnapshot, th thresholds.Thresholds, asOf time.Time) []Candidate {
	var latest *time.Time
	for _, b := range snap.Buildings {
		if b.ValuationDate == nil {
			continue
		}
		if latest == nil || b.ValuationDate.After(*latest) {
			latest = b.ValuationDate
		}
	}

	if latest == nil {
		return []Candidate{{
			GapType:          models.GapOutdatedValuation,
			Severity:         models.SeverityCritical,
			Title:            "No building valuation on record",
			Description:      "The property has no valuation record for any building",
			CurrentValue:     strPtr("missing"),
			RecommendedValue: strPtr("obtain a replacement cost valuation"),
		}}
	}

	var severity models.Severity
	switch {
	case latest.Before(asOf.AddDate(-th.Valuation.CriticalYears, 0, 0)):
		severity = models.SeverityCritical
	case latest.Before(asOf.AddDate(-th.Valuation.WarningYears, 0, 0)):
		severity = models.SeverityWarning
	default:
		return nil
	}

	return []Candidate{{
		GapType:  models.GapOutdatedValuation,
		Severity: severity,
		Title:    "Building valuation is outdated",
		Description: fmt.Sprintf("Most recent valuation is dated %s; stale relative to %s",
			latest.Format("2006-01-02"), asOf.Format("2006-01-02")),
		CurrentValue:     strPtr(latest.Format("2006-01-02")),
		RecommendedValue: strPtr("refresh the valuation"),
	}}
}

func presentPolicyTypes(snap models.InsuranceSnapshot) map[string]bool {
	present := map[string]bool{}
	for _, p := range snap.ActivePolicies() {
		present[p.PolicyType] = true
	}
	return present
}

func programRef(p models.Policy) *string {
	if p.ProgramID == "" {
		return nil
	}
	id := p.ProgramID
	return &id
}

func flatThreshold(s models.Severity, th thresholds.DeductibleThresholds) float64 {
	if s == models.SeverityCritical {
		return th.CriticalFlat
	}
	return th.WarningFlat
}
