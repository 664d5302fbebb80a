package rules

import (
	"fmt"

	"github.com/coverpoint/backend/internal/models"
	"github.com/coverpoint/backend/internal/thresholds"
)

// EvaluateCompliance compares the snapshot against a lender requirement and
// emits one candidate per violated dimension, so each can be acknowledged or
// resolved independently.
func EvaluateCompliance(snap models.InsuranceSnapshot, req models.LenderRequirement, th thresholds.Thresholds) []Candidate {
	var out []Candidate

	limits := maxLimitsByType(snap)

	if req.MinPropertyLimit > 0 {
		out = append(out, complianceLimitGap(req, "property limit", models.PolicyTypeProperty,
			limits[models.PolicyTypeProperty], req.MinPropertyLimit)...)
	}
	if req.MinGLLimit > 0 {
		out = append(out, complianceLimitGap(req, "general liability limit", models.PolicyTypeGeneralLiability,
			limits[models.PolicyTypeGeneralLiability], req.MinGLLimit)...)
	}
	if min := thresholds.ResolveUmbrellaMinimum(req, snap.Property.Units); min > 0 {
		umbrella := limits[models.PolicyTypeUmbrella]
		if excess := limits[models.PolicyTypeExcess]; excess > umbrella {
			umbrella = excess
		}
		out = append(out, complianceLimitGap(req, "umbrella limit", models.PolicyTypeUmbrella, umbrella, min)...)
	}

	out = append(out, complianceDeductibleGaps(snap, req)...)

	present := presentPolicyTypes(snap)
	for _, rc := range requiredFlagCoverages(req) {
		if present[rc] {
			continue
		}
		name := rc
		out = append(out, Candidate{
			GapType:          models.GapCompliance,
			Severity:         models.SeverityCritical,
			Title:            "Lender requires " + rc + " coverage",
			Description:      req.Name + " requires " + rc + " coverage and no active policy provides it",
			CoverageName:     &name,
			CurrentValue:     strPtr("missing"),
			RecommendedValue: strPtr("bind " + rc + " coverage"),
		})
	}

	return out
}

func complianceLimitGap(req models.LenderRequirement, label, coverageName string, current, min float64) []Candidate {
	if current >= min {
		return nil
	}
	name := coverageName
	return []Candidate{{
		GapType:  models.GapCompliance,
		Severity: models.SeverityCritical,
		Title:    "Lender minimum " + label + " not met",
		Description: fmt.Sprintf("%s requires %s minimum %s; current %s",
			req.Name, label, fmtMoney(min), fmtMoney(current)),
		CoverageName:     &name,
		CurrentValue:     strPtr(fmtMoney(current)),
		RecommendedValue: strPtr(fmtMoney(min)),
		GapAmount:        f64Ptr(min - current),
	}}
}

func complianceDeductibleGaps(snap models.InsuranceSnapshot, req models.LenderRequirement) []Candidate {
	var out []Candidate
	tiv := snap.Property.TIV
	for _, p := range snap.ActivePolicies() {
		if p.Deductible == nil || *p.Deductible <= 0 {
			continue
		}
		deductible := *p.Deductible
		pid := p.ID

		if req.MaxDeductibleFlat != nil && deductible > *req.MaxDeductibleFlat {
			out = append(out, Candidate{
				GapType:  models.GapCompliance,
				Severity: models.SeverityWarning,
				Title:    "Deductible exceeds lender maximum on policy " + p.PolicyNumber,
				Description: fmt.Sprintf("%s caps deductibles at %s; policy %s carries %s",
					req.Name, fmtMoney(*req.MaxDeductibleFlat), p.PolicyNumber, fmtMoney(deductible)),
				PolicyID:         &pid,
				ProgramID:        programRef(p),
				CoverageName:     strPtr(p.PolicyNumber + "/deductible_flat"),
				CurrentValue:     strPtr(fmtMoney(deductible)),
				RecommendedValue: strPtr(fmtMoney(*req.MaxDeductibleFlat)),
			})
		}
		if req.MaxDeductiblePct != nil && tiv > 0 {
			ratio := deductible / tiv
			if ratio > *req.MaxDeductiblePct {
				out = append(out, Candidate{
					GapType:  models.GapCompliance,
					Severity: models.SeverityWarning,
					Title:    "Deductible percentage exceeds lender maximum on policy " + p.PolicyNumber,
					Description: fmt.Sprintf("%s caps deductibles at %s of TIV; policy %s is at %s",
						req.Name, fmtPct(*req.MaxDeductiblePct), p.PolicyNumber, fmtPct(ratio)),
					PolicyID:         &pid,
					ProgramID:        programRef(p),
					CoverageName:     strPtr(p.PolicyNumber + "/deductible_pct"),
					CurrentValue:     strPtr(fmtPct(ratio)),
					RecommendedValue: strPtr(fmtPct(*req.MaxDeductiblePct)),
				})
			}
		}
	}
	return out
}

func maxLimitsByType(snap models.InsuranceSnapshot) map[string]float64 {
	limits := map[string]float64{}
	for _, p := range snap.ActivePolicies() {
		if p.Limit == nil {
			continue
		}
		if *p.Limit > limits[p.PolicyType] {
			limits[p.PolicyType] = *p.Limit
		}
	}
	return limits
}

func requiredFlagCoverages(req models.LenderRequirement) []string {
	var out []string
	if req.RequiresFlood {
		out = append(out, models.PolicyTypeFlood)
	}
	if req.RequiresEarthquake {
		out = append(out, models.PolicyTypeEarthquake)
	}
	if req.RequiresTerrorism {
		out = append(out, models.PolicyTypeTerrorism)
	}
	if req.RequiresBusinessIncome {
		out = append(out, models.PolicyTypeBusinessIncome)
	}
	return out
}
