package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/coverpoint/backend/internal/models"
)

// HeuristicConflicts is the deterministic pre-pass over a property's active
// policies: cheap local checks that need no external reasoning. Results carry
// detection method rule; the orchestrator stamps id, property, status, and
// detection time.
func HeuristicConflicts(snap models.InsuranceSnapshot) []models.CoverageConflict {
	active := snap.ActivePolicies()
	if len(active) < 2 {
		return nil
	}

	var out []models.CoverageConflict
	out = append(out, entityMismatchConflicts(active)...)
	out = append(out, valuationConflicts(active)...)
	out = append(out, excessPrimaryConflicts(active)...)
	out = append(out, coverageOverlapConflicts(active)...)
	return out
}

// entityMismatchConflicts flags policies whose normalized named-insured text
// disagrees. Punctuation and entity-suffix noise ("LLC" vs "L.L.C.") is
// stripped before comparing.
func entityMismatchConflicts(policies []models.Policy) []models.CoverageConflict {
	byInsured := map[string][]models.Policy{}
	var names []string
	for _, p := range policies {
		normalized := NormalizeInsuredName(p.NamedInsured)
		if normalized == "" {
			continue
		}
		if _, seen := byInsured[normalized]; !seen {
			names = append(names, normalized)
		}
		byInsured[normalized] = append(byInsured[normalized], p)
	}
	if len(byInsured) < 2 {
		return nil
	}

	sort.Strings(names)
	var affected []string
	for _, name := range names {
		for _, p := range byInsured[name] {
			affected = append(affected, p.ID)
		}
	}

	return []models.CoverageConflict{{
		ConflictType: models.ConflictEntityMismatch,
		Severity:     models.SeverityWarning,
		Title:        "Named insured differs across policies",
		Description: fmt.Sprintf("Policies on this property name %d different insured entities: %s",
			len(names), strings.Join(names, "; ")),
		AffectedPolicyIDs: affected,
		DetectionMethod:   models.DetectionMethodRule,
	}}
}

// valuationConflicts flags property policies that disagree on valuation
// method (replacement cost vs actual cash value and so on).
func valuationConflicts(policies []models.Policy) []models.CoverageConflict {
	methods := map[string][]string{}
	var order []string
	for _, p := range policies {
		if p.PolicyType != models.PolicyTypeProperty {
			continue
		}
		m := strings.ToLower(strings.TrimSpace(p.ValuationMethod))
		if m == "" {
			continue
		}
		if _, seen := methods[m]; !seen {
			order = append(order, m)
		}
		methods[m] = append(methods[m], p.ID)
	}
	if len(methods) < 2 {
		return nil
	}

	sort.Strings(order)
	var affected []string
	for _, m := range order {
		affected = append(affected, methods[m]...)
	}

	return []models.CoverageConflict{{
		ConflictType:      models.ConflictValuationConflict,
		Severity:          models.SeverityWarning,
		Title:             "Valuation method mismatch across property policies",
		Description:       "Property policies use different valuation methods: " + strings.Join(order, ", "),
		AffectedPolicyIDs: affected,
		DetectionMethod:   models.DetectionMethodRule,
	}}
}

// excessPrimaryConflicts flags umbrella/excess policies whose attachment
// point sits above the highest underlying primary limit, leaving an uncovered
// layer between the two.
func excessPrimaryConflicts(policies []models.Policy) []models.CoverageConflict {
	var primaryLimit float64
	var primaryID string
	for _, p := range policies {
		if p.PolicyType != models.PolicyTypeProperty && p.PolicyType != models.PolicyTypeGeneralLiability {
			continue
		}
		if p.Limit != nil && *p.Limit > primaryLimit {
			primaryLimit = *p.Limit
			primaryID = p.ID
		}
	}
	if primaryID == "" {
		return nil
	}

	var out []models.CoverageConflict
	for _, p := range policies {
		if p.PolicyType != models.PolicyTypeUmbrella && p.PolicyType != models.PolicyTypeExcess {
			continue
		}
		if p.AttachmentPoint == nil || *p.AttachmentPoint <= primaryLimit {
			continue
		}
		layer := *p.AttachmentPoint - primaryLimit
		out = append(out, models.CoverageConflict{
			ConflictType: models.ConflictExcessPrimaryGap,
			Severity:     models.SeverityCritical,
			Title:        "Uncovered layer below excess policy " + p.PolicyNumber,
			Description: fmt.Sprintf("Excess policy %s attaches at $%.0f but underlying primary limit is $%.0f, leaving a $%.0f uncovered layer",
				p.PolicyNumber, *p.AttachmentPoint, primaryLimit, layer),
			AffectedPolicyIDs: []string{primaryID, p.ID},
			DetectionMethod:   models.DetectionMethodRule,
		})
	}
	return out
}

// coverageOverlapConflicts flags pairs of active same-type policies whose
// terms overlap in time: usually a renewal that never cancelled its
// predecessor.
func coverageOverlapConflicts(policies []models.Policy) []models.CoverageConflict {
	var out []models.CoverageConflict
	for i := 0; i < len(policies); i++ {
		for j := i + 1; j < len(policies); j++ {
			a, b := policies[i], policies[j]
			if a.PolicyType != b.PolicyType {
				continue
			}
			if !termsOverlap(a, b) {
				continue
			}
			out = append(out, models.CoverageConflict{
				ConflictType: models.ConflictCoverageOverlap,
				Severity:     models.SeverityWarning,
				Title:        "Overlapping " + a.PolicyType + " policies",
				Description: fmt.Sprintf("Policies %s and %s both provide %s coverage over overlapping terms",
					a.PolicyNumber, b.PolicyNumber, a.PolicyType),
				AffectedPolicyIDs: []string{a.ID, b.ID},
				DetectionMethod:   models.DetectionMethodRule,
			})
		}
	}
	return out
}

func termsOverlap(a, b models.Policy) bool {
	if a.EffectiveDate == nil || a.ExpirationDate == nil || b.EffectiveDate == nil || b.ExpirationDate == nil {
		return false
	}
	return a.EffectiveDate.Before(*b.ExpirationDate) && b.EffectiveDate.Before(*a.ExpirationDate)
}

// NormalizeInsuredName lowercases, strips punctuation, and drops common
// entity suffixes so "Acme Holdings, LLC" and "ACME HOLDINGS L.L.C." compare
// equal.
func NormalizeInsuredName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	replacer := strings.NewReplacer(".", "", ",", "", "  ", " ")
	s = replacer.Replace(s)

	suffixes := []string{" llc", " lp", " llp", " inc", " corp", " ltd", " co"}
	for _, suffix := range suffixes {
		s = strings.TrimSuffix(s, suffix)
	}
	return strings.TrimSpace(s)
}
