package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/coverpoint/backend/internal/llm"
	"github.com/coverpoint/backend/internal/models"
	"github.com/coverpoint/backend/internal/rules"
	"github.com/coverpoint/backend/internal/thresholds"
)

// Health score component names and weights. Weights sum to 100.
const (
	ComponentCoverageAdequacy     = "coverage_adequacy"
	ComponentPolicyCurrency       = "policy_currency"
	ComponentDeductibleRisk       = "deductible_risk"
	ComponentCoverageBreadth      = "coverage_breadth"
	ComponentLenderCompliance     = "lender_compliance"
	ComponentDocumentationQuality = "documentation_quality"
)

const (
	weightCoverageAdequacy     = 25
	weightPolicyCurrency       = 20
	weightDeductibleRisk       = 15
	weightCoverageBreadth      = 15
	weightLenderCompliance     = 15
	weightDocumentationQuality = 10
)

const (
	narrativeSourceLLM           = "llm"
	narrativeSourceDeterministic = "deterministic"
)

// HealthService computes the 0-100 composite score. Every number is derived
// locally from rules; the reasoner only narrates the components and its
// failure downgrades the narrative, never the score.
type HealthService struct {
	Store      Store
	Reasoner   llm.Reasoner
	Thresholds thresholds.Thresholds
	Logger     zerolog.Logger
}

// Calculate computes and persists a new score row for the property. The
// property not existing is the only hard failure.
func (s *HealthService) Calculate(ctx context.Context, propertyID, trigger string) (models.HealthScore, error) {
	snap, err := s.Store.GetSnapshot(ctx, propertyID)
	if err != nil {
		return models.HealthScore{}, fmt.Errorf("load snapshot for %s: %w", propertyID, err)
	}
	openGaps, err := s.Store.ListGaps(ctx, propertyID, models.StatusOpen)
	if err != nil {
		return models.HealthScore{}, fmt.Errorf("list open gaps for %s: %w", propertyID, err)
	}
	openConflicts, err := s.Store.ListConflicts(ctx, propertyID, models.StatusOpen)
	if err != nil {
		return models.HealthScore{}, fmt.Errorf("list open conflicts for %s: %w", propertyID, err)
	}

	now := time.Now().UTC()
	components := ComputeComponents(snap, openGaps, openConflicts, s.Thresholds, now)

	score := 0
	for _, c := range components {
		score += c.Score
	}

	hs := models.HealthScore{
		ID:                 uuid.NewString(),
		PropertyID:         propertyID,
		Score:              score,
		Grade:              models.GradeForScore(score),
		Components:         components,
		CalculatedAt:       now,
		CalculationTrigger: trigger,
		NarrativeSource:    narrativeSourceDeterministic,
	}

	prev, err := s.Store.GetLatestHealthScore(ctx, propertyID)
	if err != nil {
		return models.HealthScore{}, fmt.Errorf("load previous score for %s: %w", propertyID, err)
	}
	if prev == nil {
		hs.TrendDirection = models.TrendNew
	} else {
		hs.PreviousScoreID = &prev.ID
		hs.TrendDelta = score - prev.Score
		switch {
		case hs.TrendDelta > 0:
			hs.TrendDirection = models.TrendImproving
		case hs.TrendDelta < 0:
			hs.TrendDirection = models.TrendDeclining
		default:
			hs.TrendDirection = models.TrendStable
		}
	}

	s.narrate(ctx, snap.Property.Name, &hs)

	if err := s.Store.InsertHealthScore(ctx, hs); err != nil {
		return models.HealthScore{}, fmt.Errorf("persist score for %s: %w", propertyID, err)
	}

	s.Logger.Info().
		Str("property_id", propertyID).
		Int("score", score).
		Str("grade", hs.Grade).
		Str("trend", string(hs.TrendDirection)).
		Str("trigger", trigger).
		Msg("health score calculated")

	return hs, nil
}

// narrate overlays LLM reasoning text on the components. On any failure the
// deterministic reasoning stands and narrative_source stays deterministic so
// callers can label the analysis incomplete.
func (s *HealthService) narrate(ctx context.Context, propertyName string, hs *models.HealthScore) {
	if s.Reasoner == nil {
		return
	}

	req := llm.HealthNarrationRequest{
		PropertyName: propertyName,
		Score:        hs.Score,
		Grade:        hs.Grade,
		Components:   map[string]llm.HealthComponentInput{},
	}
	for name, c := range hs.Components {
		req.Components[name] = llm.HealthComponentInput{
			Score:    c.Score,
			Max:      c.Max,
			Findings: c.Findings,
			Concerns: c.Concerns,
		}
	}

	narration, err := s.Reasoner.NarrateHealth(ctx, req)
	if err != nil {
		s.Logger.Warn().Err(err).Str("property_id", hs.PropertyID).Msg("health narration failed, keeping deterministic text")
		return
	}

	for name, text := range narration {
		c, ok := hs.Components[name]
		if !ok || text == "" {
			continue
		}
		c.Reasoning = text
		hs.Components[name] = c
	}
	hs.NarrativeSource = narrativeSourceLLM
}

// ComputeComponents derives the six weighted sub-scores from the snapshot and
// the current open findings. Pure and deterministic for a given asOf.
func ComputeComponents(snap models.InsuranceSnapshot, openGaps []models.Gap, openConflicts []models.CoverageConflict, th thresholds.Thresholds, asOf time.Time) map[string]models.ScoreComponent {
	return map[string]models.ScoreComponent{
		ComponentCoverageAdequacy:     coverageAdequacy(openGaps, openConflicts),
		ComponentPolicyCurrency:       policyCurrency(snap, th, asOf),
		ComponentDeductibleRisk:       deductibleRisk(openGaps),
		ComponentCoverageBreadth:      coverageBreadth(snap, th),
		ComponentLenderCompliance:     lenderCompliance(snap, openGaps),
		ComponentDocumentationQuality: documentationQuality(snap),
	}
}

func coverageAdequacy(openGaps []models.Gap, openConflicts []models.CoverageConflict) models.ScoreComponent {
	c := newComponent(weightCoverageAdequacy)
	score := weightCoverageAdequacy
	for _, g := range openGaps {
		switch g.GapType {
		case models.GapUnderinsurance, models.GapMissingCoverage, models.GapMissingFlood:
		default:
			continue
		}
		switch g.Severity {
		case models.SeverityCritical:
			score -= 10
		case models.SeverityWarning:
			score -= 5
		default:
			score -= 2
		}
		c.Concerns = append(c.Concerns, g.Title)
	}
	for _, conflict := range openConflicts {
		if conflict.Severity == models.SeverityCritical {
			score -= 5
			c.Concerns = append(c.Concerns, conflict.Title)
		}
	}
	if len(c.Concerns) == 0 {
		c.Findings = append(c.Findings, "no open adequacy findings")
	}
	return finishComponent(c, score)
}

func policyCurrency(snap models.InsuranceSnapshot, th thresholds.Thresholds, asOf time.Time) models.ScoreComponent {
	c := newComponent(weightPolicyCurrency)
	active := snap.ActivePolicies()
	if len(active) == 0 {
		c.Concerns = append(c.Concerns, "no active policies")
		return finishComponent(c, 0)
	}

	minDays := math.MaxInt
	for _, p := range active {
		if p.ExpirationDate == nil {
			continue
		}
		if days := rules.DaysUntil(asOf, *p.ExpirationDate); days < minDays {
			minDays = days
		}
	}

	var score int
	switch {
	case minDays == math.MaxInt:
		score = weightPolicyCurrency / 2
		c.Concerns = append(c.Concerns, "no expiration dates on record")
	case minDays < 0:
		score = 0
		c.Concerns = append(c.Concerns, "at least one policy has expired")
	case minDays <= th.Expiration.CriticalDays:
		score = 5
		c.Concerns = append(c.Concerns, fmt.Sprintf("nearest expiration in %d days", minDays))
	case minDays <= th.Expiration.WarningDays:
		score = 12
		c.Concerns = append(c.Concerns, fmt.Sprintf("nearest expiration in %d days", minDays))
	case minDays <= th.Expiration.InfoDays:
		score = 16
		c.Findings = append(c.Findings, fmt.Sprintf("nearest expiration in %d days", minDays))
	default:
		score = weightPolicyCurrency
		c.Findings = append(c.Findings, "all policies current beyond 90 days")
	}
	return finishComponent(c, score)
}

func deductibleRisk(openGaps []models.Gap) models.ScoreComponent {
	c := newComponent(weightDeductibleRisk)
	score := weightDeductibleRisk
	for _, g := range openGaps {
		if g.GapType != models.GapHighDeductible {
			continue
		}
		if g.Severity == models.SeverityCritical {
			score -= 8
		} else {
			score -= 4
		}
		c.Concerns = append(c.Concerns, g.Title)
	}
	if len(c.Concerns) == 0 {
		c.Findings = append(c.Findings, "deductibles within thresholds")
	}
	return finishComponent(c, score)
}

func coverageBreadth(snap models.InsuranceSnapshot, th thresholds.Thresholds) models.ScoreComponent {
	c := newComponent(weightCoverageBreadth)

	needed := append([]string(nil), th.RequiredCoverages.AlwaysRequired...)
	if snap.Property.TIV > th.RequiredCoverages.UmbrellaTIVThreshold {
		needed = append(needed, models.PolicyTypeUmbrella)
	}
	if thresholds.HighRiskFloodZones[snap.Property.FloodZone] {
		needed = append(needed, models.PolicyTypeFlood)
	}

	present := map[string]bool{}
	for _, p := range snap.ActivePolicies() {
		present[p.PolicyType] = true
	}

	have := 0
	for _, t := range needed {
		if present[t] {
			have++
			c.Findings = append(c.Findings, t+" coverage in place")
		} else {
			c.Concerns = append(c.Concerns, t+" coverage missing")
		}
	}

	score := int(math.Round(float64(weightCoverageBreadth) * float64(have) / float64(len(needed))))
	return finishComponent(c, score)
}

func lenderCompliance(snap models.InsuranceSnapshot, openGaps []models.Gap) models.ScoreComponent {
	c := newComponent(weightLenderCompliance)
	if snap.LenderRequirement == nil {
		c.Findings = append(c.Findings, "no lender requirement attached")
		return finishComponent(c, weightLenderCompliance)
	}

	score := weightLenderCompliance
	for _, g := range openGaps {
		if g.GapType != models.GapCompliance {
			continue
		}
		score -= 5
		c.Concerns = append(c.Concerns, g.Title)
	}
	if len(c.Concerns) == 0 {
		c.Findings = append(c.Findings, "compliant with "+snap.LenderRequirement.Name)
	}
	return finishComponent(c, score)
}

func documentationQuality(snap models.InsuranceSnapshot) models.ScoreComponent {
	c := newComponent(weightDocumentationQuality)
	completeness := snap.Property.DocumentCompleteness
	if completeness < 0 {
		completeness = 0
	}
	if completeness > 1 {
		completeness = 1
	}
	score := int(math.Round(float64(weightDocumentationQuality) * completeness))
	c.Findings = append(c.Findings, fmt.Sprintf("document completeness %.0f%%", completeness*100))
	return finishComponent(c, score)
}

func newComponent(max int) models.ScoreComponent {
	return models.ScoreComponent{Max: max}
}

func finishComponent(c models.ScoreComponent, score int) models.ScoreComponent {
	if score < 0 {
		score = 0
	}
	if score > c.Max {
		score = c.Max
	}
	c.Score = score
	c.Percent = math.Round(float64(score)/float64(c.Max)*1000) / 10
	if c.Reasoning == "" {
		c.Reasoning = fmt.Sprintf("scored %d of %d", score, c.Max)
	}
	return c
}
