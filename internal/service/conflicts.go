package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/coverpoint/backend/internal/llm"
	"github.com/coverpoint/backend/internal/models"
)

// ConflictDetectionError wraps a failure to load the property for conflict
// detection. Reasoner failures are NOT wrapped in it; those degrade to
// rule-only results.
type ConflictDetectionError struct {
	PropertyID string
	Err        error
}

func (e *ConflictDetectionError) Error() string {
	return fmt.Sprintf("conflict detection for %s: %v", e.PropertyID, e.Err)
}

func (e *ConflictDetectionError) Unwrap() error { return e.Err }

type ConflictService struct {
	Store    Store
	Reasoner llm.Reasoner
	Logger   zerolog.Logger
}

type ConflictSummary struct {
	Total            int                         `json:"total"`
	ByType           map[models.ConflictType]int `json:"by_type"`
	BySeverity       map[models.Severity]int     `json:"by_severity"`
	Dropped          int                         `json:"dropped"`
	ReasonerDegraded bool                        `json:"reasoner_degraded"`
}

type ConflictDetectionResult struct {
	PropertyID               string                    `json:"property_id"`
	Conflicts                []models.CoverageConflict `json:"conflicts"`
	Summary                  ConflictSummary           `json:"summary"`
	CrossPolicyAnalysis      string                    `json:"cross_policy_analysis,omitempty"`
	PortfolioRecommendations []string                  `json:"portfolio_recommendations,omitempty"`
	LatencyMS                int64                     `json:"latency_ms"`
}

// DetectConflicts runs the deterministic heuristic pre-pass, hands ambiguous
// cross-policy reasoning to the external reasoner when the property carries
// two or more active policies, validates the reasoner's candidates against
// the snapshot, and reconciles open conflicts the same way gap detection
// reconciles gaps.
func (s *ConflictService) DetectConflicts(ctx context.Context, propertyID string, clearExisting bool) (ConflictDetectionResult, error) {
	snap, err := s.Store.GetSnapshot(ctx, propertyID)
	if err != nil {
		return ConflictDetectionResult{}, &ConflictDetectionError{PropertyID: propertyID, Err: err}
	}

	now := time.Now().UTC()
	conflicts := HeuristicConflicts(snap)
	for i := range conflicts {
		conflicts[i].ID = uuid.NewString()
		conflicts[i].PropertyID = propertyID
		conflicts[i].Status = models.StatusOpen
		conflicts[i].DetectedAt = now
	}

	result := ConflictDetectionResult{PropertyID: propertyID}

	active := snap.ActivePolicies()
	if len(active) >= 2 && s.Reasoner != nil {
		llmResp, latency, err := s.Reasoner.AnalyzeConflicts(ctx, buildConflictRequest(snap, active))
		result.LatencyMS = latency
		if err != nil {
			// Recoverable: keep the rule-based findings.
			s.Logger.Warn().Err(err).Str("property_id", propertyID).Msg("reasoner call failed, rule-only conflicts")
			result.Summary.ReasonerDegraded = true
		} else {
			result.CrossPolicyAnalysis = llmResp.CrossPolicyAnalysis
			result.PortfolioRecommendations = llmResp.PortfolioRecommendations

			ids := snap.PolicyIDs()
			for _, cand := range llmResp.Conflicts {
				validated, err := ValidateConflictCandidate(cand, ids)
				if err != nil {
					s.Logger.Warn().Err(err).Str("property_id", propertyID).Msg("dropped reasoner conflict candidate")
					result.Summary.Dropped++
					continue
				}
				validated.ID = uuid.NewString()
				validated.PropertyID = propertyID
				validated.Status = models.StatusOpen
				validated.DetectedAt = now
				conflicts = mergeConflict(conflicts, validated)
			}
		}
	}

	if err := s.Store.ReplaceOpenConflicts(ctx, propertyID, clearExisting, conflicts); err != nil {
		return ConflictDetectionResult{}, fmt.Errorf("persist conflicts for %s: %w", propertyID, err)
	}

	result.Conflicts = conflicts
	result.Summary.Total = len(conflicts)
	result.Summary.ByType = map[models.ConflictType]int{}
	result.Summary.BySeverity = map[models.Severity]int{}
	for _, c := range conflicts {
		result.Summary.ByType[c.ConflictType]++
		result.Summary.BySeverity[c.Severity]++
	}

	s.Logger.Info().
		Str("property_id", propertyID).
		Int("conflicts", len(conflicts)).
		Int("dropped", result.Summary.Dropped).
		Bool("degraded", result.Summary.ReasonerDegraded).
		Msg("conflict detection complete")

	return result, nil
}

// ValidateConflictCandidate converts a reasoner candidate into a persistable
// conflict, rejecting unknown types, unknown severities, and policy ids that
// are not on the property. Detection method starts as llm; mergeConflict
// upgrades it to hybrid when a heuristic found the same thing.
func ValidateConflictCandidate(c llm.ConflictCandidate, propertyPolicyIDs map[string]bool) (models.CoverageConflict, error) {
	conflictType := models.ConflictType(c.ConflictType)
	if !conflictType.Valid() {
		return models.CoverageConflict{}, fmt.Errorf("unknown conflict type %q", c.ConflictType)
	}
	severity := models.Severity(c.Severity)
	if !severity.Valid() {
		return models.CoverageConflict{}, fmt.Errorf("unknown severity %q", c.Severity)
	}
	if len(c.AffectedPolicyIDs) == 0 {
		return models.CoverageConflict{}, fmt.Errorf("no affected policy ids")
	}
	for _, id := range c.AffectedPolicyIDs {
		if !propertyPolicyIDs[id] {
			return models.CoverageConflict{}, fmt.Errorf("policy id %q not on property", id)
		}
	}
	if strings.TrimSpace(c.Title) == "" {
		return models.CoverageConflict{}, fmt.Errorf("empty title")
	}

	out := models.CoverageConflict{
		ConflictType:      conflictType,
		Severity:          severity,
		Title:             c.Title,
		Description:       c.Description,
		AffectedPolicyIDs: append([]string(nil), c.AffectedPolicyIDs...),
		DetectionMethod:   models.DetectionMethodLLM,
	}
	if c.Recommendation != "" {
		out.Recommendation = &c.Recommendation
	}
	if c.Confidence > 0 {
		out.LLMConfidence = &c.Confidence
	}
	return out, nil
}

// mergeConflict appends the LLM finding unless a heuristic already produced
// the same conflict type over the same policy set, in which case the existing
// finding is upgraded to hybrid and enriched rather than duplicated.
func mergeConflict(existing []models.CoverageConflict, incoming models.CoverageConflict) []models.CoverageConflict {
	key := conflictKey(incoming)
	for i := range existing {
		if conflictKey(existing[i]) != key {
			continue
		}
		existing[i].DetectionMethod = models.DetectionMethodHybrid
		if existing[i].Recommendation == nil {
			existing[i].Recommendation = incoming.Recommendation
		}
		existing[i].LLMConfidence = incoming.LLMConfidence
		return existing
	}
	return append(existing, incoming)
}

func conflictKey(c models.CoverageConflict) string {
	ids := append([]string(nil), c.AffectedPolicyIDs...)
	sort.Strings(ids)
	return string(c.ConflictType) + "|" + strings.Join(ids, ",")
}

func buildConflictRequest(snap models.InsuranceSnapshot, active []models.Policy) llm.ConflictRequest {
	req := llm.ConflictRequest{
		PropertyID:   snap.Property.ID,
		PropertyName: snap.Property.Name,
		FloodZone:    snap.Property.FloodZone,
		TIV:          snap.Property.TIV,
	}
	for _, p := range active {
		req.Policies = append(req.Policies, llm.PolicySummary{
			ID:              p.ID,
			PolicyNumber:    p.PolicyNumber,
			PolicyType:      p.PolicyType,
			Carrier:         p.Carrier,
			NamedInsured:    p.NamedInsured,
			Limit:           p.Limit,
			Deductible:      p.Deductible,
			AttachmentPoint: p.AttachmentPoint,
			ValuationMethod: p.ValuationMethod,
			EffectiveDate:   p.EffectiveDate,
			ExpirationDate:  p.ExpirationDate,
		})
	}
	return req
}
