package models

import "time"

type GapType string

const (
	GapUnderinsurance    GapType = "underinsurance"
	GapHighDeductible    GapType = "high_deductible"
	GapExpiration        GapType = "expiration"
	GapMissingCoverage   GapType = "missing_coverage"
	GapMissingFlood      GapType = "missing_flood"
	GapOutdatedValuation GapType = "outdated_valuation"
	GapCompliance        GapType = "compliance"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Rank orders severities for sorting: critical > warning > info.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

func (s Severity) Valid() bool {
	return s.Rank() > 0
}

type FindingStatus string

const (
	StatusOpen         FindingStatus = "open"
	StatusAcknowledged FindingStatus = "acknowledged"
	StatusResolved     FindingStatus = "resolved"
)

const (
	DetectionMethodAuto   = "auto"
	DetectionMethodRule   = "rule"
	DetectionMethodLLM    = "llm"
	DetectionMethodHybrid = "hybrid"
)

// Gap is a persisted single-policy or single-coverage deficiency.
// Re-detection only ever creates open gaps and clears open gaps; acknowledged
// and resolved gaps survive reruns untouched.
type Gap struct {
	ID                string        `json:"id"`
	PropertyID        string        `json:"property_id"`
	PolicyID          *string       `json:"policy_id,omitempty"`
	ProgramID         *string       `json:"program_id,omitempty"`
	GapType           GapType       `json:"gap_type"`
	Severity          Severity      `json:"severity"`
	Title             string        `json:"title"`
	Description       string        `json:"description"`
	CoverageName      *string       `json:"coverage_name,omitempty"`
	CurrentValue      *string       `json:"current_value,omitempty"`
	RecommendedValue  *string       `json:"recommended_value,omitempty"`
	GapAmount         *float64      `json:"gap_amount,omitempty"`
	Status            FindingStatus `json:"status"`
	DetectedAt        time.Time     `json:"detected_at"`
	DetectionMethod   string        `json:"detection_method"`
	ResolutionNotes   *string       `json:"resolution_notes,omitempty"`
	ResolvedAt        *time.Time    `json:"resolved_at,omitempty"`
	ResolvedBy        *string       `json:"resolved_by,omitempty"`
	LLMConfidence     *float64      `json:"llm_confidence,omitempty"`
	LLMRecommendation *string       `json:"llm_recommendation,omitempty"`
}

type ConflictType string

const (
	ConflictExcessPrimaryGap  ConflictType = "excess_primary_gap"
	ConflictEntityMismatch    ConflictType = "entity_mismatch"
	ConflictValuationConflict ConflictType = "valuation_conflict"
	ConflictCoverageOverlap   ConflictType = "coverage_overlap"
	ConflictLimitTowerGap     ConflictType = "limit_tower_gap"
	ConflictExclusion         ConflictType = "exclusion_conflict"
)

func (c ConflictType) Valid() bool {
	switch c {
	case ConflictExcessPrimaryGap, ConflictEntityMismatch, ConflictValuationConflict,
		ConflictCoverageOverlap, ConflictLimitTowerGap, ConflictExclusion:
		return true
	}
	return false
}

// CoverageConflict is a persisted cross-policy inconsistency. Property-scoped:
// there is no single owning policy, only the affected set.
type CoverageConflict struct {
	ID                string        `json:"id"`
	PropertyID        string        `json:"property_id"`
	ConflictType      ConflictType  `json:"conflict_type"`
	Severity          Severity      `json:"severity"`
	Title             string        `json:"title"`
	Description       string        `json:"description"`
	AffectedPolicyIDs []string      `json:"affected_policy_ids"`
	Recommendation    *string       `json:"recommendation,omitempty"`
	Status            FindingStatus `json:"status"`
	DetectedAt        time.Time     `json:"detected_at"`
	DetectionMethod   string        `json:"detection_method"`
	ResolutionNotes   *string       `json:"resolution_notes,omitempty"`
	ResolvedAt        *time.Time    `json:"resolved_at,omitempty"`
	ResolvedBy        *string       `json:"resolved_by,omitempty"`
	LLMConfidence     *float64      `json:"llm_confidence,omitempty"`
}

type TrendDirection string

const (
	TrendNew       TrendDirection = "new"
	TrendImproving TrendDirection = "improving"
	TrendDeclining TrendDirection = "declining"
	TrendStable    TrendDirection = "stable"
)

// ScoreComponent is one of the six weighted sub-scores of a health score.
type ScoreComponent struct {
	Score     int      `json:"score"`
	Max       int      `json:"max"`
	Percent   float64  `json:"percent"`
	Reasoning string   `json:"reasoning"`
	Findings  []string `json:"findings,omitempty"`
	Concerns  []string `json:"concerns,omitempty"`
}

// HealthScore is an append-only history row. Never mutated after creation;
// trend is relative to the prior row for the same property by calculated_at.
type HealthScore struct {
	ID                 string                    `json:"id"`
	PropertyID         string                    `json:"property_id"`
	Score              int                       `json:"score"`
	Grade              string                    `json:"grade"`
	Components         map[string]ScoreComponent `json:"components"`
	TrendDirection     TrendDirection            `json:"trend_direction"`
	TrendDelta         int                       `json:"trend_delta"`
	PreviousScoreID    *string                   `json:"previous_score_id,omitempty"`
	CalculatedAt       time.Time                 `json:"calculated_at"`
	CalculationTrigger string                    `json:"calculation_trigger"`
	NarrativeSource    string                    `json:"narrative_source"`
}

// GradeForScore maps a 0-100 score to a letter grade.
func GradeForScore(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}
