// Package llm is the reasoning collaborator boundary. Prompts carry bounded
// policy summaries, never raw document text, and every response is
// schema-validated before the service layer trusts it.
package llm

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps any transport, timeout, or malformed-response failure
// of the reasoning call. Callers treat it as recoverable and degrade to
// rule-only results.
var ErrUnavailable = errors.New("reasoning service unavailable")

// PolicySummary is the bounded per-policy payload sent to the reasoner.
type PolicySummary struct {
	ID              string     `json:"id"`
	PolicyNumber    string     `json:"policy_number"`
	PolicyType      string     `json:"policy_type"`
	Carrier         string     `json:"carrier,omitempty"`
	NamedInsured    string     `json:"named_insured,omitempty"`
	Limit           *float64   `json:"limit,omitempty"`
	Deductible      *float64   `json:"deductible,omitempty"`
	AttachmentPoint *float64   `json:"attachment_point,omitempty"`
	ValuationMethod string     `json:"valuation_method,omitempty"`
	EffectiveDate   *time.Time `json:"effective_date,omitempty"`
	ExpirationDate  *time.Time `json:"expiration_date,omitempty"`
}

type ConflictRequest struct {
	PropertyID   string          `json:"property_id"`
	PropertyName string          `json:"property_name"`
	FloodZone    string          `json:"flood_zone,omitempty"`
	TIV          float64         `json:"tiv,omitempty"`
	Policies     []PolicySummary `json:"policies"`
}

// ConflictCandidate is the declared response shape for one conflict. Type,
// severity, and affected policy ids are validated upstream against the
// snapshot before persistence.
type ConflictCandidate struct {
	ConflictType      string   `json:"conflict_type"`
	Severity          string   `json:"severity"`
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	AffectedPolicyIDs []string `json:"affected_policy_ids"`
	Recommendation    string   `json:"recommendation,omitempty"`
	Confidence        float64  `json:"confidence,omitempty"`
}

type ConflictResponse struct {
	Conflicts                []ConflictCandidate `json:"conflicts"`
	CrossPolicyAnalysis      string              `json:"cross_policy_analysis,omitempty"`
	PortfolioRecommendations []string            `json:"portfolio_recommendations,omitempty"`
}

// HealthComponentInput seeds the narration call with the deterministic
// sub-score. The reasoner only narrates numbers; it never produces them.
type HealthComponentInput struct {
	Score    int      `json:"score"`
	Max      int      `json:"max"`
	Findings []string `json:"findings,omitempty"`
	Concerns []string `json:"concerns,omitempty"`
}

type HealthNarrationRequest struct {
	PropertyName string                          `json:"property_name"`
	Score        int                             `json:"score"`
	Grade        string                          `json:"grade"`
	Components   map[string]HealthComponentInput `json:"components"`
}

// Reasoner is implemented by the OpenAI client and by the deterministic mock
// used when no API key is configured.
type Reasoner interface {
	// AnalyzeConflicts returns structured conflict candidates plus the call
	// latency in milliseconds.
	AnalyzeConflicts(ctx context.Context, req ConflictRequest) (ConflictResponse, int64, error)
	// NarrateHealth returns per-component reasoning text keyed by component
	// name.
	NarrateHealth(ctx context.Context, req HealthNarrationRequest) (map[string]string, error)
}
