package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/coverpoint/backend/internal/utils"
)

// MockReasoner produces deterministic output derived from the property id, so
// local environments without an API key behave reproducibly across runs.
type MockReasoner struct {
	ModelVersion string
}

func (m MockReasoner) AnalyzeConflicts(ctx context.Context, req ConflictRequest) (ConflictResponse, int64, error) {
	start := time.Now()
	h := utils.HashStringToUint64(req.PropertyID)

	resp := ConflictResponse{
		CrossPolicyAnalysis: fmt.Sprintf("Reviewed %d policies on %s (%s)",
			len(req.Policies), req.PropertyName, m.ModelVersion),
		PortfolioRecommendations: []string{"Review policy terms at next renewal"},
	}

	if len(req.Policies) >= 2 && h%2 == 0 {
		resp.Conflicts = append(resp.Conflicts, ConflictCandidate{
			ConflictType: "exclusion_conflict",
			Severity:     "warning",
			Title:        "Potential exclusion overlap",
			Description:  "Exclusion language on the primary policy may overlap coverage granted by the second policy",
			AffectedPolicyIDs: []string{
				req.Policies[0].ID,
				req.Policies[1].ID,
			},
			Recommendation: "Compare exclusion schedules across the two policies",
			Confidence:     0.65,
		})
	}

	return resp, time.Since(start).Milliseconds(), nil
}

func (m MockReasoner) NarrateHealth(ctx context.Context, req HealthNarrationRequest) (map[string]string, error) {
	out := make(map[string]string, len(req.Components))
	for name, c := range req.Components {
		out[name] = fmt.Sprintf("%s scored %d of %d based on current findings", name, c.Score, c.Max)
	}
	return out, nil
}
