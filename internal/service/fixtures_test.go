package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/coverpoint/backend/internal/llm"
	"github.com/coverpoint/backend/internal/models"
)

var errNotFound = errors.New("not found")

func f64(v float64) *float64 { return &v }

func ts(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func nopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func activePolicy(id, number, policyType string) models.Policy {
	return models.Policy{
		ID:           id,
		ProgramID:    "prog-1",
		PolicyNumber: number,
		PolicyType:   policyType,
		Status:       models.PolicyStatusActive,
	}
}

// healthySnapshot carries enough coverage that no rule evaluator fires when
// detection runs at the current wall clock. Dates are relative to now so the
// fixture does not rot.
func healthySnapshot(propertyID string) models.InsuranceSnapshot {
	now := time.Now().UTC()
	effective := now.AddDate(0, -1, 0)
	expiration := now.AddDate(1, 0, 0)
	valuation := now.AddDate(0, -6, 0)

	property := activePolicy("p1", "POL-1", models.PolicyTypeProperty)
	property.Limit = f64(1_000_000)
	property.NamedInsured = "Acme Holdings LLC"
	property.EffectiveDate = &effective
	property.ExpirationDate = &expiration
	property.ValuationMethod = "replacement_cost"

	gl := activePolicy("p2", "POL-2", models.PolicyTypeGeneralLiability)
	gl.Limit = f64(1_000_000)
	gl.NamedInsured = "Acme Holdings LLC"
	gl.EffectiveDate = &effective
	gl.ExpirationDate = &expiration

	return models.InsuranceSnapshot{
		Property: models.Property{
			ID:                   propertyID,
			OrgID:                "org-1",
			Name:                 "Riverside Commons",
			FloodZone:            "X",
			TIV:                  2_000_000,
			Units:                40,
			DocumentCompleteness: 1.0,
		},
		Buildings: []models.Building{
			{ID: "b1", PropertyID: propertyID, Value: f64(1_000_000), ValuationDate: &valuation},
		},
		Programs: []models.InsuranceProgram{{ID: "prog-1", PropertyID: propertyID, Active: true}},
		Policies: []models.Policy{property, gl},
	}
}

// stubReasoner records calls and replays canned responses.
type stubReasoner struct {
	resp      llm.ConflictResponse
	err       error
	narration map[string]string
	narrErr   error

	analyzeCalls int
	narrateCalls int
}

func (s *stubReasoner) AnalyzeConflicts(ctx context.Context, req llm.ConflictRequest) (llm.ConflictResponse, int64, error) {
	s.analyzeCalls++
	if s.err != nil {
		return llm.ConflictResponse{}, 0, s.err
	}
	return s.resp, 12, nil
}

func (s *stubReasoner) NarrateHealth(ctx context.Context, req llm.HealthNarrationRequest) (map[string]string, error) {
	s.narrateCalls++
	if s.narrErr != nil {
		return nil, s.narrErr
	}
	return s.narration, nil
}
