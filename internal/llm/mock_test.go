package llm

import (
	"context"
	"testing"
)

func TestMockReasonerDeterministic(t *testing.T) {
	m := MockReasoner{ModelVersion: "mock-v1"}
	req := ConflictRequest{
		PropertyID:   "prop-1",
		PropertyName: "Riverside Commons",
		Policies: []PolicySummary{
			{ID: "p1", PolicyNumber: "POL-1", PolicyType: "property"},
			{ID: "p2", PolicyNumber: "POL-2", PolicyType: "general_liability"},
		},
	}

	first, _, err := m.AnalyzeConflicts(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _, err := m.AnalyzeConflicts(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first.Conflicts) != len(second.Conflicts) {
		t.Fatalf("same input must produce the same conflicts: %d vs %d", len(first.Conflicts), len(second.Conflicts))
	}
	if first.CrossPolicyAnalysis != second.CrossPolicyAnalysis {
		t.Fatalf("analysis text must be deterministic")
	}

	for _, c := range first.Conflicts {
		for _, id := range c.AffectedPolicyIDs {
			if id != "p1" && id != "p2" {
				t.Fatalf("mock must only reference real policy ids, got %s", id)
			}
		}
	}
}

func TestMockReasonerSinglePolicyNeverConflicts(t *testing.T) {
	m := MockReasoner{ModelVersion: "mock-v1"}
	req := ConflictRequest{
		PropertyID: "prop-solo",
		Policies:   []PolicySummary{{ID: "p1", PolicyNumber: "POL-1", PolicyType: "property"}},
	}
	resp, _, err := m.AnalyzeConflicts(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Conflicts) != 0 {
		t.Fatalf("one policy cannot conflict, got %d", len(resp.Conflicts))
	}
}

func TestMockReasonerNarratesEveryComponent(t *testing.T) {
	m := MockReasoner{ModelVersion: "mock-v1"}
	req := HealthNarrationRequest{
		PropertyName: "Riverside Commons",
		Score:        85,
		Grade:        "B",
		Components: map[string]HealthComponentInput{
			"coverage_adequacy": {Score: 20, Max: 25},
			"policy_currency":   {Score: 20, Max: 20},
		},
	}

	out, err := m.NarrateHealth(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != len(req.Components) {
		t.Fatalf("expected narration for every component, got %d of %d", len(out), len(req.Components))
	}
	for name := range req.Components {
		if out[name] == "" {
			t.Fatalf("component %s missing narration", name)
		}
	}
}
