package service

import (
	"context"
	"testing"
	"time"

	"github.com/coverpoint/backend/internal/models"
	"github.com/coverpoint/backend/internal/thresholds"
)

func TestDetectForPropertyPersistsOpenGaps(t *testing.T) {
	store := newMemStore()
	snap := healthySnapshot("prop-1")
	snap.Property.FloodZone = "AE" // forces one critical gap
	store.snapshots["prop-1"] = snap

	svc := &DetectionService{Store: store, Thresholds: thresholds.Default(), Logger: nopLogger()}

	result, err := svc.DetectForProperty(context.Background(), "prop-1", time.Now().UTC(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Gaps) != 1 {
		t.Fatalf("expected 1 gap, got %d", len(result.Gaps))
	}

	g := result.Gaps[0]
	if g.GapType != models.GapMissingFlood || g.Severity != models.SeverityCritical {
		t.Fatalf("expected critical missing flood, got %+v", g)
	}
	if g.Status != models.StatusOpen || g.DetectionMethod != models.DetectionMethodAuto {
		t.Fatalf("gaps must persist open with auto detection method, got %+v", g)
	}
	if g.ID == "" || g.PropertyID != "prop-1" {
		t.Fatalf("gap must carry id and property, got %+v", g)
	}
	if result.CountsBySeverity[models.SeverityCritical] != 1 {
		t.Fatalf("severity counts wrong: %+v", result.CountsBySeverity)
	}

	persisted, _ := store.ListGaps(context.Background(), "prop-1", models.StatusOpen)
	if len(persisted) != 1 {
		t.Fatalf("expected 1 persisted open gap, got %d", len(persisted))
	}
}

func TestDetectForPropertyHealthyPortfolio(t *testing.T) {
	store := newMemStore()
	store.snapshots["prop-1"] = healthySnapshot("prop-1")

	svc := &DetectionService{Store: store, Thresholds: thresholds.Default(), Logger: nopLogger()}
	result, err := svc.DetectForProperty(context.Background(), "prop-1", time.Now().UTC(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Gaps) != 0 {
		t.Fatalf("healthy portfolio should produce no gaps, got %+v", result.Gaps)
	}
}

func TestDetectForPropertyPreservesAcknowledgedGaps(t *testing.T) {
	store := newMemStore()
	store.snapshots["prop-1"] = healthySnapshot("prop-1")

	store.gaps["g-ack"] = models.Gap{
		ID: "g-ack", PropertyID: "prop-1", GapType: models.GapExpiration,
		Severity: models.SeverityWarning, Status: models.StatusAcknowledged,
	}
	store.gaps["g-open"] = models.Gap{
		ID: "g-open", PropertyID: "prop-1", GapType: models.GapExpiration,
		Severity: models.SeverityWarning, Status: models.StatusOpen,
	}

	svc := &DetectionService{Store: store, Thresholds: thresholds.Default(), Logger: nopLogger()}
	if _, err := svc.DetectForProperty(context.Background(), "prop-1", time.Now().UTC(), true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := store.gaps["g-ack"]; !ok {
		t.Fatalf("acknowledged gap must survive re-detection")
	}
	if _, ok := store.gaps["g-open"]; ok {
		t.Fatalf("stale open gap must be cleared on re-detection")
	}
}

func TestDetectForPropertyNotFound(t *testing.T) {
	svc := &DetectionService{Store: newMemStore(), Thresholds: thresholds.Default(), Logger: nopLogger()}
	if _, err := svc.DetectForProperty(context.Background(), "missing", time.Now().UTC(), true); err == nil {
		t.Fatalf("expected error for unknown property")
	}
}

func TestDetectForOrganizationIsolatesFailures(t *testing.T) {
	store := newMemStore()
	store.orgProps["org-1"] = []string{"prop-1", "prop-2", "prop-3"}
	store.snapshots["prop-1"] = healthySnapshot("prop-1")
	store.snapshots["prop-3"] = healthySnapshot("prop-3")
	store.snapErr["prop-2"] = errNotFound

	svc := &DetectionService{Store: store, Thresholds: thresholds.Default(), Logger: nopLogger(), Concurrency: 2}

	result, err := svc.DetectForOrganization(context.Background(), "org-1", time.Now().UTC(), true)
	if err != nil {
		t.Fatalf("batch must not fail on one property: %v", err)
	}
	if result.Properties != 3 || result.Succeeded != 2 || result.Failed != 1 {
		t.Fatalf("expected 2 succeeded / 1 failed of 3, got %+v", result)
	}
	if _, ok := result.Errors["prop-2"]; !ok {
		t.Fatalf("failed property must be recorded in errors, got %+v", result.Errors)
	}
	if _, ok := result.Results["prop-2"]; ok {
		t.Fatalf("failed property must not appear in results")
	}
	if len(result.Results) != 2 {
		t.Fatalf("expected 2 per-property results, got %d", len(result.Results))
	}
}

func TestDetectForOrganizationEmptyOrg(t *testing.T) {
	svc := &DetectionService{Store: newMemStore(), Thresholds: thresholds.Default(), Logger: nopLogger()}
	result, err := svc.DetectForOrganization(context.Background(), "org-empty", time.Now().UTC(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Properties != 0 || result.Succeeded != 0 || result.Failed != 0 {
		t.Fatalf("empty org should report zeros, got %+v", result)
	}
}
