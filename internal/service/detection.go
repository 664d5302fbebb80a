package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/coverpoint/backend/internal/models"
	"github.com/coverpoint/backend/internal/rules"
	"github.com/coverpoint/backend/internal/thresholds"
)

const defaultBatchConcurrency = 4

type DetectionService struct {
	Store       Store
	Thresholds  thresholds.Thresholds
	Logger      zerolog.Logger
	Concurrency int
}

type DetectionResult struct {
	PropertyID       string                  `json:"property_id"`
	Gaps             []models.Gap            `json:"gaps"`
	CountsByType     map[models.GapType]int  `json:"counts_by_type"`
	CountsBySeverity map[models.Severity]int `json:"counts_by_severity"`
	DetectedAt       time.Time               `json:"detected_at"`
}

type OrgDetectionResult struct {
	OrgID      string                     `json:"org_id"`
	Results    map[string]DetectionResult `json:"results"`
	Errors     map[string]string          `json:"errors"`
	Properties int                        `json:"properties"`
	Succeeded  int                        `json:"succeeded"`
	Failed     int                        `json:"failed"`
	TotalGaps  int                        `json:"total_gaps"`
}

// DetectForProperty runs every rule evaluator against the property's current
// snapshot and reconciles the results: open gaps are cleared and replaced in
// one transaction, acknowledged and resolved gaps survive. The snapshot load
// error (including not-found) is propagated, never retried.
func (s *DetectionService) DetectForProperty(ctx context.Context, propertyID string, asOf time.Time, clearExisting bool) (DetectionResult, error) {
	snap, err := s.Store.GetSnapshot(ctx, propertyID)
	if err != nil {
		return DetectionResult{}, fmt.Errorf("load snapshot for %s: %w", propertyID, err)
	}

	candidates := rules.EvaluateAll(snap, s.Thresholds, asOf)
	now := time.Now().UTC()

	gaps := make([]models.Gap, 0, len(candidates))
	for _, c := range candidates {
		gaps = append(gaps, models.Gap{
			ID:               uuid.NewString(),
			PropertyID:       propertyID,
			PolicyID:         c.PolicyID,
			ProgramID:        c.ProgramID,
			GapType:          c.GapType,
			Severity:         c.Severity,
			Title:            c.Title,
			Description:      c.Description,
			CoverageName:     c.CoverageName,
			CurrentValue:     c.CurrentValue,
			RecommendedValue: c.RecommendedValue,
			GapAmount:        c.GapAmount,
			Status:           models.StatusOpen,
			DetectedAt:       now,
			DetectionMethod:  models.DetectionMethodAuto,
		})
	}

	if err := s.Store.ReplaceOpenGaps(ctx, propertyID, clearExisting, gaps); err != nil {
		return DetectionResult{}, fmt.Errorf("persist gaps for %s: %w", propertyID, err)
	}

	rules.SortGaps(gaps)

	result := DetectionResult{
		PropertyID:       propertyID,
		Gaps:             gaps,
		CountsByType:     map[models.GapType]int{},
		CountsBySeverity: map[models.Severity]int{},
		DetectedAt:       now,
	}
	for _, g := range gaps {
		result.CountsByType[g.GapType]++
		result.CountsBySeverity[g.Severity]++
	}

	s.Logger.Info().
		Str("property_id", propertyID).
		Int("gaps", len(gaps)).
		Int("critical", result.CountsBySeverity[models.SeverityCritical]).
		Msg("gap detection complete")

	return result, nil
}

// DetectForOrganization runs detection for every property in the org.
// Properties do not share mutable state, so runs proceed concurrently with a
// bounded limit; one property's failure is recorded in the result and never
// aborts the batch.
func (s *DetectionService) DetectForOrganization(ctx context.Context, orgID string, asOf time.Time, clearExisting bool) (OrgDetectionResult, error) {
	propertyIDs, err := s.Store.ListPropertyIDs(ctx, orgID)
	if err != nil {
		return OrgDetectionResult{}, fmt.Errorf("list properties for org %s: %w", orgID, err)
	}

	result := OrgDetectionResult{
		OrgID:      orgID,
		Results:    map[string]DetectionResult{},
		Errors:     map[string]string{},
		Properties: len(propertyIDs),
	}

	concurrency := s.Concurrency
	if concurrency <= 0 {
		concurrency = defaultBatchConcurrency
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, propertyID := range propertyIDs {
		propertyID := propertyID
		g.Go(func() error {
			res, err := s.DetectForProperty(gctx, propertyID, asOf, clearExisting)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.Logger.Warn().Err(err).Str("property_id", propertyID).Msg("property detection failed")
				result.Errors[propertyID] = err.Error()
				result.Failed++
				return nil
			}
			result.Results[propertyID] = res
			result.Succeeded++
			result.TotalGaps += len(res.Gaps)
			return nil
		})
	}
	_ = g.Wait()

	s.Logger.Info().
		Str("org_id", orgID).
		Int("properties", result.Properties).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Int("total_gaps", result.TotalGaps).
		Msg("organization detection complete")

	return result, nil
}
