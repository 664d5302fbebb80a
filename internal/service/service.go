// Package service holds the detection orchestrators, the finding lifecycle,
// and the health score aggregator. Services are constructed explicitly in
// main and hold their collaborators; there is no package-level state.
package service

import (
	"context"
	"time"

	"github.com/coverpoint/backend/internal/models"
)

// Store is the persistence collaborator contract the orchestrators consume.
// *db.Store satisfies it; tests use an in-memory double.
type Store interface {
	GetSnapshot(ctx context.Context, propertyID string) (models.InsuranceSnapshot, error)
	ListPropertyIDs(ctx context.Context, orgID string) ([]string, error)

	ReplaceOpenGaps(ctx context.Context, propertyID string, clearExisting bool, gaps []models.Gap) error
	ReplaceOpenConflicts(ctx context.Context, propertyID string, clearExisting bool, conflicts []models.CoverageConflict) error

	ListGaps(ctx context.Context, propertyID string, status models.FindingStatus) ([]models.Gap, error)
	ListConflicts(ctx context.Context, propertyID string, status models.FindingStatus) ([]models.CoverageConflict, error)
	UpdateGapStatus(ctx context.Context, id string, status models.FindingStatus, notes, actor *string, at time.Time) (*models.Gap, error)
	UpdateConflictStatus(ctx context.Context, id string, status models.FindingStatus, notes, actor *string, at time.Time) (*models.CoverageConflict, error)

	InsertHealthScore(ctx context.Context, hs models.HealthScore) error
	GetLatestHealthScore(ctx context.Context, propertyID string) (*models.HealthScore, error)
}

func optStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
