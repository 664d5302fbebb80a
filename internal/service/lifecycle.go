package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/coverpoint/backend/internal/models"
)

// Triggers recorded on health score rows.
const (
	TriggerGapResolved      = "gap_resolved"
	TriggerConflictResolved = "conflict_resolved"
	TriggerManual           = "manual"
	TriggerDetection        = "detection"
)

// LifecycleService moves gaps and conflicts through open → acknowledged →
// resolved. Transitions are deliberately permissive: acknowledging an already
// resolved record just overwrites notes, which keeps the operations safe for
// retrying callers. All calls return (nil, nil) for unknown or soft-deleted
// ids.
type LifecycleService struct {
	Store  Store
	Health *HealthService
	Logger zerolog.Logger
}

func (s *LifecycleService) AcknowledgeGap(ctx context.Context, id, notes, actor string) (*models.Gap, error) {
	gap, err := s.Store.UpdateGapStatus(ctx, id, models.StatusAcknowledged, optStr(notes), optStr(actor), time.Now().UTC())
	if err != nil || gap == nil {
		return gap, err
	}
	s.Logger.Info().Str("gap_id", id).Str("property_id", gap.PropertyID).Msg("gap acknowledged")
	return gap, nil
}

// ResolveGap marks the gap resolved and kicks off a best-effort health score
// recalculation: a recalculation failure is logged and swallowed, never
// failing the resolve.
func (s *LifecycleService) ResolveGap(ctx context.Context, id, notes, actor string) (*models.Gap, error) {
	gap, err := s.Store.UpdateGapStatus(ctx, id, models.StatusResolved, optStr(notes), optStr(actor), time.Now().UTC())
	if err != nil || gap == nil {
		return gap, err
	}
	s.Logger.Info().Str("gap_id", id).Str("property_id", gap.PropertyID).Msg("gap resolved")
	s.recalculateHealth(ctx, gap.PropertyID, TriggerGapResolved)
	return gap, nil
}

func (s *LifecycleService) AcknowledgeConflict(ctx context.Context, id, notes, actor string) (*models.CoverageConflict, error) {
	conflict, err := s.Store.UpdateConflictStatus(ctx, id, models.StatusAcknowledged, optStr(notes), optStr(actor), time.Now().UTC())
	if err != nil || conflict == nil {
		return conflict, err
	}
	s.Logger.Info().Str("conflict_id", id).Str("property_id", conflict.PropertyID).Msg("conflict acknowledged")
	return conflict, nil
}

func (s *LifecycleService) ResolveConflict(ctx context.Context, id, notes, actor string) (*models.CoverageConflict, error) {
	conflict, err := s.Store.UpdateConflictStatus(ctx, id, models.StatusResolved, optStr(notes), optStr(actor), time.Now().UTC())
	if err != nil || conflict == nil {
		return conflict, err
	}
	s.Logger.Info().Str("conflict_id", id).Str("property_id", conflict.PropertyID).Msg("conflict resolved")
	s.recalculateHealth(ctx, conflict.PropertyID, TriggerConflictResolved)
	return conflict, nil
}

func (s *LifecycleService) recalculateHealth(ctx context.Context, propertyID, trigger string) {
	if s.Health == nil {
		return
	}
	if _, err := s.Health.Calculate(ctx, propertyID, trigger); err != nil {
		s.Logger.Warn().Err(err).Str("property_id", propertyID).Msg("health recalculation failed after resolve")
	}
}
