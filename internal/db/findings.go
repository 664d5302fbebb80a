package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/coverpoint/backend/internal/models"
	"github.com/coverpoint/backend/internal/utils"
)

// ReplaceOpenGaps is the reconcile step of a detection run: soft-delete the
// property's open gaps, then insert the new ones, all inside one transaction
// so readers never observe a transient gap-less state. A transaction-scoped
// advisory lock keyed by the property id serializes concurrent runs for the
// same property. Acknowledged and resolved gaps are untouched.
func (s *Store) ReplaceOpenGaps(ctx context.Context, propertyID string, clearExisting bool, gaps []models.Gap) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		if err := acquirePropertyLock(ctx, tx, propertyID); err != nil {
			return err
		}
		if clearExisting {
			if err := softDeleteOpen(ctx, tx, "gaps", propertyID); err != nil {
				return err
			}
		}
		for _, g := range gaps {
			if err := insertGap(ctx, tx, g); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceOpenConflicts mirrors ReplaceOpenGaps for coverage conflicts, using
// the same per-property lock so gap and conflict runs also serialize against
// each other.
func (s *Store) ReplaceOpenConflicts(ctx context.Context, propertyID string, clearExisting bool, conflicts []models.CoverageConflict) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		if err := acquirePropertyLock(ctx, tx, propertyID); err != nil {
			return err
		}
		if clearExisting {
			if err := softDeleteOpen(ctx, tx, "coverage_conflicts", propertyID); err != nil {
				return err
			}
		}
		for _, c := range conflicts {
			if err := insertConflict(ctx, tx, c); err != nil {
				return err
			}
		}
		return nil
	})
}

func acquirePropertyLock(ctx context.Context, tx pgx.Tx, propertyID string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, utils.AdvisoryLockKey(propertyID))
	return err
}

func softDeleteOpen(ctx context.Context, tx pgx.Tx, table, propertyID string) error {
	_, err := tx.Exec(ctx, `UPDATE `+table+` SET deleted_at = NOW() WHERE property_id = $1 AND status = $2 AND deleted_at IS NULL`,
		propertyID, models.StatusOpen)
	return err
}

func insertGap(ctx context.Context, tx pgx.Tx, g models.Gap) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO gaps (id, property_id, policy_id, program_id, gap_type, severity, title, description,
			coverage_name, current_value, recommended_value, gap_amount, status, detected_at, detection_method,
			llm_confidence, llm_recommendation)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, g.ID, g.PropertyID, g.PolicyID, g.ProgramID, g.GapType, g.Severity, g.Title, g.Description,
		g.CoverageName, g.CurrentValue, g.RecommendedValue, g.GapAmount, g.Status, g.DetectedAt, g.DetectionMethod,
		g.LLMConfidence, g.LLMRecommendation)
	return err
}

func insertConflict(ctx context.Context, tx pgx.Tx, c models.CoverageConflict) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO coverage_conflicts (id, property_id, conflict_type, severity, title, description,
			affected_policy_ids, recommendation, status, detected_at, detection_method, llm_confidence)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, c.ID, c.PropertyID, c.ConflictType, c.Severity, c.Title, c.Description,
		c.AffectedPolicyIDs, c.Recommendation, c.Status, c.DetectedAt, c.DetectionMethod, c.LLMConfidence)
	return err
}

const gapColumns = `id, property_id, policy_id, program_id, gap_type, severity, title, description,
	coverage_name, current_value, recommended_value, gap_amount, status, detected_at, detection_method,
	resolution_notes, resolved_at, resolved_by, llm_confidence, llm_recommendation`

func scanGap(row pgx.Row) (models.Gap, error) {
	var g models.Gap
	err := row.Scan(&g.ID, &g.PropertyID, &g.PolicyID, &g.ProgramID, &g.GapType, &g.Severity, &g.Title,
		&g.Description, &g.CoverageName, &g.CurrentValue, &g.RecommendedValue, &g.GapAmount, &g.Status,
		&g.DetectedAt, &g.DetectionMethod, &g.ResolutionNotes, &g.ResolvedAt, &g.ResolvedBy,
		&g.LLMConfidence, &g.LLMRecommendation)
	return g, err
}

// ListGaps returns the property's gaps, optionally filtered by status, in the
// display order: severity descending then detected_at descending.
func (s *Store) ListGaps(ctx context.Context, propertyID string, status models.FindingStatus) ([]models.Gap, error) {
	query := `SELECT ` + gapColumns + ` FROM gaps WHERE property_id = $1 AND deleted_at IS NULL`
	args := []any{propertyID}
	if status != "" {
		args = append(args, status)
		query += ` AND status = $2`
	}
	query += `
		ORDER BY CASE severity WHEN 'critical' THEN 3 WHEN 'warning' THEN 2 ELSE 1 END DESC,
			detected_at DESC`

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Gap
	for rows.Next() {
		g, err := scanGap(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// GetGap returns one gap by id, or (nil, nil) when it is unknown or
// soft-deleted.
func (s *Store) GetGap(ctx context.Context, id string) (*models.Gap, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+gapColumns+` FROM gaps WHERE id = $1 AND deleted_at IS NULL`, id)
	g, err := scanGap(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &g, nil
}

// UpdateGapStatus performs a lifecycle transition. Returns (nil, nil) when the
// id is unknown or soft-deleted so callers can treat it as not found without
// error plumbing.
func (s *Store) UpdateGapStatus(ctx context.Context, id string, status models.FindingStatus, notes, actor *string, at time.Time) (*models.Gap, error) {
	var resolvedAt *time.Time
	if status == models.StatusResolved {
		resolvedAt = &at
	}
	row := s.Pool.QueryRow(ctx, `
		UPDATE gaps
		SET status = $2, resolution_notes = $3, resolved_by = $4, resolved_at = $5
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+gapColumns, id, status, notes, actor, resolvedAt)

	g, err := scanGap(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &g, nil
}

const conflictColumns = `id, property_id, conflict_type, severity, title, description,
	affected_policy_ids, recommendation, status, detected_at, detection_method,
	resolution_notes, resolved_at, resolved_by, llm_confidence`

func scanConflict(row pgx.Row) (models.CoverageConflict, error) {
	var c models.CoverageConflict
	err := row.Scan(&c.ID, &c.PropertyID, &c.ConflictType, &c.Severity, &c.Title, &c.Description,
		&c.AffectedPolicyIDs, &c.Recommendation, &c.Status, &c.DetectedAt, &c.DetectionMethod,
		&c.ResolutionNotes, &c.ResolvedAt, &c.ResolvedBy, &c.LLMConfidence)
	return c, err
}

func (s *Store) ListConflicts(ctx context.Context, propertyID string, status models.FindingStatus) ([]models.CoverageConflict, error) {
	query := `SELECT ` + conflictColumns + ` FROM coverage_conflicts WHERE property_id = $1 AND deleted_at IS NULL`
	args := []any{propertyID}
	if status != "" {
		args = append(args, status)
		query += ` AND status = $2`
	}
	query += `
		ORDER BY CASE severity WHEN 'critical' THEN 3 WHEN 'warning' THEN 2 ELSE 1 END DESC,
			detected_at DESC`

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.CoverageConflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetConflict(ctx context.Context, id string) (*models.CoverageConflict, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+conflictColumns+` FROM coverage_conflicts WHERE id = $1 AND deleted_at IS NULL`, id)
	c, err := scanConflict(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) UpdateConflictStatus(ctx context.Context, id string, status models.FindingStatus, notes, actor *string, at time.Time) (*models.CoverageConflict, error) {
	var resolvedAt *time.Time
	if status == models.StatusResolved {
		resolvedAt = &at
	}
	row := s.Pool.QueryRow(ctx, `
		UPDATE coverage_conflicts
		SET status = $2, resolution_notes = $3, resolved_by = $4, resolved_at = $5
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+conflictColumns, id, status, notes, actor, resolvedAt)

	c, err := scanConflict(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// InsertHealthScore appends a score row. Rows are never updated afterwards.
func (s *Store) InsertHealthScore(ctx context.Context, hs models.HealthScore) error {
	components, err := json.Marshal(hs.Components)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, `
		INSERT INTO health_scores (id, property_id, score, grade, components, trend_direction, trend_delta,
			previous_score_id, calculated_at, calculation_trigger, narrative_source)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, hs.ID, hs.PropertyID, hs.Score, hs.Grade, components, hs.TrendDirection, hs.TrendDelta,
		hs.PreviousScoreID, hs.CalculatedAt, hs.CalculationTrigger, hs.NarrativeSource)
	return err
}

// GetLatestHealthScore returns the most recent score row for the property by
// calculated_at, or (nil, nil) when none exists yet.
func (s *Store) GetLatestHealthScore(ctx context.Context, propertyID string) (*models.HealthScore, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, property_id, score, grade, components, trend_direction, trend_delta,
			previous_score_id, calculated_at, calculation_trigger, narrative_source
		FROM health_scores
		WHERE property_id = $1
		ORDER BY calculated_at DESC
		LIMIT 1
	`, propertyID)

	hs, err := scanHealthScore(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &hs, nil
}

func (s *Store) ListHealthScores(ctx context.Context, propertyID string, limit int) ([]models.HealthScore, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, property_id, score, grade, components, trend_direction, trend_delta,
			previous_score_id, calculated_at, calculation_trigger, narrative_source
		FROM health_scores
		WHERE property_id = $1
		ORDER BY calculated_at DESC
		LIMIT $2
	`, propertyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.HealthScore
	for rows.Next() {
		hs, err := scanHealthScore(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, hs)
	}
	return out, rows.Err()
}

func scanHealthScore(row pgx.Row) (models.HealthScore, error) {
	var hs models.HealthScore
	var components []byte
	if err := row.Scan(&hs.ID, &hs.PropertyID, &hs.Score, &hs.Grade, &components, &hs.TrendDirection,
		&hs.TrendDelta, &hs.PreviousScoreID, &hs.CalculatedAt, &hs.CalculationTrigger, &hs.NarrativeSource); err != nil {
		return hs, err
	}
	if len(components) > 0 {
		if err := json.Unmarshal(components, &hs.Components); err != nil {
			return hs, err
		}
	}
	return hs, nil
}
