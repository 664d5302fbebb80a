package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coverpoint/backend/internal/models"
)

// ErrNotFound covers records that do not exist or are soft-deleted. Handlers
// map it to a 404; it is never retried.
var ErrNotFound = errors.New("record not found")

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetSnapshot assembles the transient per-run snapshot: the property with its
// buildings, active programs, and the policies and coverages under them.
func (s *Store) GetSnapshot(ctx context.Context, propertyID string) (models.InsuranceSnapshot, error) {
	var snap models.InsuranceSnapshot

	row := s.Pool.QueryRow(ctx, `
		SELECT id, org_id, name, address, flood_zone, tiv, units, document_completeness, created_at
		FROM properties
		WHERE id = $1 AND deleted_at IS NULL
	`, propertyID)
	p := &snap.Property
	if err := row.Scan(&p.ID, &p.OrgID, &p.Name, &p.Address, &p.FloodZone, &p.TIV, &p.Units, &p.DocumentCompleteness, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return snap, ErrNotFound
		}
		return snap, err
	}

	rows, err := s.Pool.Query(ctx, `
		SELECT id, property_id, name, value, valuation_date
		FROM buildings
		WHERE property_id = $1 AND deleted_at IS NULL
		ORDER BY id
	`, propertyID)
	if err != nil {
		return snap, err
	}
	defer rows.Close()
	for rows.Next() {
		var b models.Building
		if err := rows.Scan(&b.ID, &b.PropertyID, &b.Name, &b.Value, &b.ValuationDate); err != nil {
			return snap, err
		}
		snap.Buildings = append(snap.Buildings, b)
	}
	if err := rows.Err(); err != nil {
		return snap, err
	}

	progRows, err := s.Pool.Query(ctx, `
		SELECT id, property_id, name, active, created_at
		FROM insurance_programs
		WHERE property_id = $1 AND active AND deleted_at IS NULL
		ORDER BY created_at
	`, propertyID)
	if err != nil {
		return snap, err
	}
	defer progRows.Close()
	for progRows.Next() {
		var g models.InsuranceProgram
		if err := progRows.Scan(&g.ID, &g.PropertyID, &g.Name, &g.Active, &g.CreatedAt); err != nil {
			return snap, err
		}
		snap.Programs = append(snap.Programs, g)
	}
	if err := progRows.Err(); err != nil {
		return snap, err
	}

	polRows, err := s.Pool.Query(ctx, `
		SELECT p.id, p.program_id, p.policy_number, p.policy_type, p.carrier, p.named_insured,
			p.limit_amount, p.deductible, p.attachment_point, p.valuation_method,
			p.effective_date, p.expiration_date, p.status,
			p.source_document_id IS NOT NULL
		FROM policies p
		JOIN insurance_programs g ON g.id = p.program_id
		WHERE g.property_id = $1 AND g.active AND p.deleted_at IS NULL AND g.deleted_at IS NULL
		ORDER BY p.policy_number
	`, propertyID)
	if err != nil {
		return snap, err
	}
	defer polRows.Close()
	for polRows.Next() {
		var pol models.Policy
		if err := polRows.Scan(&pol.ID, &pol.ProgramID, &pol.PolicyNumber, &pol.PolicyType, &pol.Carrier,
			&pol.NamedInsured, &pol.Limit, &pol.Deductible, &pol.AttachmentPoint, &pol.ValuationMethod,
			&pol.EffectiveDate, &pol.ExpirationDate, &pol.Status, &pol.HasSourceDocument); err != nil {
			return snap, err
		}
		snap.Policies = append(snap.Policies, pol)
	}
	if err := polRows.Err(); err != nil {
		return snap, err
	}

	covRows, err := s.Pool.Query(ctx, `
		SELECT c.id, c.policy_id, c.name, c.limit_amount, c.sublimit
		FROM coverages c
		JOIN policies p ON p.id = c.policy_id
		JOIN insurance_programs g ON g.id = p.program_id
		WHERE g.property_id = $1 AND c.deleted_at IS NULL
		ORDER BY c.name
	`, propertyID)
	if err != nil {
		return snap, err
	}
	defer covRows.Close()
	for covRows.Next() {
		var c models.Coverage
		if err := covRows.Scan(&c.ID, &c.PolicyID, &c.Name, &c.Limit, &c.Sublimit); err != nil {
			return snap, err
		}
		snap.Coverages = append(snap.Coverages, c)
	}
	if err := covRows.Err(); err != nil {
		return snap, err
	}

	req, err := s.getLenderRequirement(ctx, propertyID)
	if err != nil {
		return snap, err
	}
	snap.LenderRequirement = req

	return snap, nil
}

func (s *Store) getLenderRequirement(ctx context.Context, propertyID string) (*models.LenderRequirement, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT name, min_property_limit, min_gl_limit, min_umbrella_limit,
			max_deductible_pct, max_deductible_flat,
			requires_flood, requires_earthquake, requires_terrorism, requires_business_income
		FROM lender_requirements
		WHERE property_id = $1 AND deleted_at IS NULL
	`, propertyID)

	var r models.LenderRequirement
	if err := row.Scan(&r.Name, &r.MinPropertyLimit, &r.MinGLLimit, &r.MinUmbrellaLimit,
		&r.MaxDeductiblePct, &r.MaxDeductibleFlat,
		&r.RequiresFlood, &r.RequiresEarthquake, &r.RequiresTerrorism, &r.RequiresBusinessIncome); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

func (s *Store) ListPropertyIDs(ctx context.Context, orgID string) ([]string, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id FROM properties
		WHERE org_id = $1 AND deleted_at IS NULL
		ORDER BY created_at
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
