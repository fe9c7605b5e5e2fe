package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/malla-ucn/malla-estudiante/internal/domain/projection"
	"github.com/malla-ucn/malla-estudiante/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROJECTION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProjectionRepository implements projection.Repository for PostgreSQL.
type ProjectionRepository struct {
	conn *Connection
}

var _ projection.Repository = (*ProjectionRepository)(nil)

// NewProjectionRepository creates a new ProjectionRepository.
func NewProjectionRepository(conn *Connection) *ProjectionRepository {
	return &ProjectionRepository{conn: conn}
}

const projectionColumns = `id, rut, program_code, catalog_code, name, semesters, created_at, updated_at`

// List returns the plans of rut for program, most recently updated first.
func (r *ProjectionRepository) List(ctx context.Context, rut, program string) ([]*projection.Plan, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+projectionColumns+`
		FROM projection_plans
		WHERE rut = $1 AND program_code = $2
		ORDER BY updated_at DESC, name
	`, rut, program)
	if err != nil {
		return nil, fmt.Errorf("failed to list projections: %w", err)
	}
	defer rows.Close()

	plans := make([]*projection.Plan, 0)
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projections: %w", err)
	}
	return plans, nil
}

// Get returns a plan by ID.
func (r *ProjectionRepository) Get(ctx context.Context, id string) (*projection.Plan, error) {
	if projection.ValidateID(id) != nil {
		return nil, shared.ErrProjectionNotFound
	}

	row := r.conn.QueryRow(ctx, `SELECT `+projectionColumns+` FROM projection_plans WHERE id = $1`, id)
	p, err := scanPlan(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProjectionNotFound
		}
		return nil, err
	}
	return p, nil
}

// Save upserts by (rut, program_code, name). xmax is zero only for a row
// this statement inserted.
func (r *ProjectionRepository) Save(ctx context.Context, plan *projection.Plan) (*projection.Plan, bool, error) {
	semesters, err := projection.EncodeSemesters(plan.Semesters)
	if err != nil {
		return nil, false, err
	}

	saved := *plan
	saved.Semesters = projection.Normalize(plan.Semesters)

	var created bool
	err = r.conn.QueryRow(ctx, `
		INSERT INTO projection_plans (`+projectionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (rut, program_code, name) DO UPDATE SET
			semesters = EXCLUDED.semesters,
			catalog_code = EXCLUDED.catalog_code,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at, (xmax = 0) AS inserted
	`,
		plan.ID,
		plan.Rut,
		plan.ProgramCode,
		plan.CatalogCode,
		plan.Name,
		semesters,
		plan.CreatedAt,
		plan.UpdatedAt,
	).Scan(&saved.ID, &saved.CreatedAt, &saved.UpdatedAt, &created)
	if err != nil {
		return nil, false, fmt.Errorf("failed to save projection: %w", err)
	}

	saved.CreatedAt = saved.CreatedAt.UTC()
	saved.UpdatedAt = saved.UpdatedAt.UTC()
	return &saved, created, nil
}

// Update overwrites name, catalog and semesters of an existing plan.
func (r *ProjectionRepository) Update(ctx context.Context, plan *projection.Plan) error {
	if projection.ValidateID(plan.ID) != nil {
		return shared.ErrProjectionNotFound
	}
	semesters, err := projection.EncodeSemesters(plan.Semesters)
	if err != nil {
		return err
	}

	updatedAt := plan.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	result, err := r.conn.Exec(ctx, `
		UPDATE projection_plans SET
			name = $1,
			catalog_code = $2,
			semesters = $3,
			updated_at = $4
		WHERE id = $5
	`, plan.Name, plan.CatalogCode, semesters, updatedAt, plan.ID)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrProjectionExists
		}
		return fmt.Errorf("failed to update projection: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrProjectionNotFound
	}
	return nil
}

// Delete removes a plan.
func (r *ProjectionRepository) Delete(ctx context.Context, id string) error {
	if projection.ValidateID(id) != nil {
		return shared.ErrProjectionNotFound
	}

	result, err := r.conn.Exec(ctx, `DELETE FROM projection_plans WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete projection: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrProjectionNotFound
	}
	return nil
}

// Ping checks storage connectivity.
func (r *ProjectionRepository) Ping(ctx context.Context) error {
	return r.conn.Ping(ctx)
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

func scanPlan(row pgx.Row) (*projection.Plan, error) {
	var (
		p         projection.Plan
		semesters []byte
	)
	if err := row.Scan(
		&p.ID,
		&p.Rut,
		&p.ProgramCode,
		&p.CatalogCode,
		&p.Name,
		&semesters,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan projection: %w", err)
	}

	decoded, err := projection.DecodeSemesters(semesters)
	if err != nil {
		return nil, err
	}
	p.Semesters = decoded
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}
