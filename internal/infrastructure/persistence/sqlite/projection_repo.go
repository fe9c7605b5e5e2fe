package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/malla-ucn/malla-estudiante/internal/domain/projection"
	"github.com/malla-ucn/malla-estudiante/internal/domain/shared"
)

// timeLayout keeps a fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t.UTC()
}

type planRow struct {
	ID          string `db:"id"`
	Rut         string `db:"rut"`
	ProgramCode string `db:"program_code"`
	CatalogCode string `db:"catalog_code"`
	Name        string `db:"name"`
	Semesters   string `db:"semesters"`
	CreatedAt   string `db:"created_at"`
	UpdatedAt   string `db:"updated_at"`
}

func (r planRow) plan() (*projection.Plan, error) {
	semesters, err := projection.DecodeSemesters([]byte(r.Semesters))
	if err != nil {
		return nil, err
	}
	return &projection.Plan{
		ID:          r.ID,
		Rut:         r.Rut,
		ProgramCode: r.ProgramCode,
		CatalogCode: r.CatalogCode,
		Name:        r.Name,
		Semesters:   semesters,
		CreatedAt:   parseTime(r.CreatedAt),
		UpdatedAt:   parseTime(r.UpdatedAt),
	}, nil
}

func rowOf(p *projection.Plan) (planRow, error) {
	semesters, err := projection.EncodeSemesters(p.Semesters)
	if err != nil {
		return planRow{}, err
	}
	return planRow{
		ID:          p.ID,
		Rut:         p.Rut,
		ProgramCode: p.ProgramCode,
		CatalogCode: p.CatalogCode,
		Name:        p.Name,
		Semesters:   string(semesters),
		CreatedAt:   formatTime(p.CreatedAt),
		UpdatedAt:   formatTime(p.UpdatedAt),
	}, nil
}

// ProjectionRepository implements projection.Repository on SQLite.
type ProjectionRepository struct {
	db *sqlx.DB
}

var _ projection.Repository = (*ProjectionRepository)(nil)

// NewProjectionRepository creates a new ProjectionRepository.
func NewProjectionRepository(db *sqlx.DB) *ProjectionRepository {
	return &ProjectionRepository{db: db}
}

const selectPlan = `SELECT id, rut, program_code, catalog_code, name, semesters, created_at, updated_at FROM projection_plans`

func (r *ProjectionRepository) List(ctx context.Context, rut, program string) ([]*projection.Plan, error) {
	var rows []planRow
	err := r.db.SelectContext(ctx, &rows,
		selectPlan+` WHERE rut = ? AND program_code = ? ORDER BY updated_at DESC, name`, rut, program)
	if err != nil {
		return nil, fmt.Errorf("listing projections: %w", err)
	}

	plans := make([]*projection.Plan, 0, len(rows))
	for _, row := range rows {
		p, err := row.plan()
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, nil
}

func (r *ProjectionRepository) Get(ctx context.Context, id string) (*projection.Plan, error) {
	var row planRow
	if err := r.db.GetContext(ctx, &row, selectPlan+` WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrProjectionNotFound
		}
		return nil, fmt.Errorf("getting projection: %w", err)
	}
	return row.plan()
}

// Save upserts by (rut, program_code, name) inside one transaction.
func (r *ProjectionRepository) Save(ctx context.Context, plan *projection.Plan) (*projection.Plan, bool, error) {
	row, err := rowOf(plan)
	if err != nil {
		return nil, false, err
	}

	var (
		saved   *projection.Plan
		created bool
	)
	err = withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var existing planRow
		err := tx.GetContext(ctx, &existing,
			selectPlan+` WHERE rut = ? AND program_code = ? AND name = ?`, row.Rut, row.ProgramCode, row.Name)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := tx.NamedExecContext(ctx, `INSERT INTO projection_plans
				(id, rut, program_code, catalog_code, name, semesters, created_at, updated_at)
				VALUES (:id, :rut, :program_code, :catalog_code, :name, :semesters, :created_at, :updated_at)`, row); err != nil {
				if IsUniqueViolation(err) {
					return shared.ErrProjectionExists
				}
				return fmt.Errorf("inserting projection: %w", err)
			}
			created = true
		case err != nil:
			return fmt.Errorf("looking up projection: %w", err)
		default:
			row.ID = existing.ID
			row.CreatedAt = existing.CreatedAt
			if _, err := tx.NamedExecContext(ctx, `UPDATE projection_plans SET
				catalog_code = :catalog_code, semesters = :semesters, updated_at = :updated_at
				WHERE id = :id`, row); err != nil {
				return fmt.Errorf("updating projection: %w", err)
			}
		}

		saved, err = row.plan()
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return saved, created, nil
}

func (r *ProjectionRepository) Update(ctx context.Context, plan *projection.Plan) error {
	if plan.UpdatedAt.IsZero() {
		plan.UpdatedAt = time.Now().UTC()
	}
	row, err := rowOf(plan)
	if err != nil {
		return err
	}

	res, err := r.db.NamedExecContext(ctx, `UPDATE projection_plans SET
		name = :name, catalog_code = :catalog_code, semesters = :semesters, updated_at = :updated_at
		WHERE id = :id`, row)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrProjectionExists
		}
		return fmt.Errorf("updating projection: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return shared.ErrProjectionNotFound
	}
	return nil
}

func (r *ProjectionRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projection_plans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting projection: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return shared.ErrProjectionNotFound
	}
	return nil
}

func (r *ProjectionRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
