package projection

import "context"

// Repository stores projection plans.
type Repository interface {
	// List returns the plans of rut for program, most recently updated first.
	List(ctx context.Context, rut, program string) ([]*Plan, error)

	// Get returns a plan by ID.
	// Returns ErrProjectionNotFound if it does not exist.
	Get(ctx context.Context, id string) (*Plan, error)

	// Save upserts by (rut, program, name). On conflict the existing record
	// keeps its ID and creation time and takes the new semesters. created
	// reports whether a new record was inserted.
	Save(ctx context.Context, plan *Plan) (saved *Plan, created bool, err error)

	// Update overwrites name and semesters of an existing plan.
	// Returns ErrProjectionNotFound if it does not exist and
	// ErrProjectionExists if the new name collides with another plan.
	Update(ctx context.Context, plan *Plan) error

	// Delete removes a plan.
	// Returns ErrProjectionNotFound if it does not exist.
	Delete(ctx context.Context, id string) error

	// Ping checks storage connectivity.
	Ping(ctx context.Context) error
}
