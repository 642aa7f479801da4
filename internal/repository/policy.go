package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// autoEnrollmentFlag is the runtime flag gating drop-triggered promotion.
const autoEnrollmentFlag = "auto_enrollment"

// PolicyRepository reads and writes global runtime flags. The flag lives
// in the store, not in process memory, so every service instance observes
// the same value.
type PolicyRepository struct {
	db *pgxpool.Pool
}

// NewPolicyRepository constructs a PolicyRepository.
func NewPolicyRepository(db *pgxpool.Pool) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// AutoEnrollEnabled reports whether drop-triggered promotion is on.
func (r *PolicyRepository) AutoEnrollEnabled(ctx context.Context) (bool, error) {
	var enabled bool
	err := r.db.QueryRow(ctx,
		`SELECT enabled FROM runtime_flags WHERE name = $1`, autoEnrollmentFlag,
	).Scan(&enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("read auto-enrollment flag: %w", err)
	}
	return enabled, nil
}

// SetAutoEnroll flips the auto-enrollment flag and reports whether the
// stored value actually changed. The conditional update makes the
// flip-and-report decision a single statement, so two concurrent enables
// can never both observe a change.
func (r *PolicyRepository) SetAutoEnroll(ctx context.Context, enabled bool) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE runtime_flags SET enabled = $2 WHERE name = $1 AND enabled <> $2`,
		autoEnrollmentFlag, enabled,
	)
	if err != nil {
		return false, fmt.Errorf("update auto-enrollment flag: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	// Zero rows means unchanged or missing; only the latter is an error.
	var exists bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM runtime_flags WHERE name = $1)`, autoEnrollmentFlag,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check auto-enrollment flag: %w", err)
	}
	if !exists {
		return false, ErrNotFound
	}
	return false, nil
}
