// Package repository implements all database access for the enrollment
// system. It uses pgx directly (no ORM); every cross-record invariant is
// enforced inside a single database transaction that locks the offering
// row, never through a read-then-write pair across transactions.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campushub/class-enrollment/internal/model"
)

// OfferingRepository handles persistence for offerings.
type OfferingRepository struct {
	db *pgxpool.Pool
}

// NewOfferingRepository constructs an OfferingRepository.
func NewOfferingRepository(db *pgxpool.Pool) *OfferingRepository {
	return &OfferingRepository{db: db}
}

const offeringColumns = `id, title, term, section_no, instructor, capacity, enrollment_count, created_at`

func scanOffering(row pgx.Row) (*model.Offering, error) {
	var o model.Offering
	err := row.Scan(&o.ID, &o.Title, &o.Term, &o.SectionNo, &o.Instructor,
		&o.Capacity, &o.EnrollmentCount, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Create inserts a new offering and returns it with a generated UUID.
func (r *OfferingRepository) Create(ctx context.Context, req model.CreateOfferingRequest, now time.Time) (*model.Offering, error) {
	offering := &model.Offering{
		ID:              uuid.New().String(),
		Title:           req.Title,
		Term:            req.Term,
		SectionNo:       req.SectionNo,
		Instructor:      req.Instructor,
		Capacity:        req.Capacity,
		EnrollmentCount: 0,
		CreatedAt:       now,
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO offerings (id, title, term, section_no, instructor, capacity, enrollment_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		offering.ID, offering.Title, offering.Term, offering.SectionNo,
		offering.Instructor, offering.Capacity, offering.EnrollmentCount, offering.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateOffering
		}
		return nil, fmt.Errorf("insert offering: %w", err)
	}
	return offering, nil
}

// GetByID returns a single offering or ErrNotFound.
func (r *OfferingRepository) GetByID(ctx context.Context, id string) (*model.Offering, error) {
	o, err := scanOffering(r.db.QueryRow(ctx,
		`SELECT `+offeringColumns+` FROM offerings WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get offering: %w", err)
	}
	return o, nil
}

// List returns all offerings ordered by creation time descending.
func (r *OfferingRepository) List(ctx context.Context) ([]model.Offering, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+offeringColumns+` FROM offerings ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list offerings: %w", err)
	}
	defer rows.Close()
	return collectOfferings(rows)
}

// ListAvailable returns offerings with open seats, excluding any the given
// student already holds a seat in or waits on. An empty studentID skips
// the exclusion.
func (r *OfferingRepository) ListAvailable(ctx context.Context, studentID string) ([]model.Offering, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+offeringColumns+`
		 FROM offerings o
		 WHERE o.enrollment_count < o.capacity
		   AND ($1 = '' OR NOT EXISTS (
		       SELECT 1 FROM enrollments e
		       WHERE e.offering_id = o.id AND e.student_id = $1))
		   AND ($1 = '' OR NOT EXISTS (
		       SELECT 1 FROM waitlist_entries w
		       WHERE w.offering_id = o.id AND w.student_id = $1))
		 ORDER BY o.term, o.title, o.section_no`,
		studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list available offerings: %w", err)
	}
	defer rows.Close()
	return collectOfferings(rows)
}

// OpenOfferingIDs returns the ids of all offerings currently below
// capacity. Used by the promotion sweep; each promotion transaction
// re-reads the open-seat count under its own row lock, so a stale id here
// only costs a no-op.
func (r *OfferingRepository) OpenOfferingIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id FROM offerings WHERE enrollment_count < capacity`)
	if err != nil {
		return nil, fmt.Errorf("list open offerings: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan offering id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes an offering. Enrollments and waitlist entries cascade.
func (r *OfferingRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM offerings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete offering: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectOfferings(rows pgx.Rows) ([]model.Offering, error) {
	var offerings []model.Offering
	for rows.Next() {
		var o model.Offering
		if err := rows.Scan(&o.ID, &o.Title, &o.Term, &o.SectionNo, &o.Instructor,
			&o.Capacity, &o.EnrollmentCount, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan offering: %w", err)
		}
		offerings = append(offerings, o)
	}
	return offerings, rows.Err()
}
