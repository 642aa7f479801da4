package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campushub/class-enrollment/internal/model"
)

// EnrollmentRepository owns the enrollment ledger and the multi-record
// transactions that move students between seats and the waitlist.
//
// Every state transition locks the offering row first. Two transactions
// racing on the same offering therefore serialise at the store, which is
// what keeps 0 <= enrollment_count <= capacity and the ledger in lockstep
// without any in-process locking.
type EnrollmentRepository struct {
	db *pgxpool.Pool
}

// NewEnrollmentRepository constructs an EnrollmentRepository.
func NewEnrollmentRepository(db *pgxpool.Pool) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// lockOffering acquires an exclusive row lock on the offering and returns
// its capacity and current enrollment count. Concurrent transactions
// locking the same offering block here until the holder commits.
func lockOffering(ctx context.Context, tx pgx.Tx, offeringID string) (capacity, count int, err error) {
	err = tx.QueryRow(ctx,
		`SELECT capacity, enrollment_count FROM offerings WHERE id = $1 FOR UPDATE`,
		offeringID,
	).Scan(&capacity, &count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, ErrNotFound
		}
		return 0, 0, fmt.Errorf("lock offering row: %w", err)
	}
	return capacity, count, nil
}

// isEnrolled reports whether the student already holds a seat in the
// offering. Callers hold the offering row lock, so the answer cannot
// change before their transaction commits.
func isEnrolled(ctx context.Context, tx pgx.Tx, offeringID, studentID string) (bool, error) {
	var held bool
	err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM enrollments WHERE offering_id = $1 AND student_id = $2)`,
		offeringID, studentID,
	).Scan(&held)
	if err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return held, nil
}

// Enroll gives the student a seat in one atomic transaction: lock the
// offering row, reject students already on the ledger, reject when full,
// insert the ledger row and increment the occupancy counter. The ledger
// check runs before the capacity check so re-enrolling in a full offering
// reports ErrAlreadyEnrolled, never falls through to the waitlist.
//
// A student sitting on this offering's waitlist who enrolls directly into
// a freed seat transitions Waitlisted -> Enrolled: the same transaction
// removes the waitlist entry so the pair never holds both states.
func (r *EnrollmentRepository) Enroll(ctx context.Context, offeringID, studentID string, now time.Time) error {
	return withRetry(ctx, func() error {
		return inTx(ctx, r.db, func(tx pgx.Tx) error {
			capacity, count, err := lockOffering(ctx, tx, offeringID)
			if err != nil {
				return err
			}

			held, err := isEnrolled(ctx, tx, offeringID, studentID)
			if err != nil {
				return err
			}
			if held {
				return ErrAlreadyEnrolled
			}
			if count >= capacity {
				return ErrOfferingFull
			}

			_, err = tx.Exec(ctx,
				`INSERT INTO enrollments (offering_id, student_id, created_at)
				 VALUES ($1, $2, $3)`,
				offeringID, studentID, now,
			)
			if err != nil {
				if isUniqueViolation(err) {
					return ErrAlreadyEnrolled
				}
				return fmt.Errorf("insert enrollment: %w", err)
			}

			if _, err := tx.Exec(ctx,
				`DELETE FROM waitlist_entries WHERE offering_id = $1 AND student_id = $2`,
				offeringID, studentID,
			); err != nil {
				return fmt.Errorf("clear waitlist entry: %w", err)
			}

			if err := bumpEnrollmentCount(ctx, tx, offeringID, 1); err != nil {
				return err
			}
			return nil
		})
	})
}

// Drop releases the student's seat in one atomic transaction: conditional
// delete of the ledger row, append-only drop record, guarded counter
// decrement. The delete's row count is the existence condition, so the
// second of two concurrent drops observes zero rows and reports
// ErrNotEnrolled rather than a silent success.
func (r *EnrollmentRepository) Drop(ctx context.Context, offeringID, studentID string, administrative bool, now time.Time) error {
	return withRetry(ctx, func() error {
		return inTx(ctx, r.db, func(tx pgx.Tx) error {
			if _, _, err := lockOffering(ctx, tx, offeringID); err != nil {
				return err
			}

			tag, err := tx.Exec(ctx,
				`DELETE FROM enrollments WHERE offering_id = $1 AND student_id = $2`,
				offeringID, studentID,
			)
			if err != nil {
				return fmt.Errorf("delete enrollment: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return ErrNotEnrolled
			}

			if _, err := tx.Exec(ctx,
				`INSERT INTO drop_records (id, offering_id, student_id, administrative, dropped_at)
				 VALUES ($1, $2, $3, $4, $5)`,
				uuid.New().String(), offeringID, studentID, administrative, now,
			); err != nil {
				return fmt.Errorf("insert drop record: %w", err)
			}

			return bumpEnrollmentCount(ctx, tx, offeringID, -1)
		})
	})
}

// PromoteOffering drains open seats from the front of the waitlist in one
// atomic transaction. The open-seat count is recomputed under the row
// lock on every call, so concurrent sweeps can never reuse a stale count
// and over-promote.
//
// Entries are popped with the store's atomic range-delete; a join racing
// with the pop either commits before the lock and is eligible, or after
// and stays queued. Intact either way.
func (r *EnrollmentRepository) PromoteOffering(ctx context.Context, offeringID string, now time.Time) (model.PromotionResult, error) {
	var result model.PromotionResult
	err := withRetry(ctx, func() error {
		result = model.PromotionResult{}
		return inTx(ctx, r.db, func(tx pgx.Tx) error {
			capacity, count, err := lockOffering(ctx, tx, offeringID)
			if err != nil {
				return err
			}
			open := capacity - count
			if open <= 0 {
				return nil
			}

			popped, err := popFront(ctx, tx, offeringID, open)
			if err != nil {
				return err
			}

			for _, entry := range popped {
				tag, err := tx.Exec(ctx,
					`INSERT INTO enrollments (offering_id, student_id, created_at)
					 VALUES ($1, $2, $3)
					 ON CONFLICT (offering_id, student_id) DO NOTHING`,
					offeringID, entry.StudentID, now,
				)
				if err != nil {
					return fmt.Errorf("insert promoted enrollment: %w", err)
				}
				if tag.RowsAffected() == 0 {
					// Concurrently enrolled through another path; the
					// entry is consumed, counted, and not re-queued.
					result.Conflicts++
					continue
				}
				result.Promoted = append(result.Promoted, entry)
			}

			if n := len(result.Promoted); n > 0 {
				if err := bumpEnrollmentCount(ctx, tx, offeringID, n); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return model.PromotionResult{}, err
	}
	return result, nil
}

// popFront atomically removes and returns the n lowest-score entries.
// The subquery ordering plus DELETE ... RETURNING is a single statement,
// so no entry can be read by one pop and deleted by another.
func popFront(ctx context.Context, tx pgx.Tx, offeringID string, n int) ([]model.WaitlistEntry, error) {
	rows, err := tx.Query(ctx,
		`DELETE FROM waitlist_entries
		 WHERE ctid IN (
		     SELECT ctid FROM waitlist_entries
		     WHERE offering_id = $1
		     ORDER BY score ASC, student_id ASC
		     LIMIT $2
		 )
		 RETURNING offering_id, student_id, score`,
		offeringID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("pop waitlist entries: %w", err)
	}
	defer rows.Close()

	var popped []model.WaitlistEntry
	for rows.Next() {
		var e model.WaitlistEntry
		if err := rows.Scan(&e.OfferingID, &e.StudentID, &e.Score); err != nil {
			return nil, fmt.Errorf("scan popped entry: %w", err)
		}
		popped = append(popped, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// RETURNING order is unspecified; restore queue order.
	sort.Slice(popped, func(i, j int) bool {
		if popped[i].Score != popped[j].Score {
			return popped[i].Score < popped[j].Score
		}
		return popped[i].StudentID < popped[j].StudentID
	})
	return popped, nil
}

// bumpEnrollmentCount adjusts the occupancy counter. The WHERE guard and
// the table CHECK keep the counter inside [0, capacity]; a violated guard
// means the ledger and counter diverged, which the transaction refuses to
// commit.
func bumpEnrollmentCount(ctx context.Context, tx pgx.Tx, offeringID string, delta int) error {
	tag, err := tx.Exec(ctx,
		`UPDATE offerings
		 SET enrollment_count = enrollment_count + $2
		 WHERE id = $1
		   AND enrollment_count + $2 BETWEEN 0 AND capacity`,
		offeringID, delta,
	)
	if err != nil {
		if isCheckViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("update enrollment count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// Roster returns all enrollments for an offering in enrollment order.
func (r *EnrollmentRepository) Roster(ctx context.Context, offeringID string) ([]model.Enrollment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT offering_id, student_id, created_at
		 FROM enrollments
		 WHERE offering_id = $1
		 ORDER BY created_at ASC, student_id ASC`,
		offeringID,
	)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	defer rows.Close()

	var enrollments []model.Enrollment
	for rows.Next() {
		var e model.Enrollment
		if err := rows.Scan(&e.OfferingID, &e.StudentID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, rows.Err()
}

// Droplist returns the drop audit trail for an offering, oldest first.
func (r *EnrollmentRepository) Droplist(ctx context.Context, offeringID string) ([]model.DropRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, offering_id, student_id, administrative, dropped_at
		 FROM drop_records
		 WHERE offering_id = $1
		 ORDER BY dropped_at ASC`,
		offeringID,
	)
	if err != nil {
		return nil, fmt.Errorf("list drop records: %w", err)
	}
	defer rows.Close()

	var records []model.DropRecord
	for rows.Next() {
		var d model.DropRecord
		if err := rows.Scan(&d.ID, &d.OfferingID, &d.StudentID, &d.Administrative, &d.DroppedAt); err != nil {
			return nil, fmt.Errorf("scan drop record: %w", err)
		}
		records = append(records, d)
	}
	return records, rows.Err()
}
