package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campushub/class-enrollment/internal/model"
)

// WaitlistRepository manages the per-offering ordered waitlist queues.
// Entries are ranked by score ascending, student id breaking ties.
type WaitlistRepository struct {
	db *pgxpool.Pool

	// capacity bounds the queue size per offering; perStudentLimit bounds
	// how many queues one student may sit on concurrently.
	capacity        int
	perStudentLimit int
}

// NewWaitlistRepository constructs a WaitlistRepository with the given
// size bounds.
func NewWaitlistRepository(db *pgxpool.Pool, capacity, perStudentLimit int) *WaitlistRepository {
	return &WaitlistRepository{db: db, capacity: capacity, perStudentLimit: perStudentLimit}
}

// Join appends the student to the offering's waitlist. All four
// preconditions (no seat held, not already queued, per-student bound,
// queue size bound) are checked against a consistent snapshot: the
// offering row lock serialises joins per offering, and a per-student
// advisory transaction lock serialises the membership count across
// offerings. A failed check returns its distinct error and nothing is
// mutated.
func (r *WaitlistRepository) Join(ctx context.Context, offeringID, studentID string, score int64) error {
	return withRetry(ctx, func() error {
		return inTx(ctx, r.db, func(tx pgx.Tx) error {
			if _, _, err := lockOffering(ctx, tx, offeringID); err != nil {
				return err
			}

			held, err := isEnrolled(ctx, tx, offeringID, studentID)
			if err != nil {
				return err
			}
			if held {
				return ErrAlreadyEnrolled
			}

			if _, err := tx.Exec(ctx,
				`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`,
				"waitlist:"+studentID,
			); err != nil {
				return fmt.Errorf("lock student waitlists: %w", err)
			}

			var queued bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM waitlist_entries WHERE offering_id = $1 AND student_id = $2)`,
				offeringID, studentID,
			).Scan(&queued); err != nil {
				return fmt.Errorf("check waitlist membership: %w", err)
			}
			if queued {
				return ErrAlreadyWaitlisted
			}

			var memberships int
			if err := tx.QueryRow(ctx,
				`SELECT COUNT(*) FROM waitlist_entries WHERE student_id = $1`,
				studentID,
			).Scan(&memberships); err != nil {
				return fmt.Errorf("count student waitlists: %w", err)
			}
			if memberships >= r.perStudentLimit {
				return ErrWaitlistLimit
			}

			var size int
			if err := tx.QueryRow(ctx,
				`SELECT COUNT(*) FROM waitlist_entries WHERE offering_id = $1`,
				offeringID,
			).Scan(&size); err != nil {
				return fmt.Errorf("count waitlist size: %w", err)
			}
			if size >= r.capacity {
				return ErrWaitlistFull
			}

			if _, err := tx.Exec(ctx,
				`INSERT INTO waitlist_entries (offering_id, student_id, score)
				 VALUES ($1, $2, $3)`,
				offeringID, studentID, score,
			); err != nil {
				if isUniqueViolation(err) {
					return ErrAlreadyWaitlisted
				}
				return fmt.Errorf("insert waitlist entry: %w", err)
			}
			return nil
		})
	})
}

// Rank returns the student's zero-based position on the offering's
// waitlist, or ErrNotWaitlisted.
func (r *WaitlistRepository) Rank(ctx context.Context, offeringID, studentID string) (int, error) {
	var rank int
	err := r.db.QueryRow(ctx,
		`SELECT position FROM (
		     SELECT student_id,
		            ROW_NUMBER() OVER (ORDER BY score ASC, student_id ASC) - 1 AS position
		     FROM waitlist_entries
		     WHERE offering_id = $1
		 ) ranked
		 WHERE student_id = $2`,
		offeringID, studentID,
	).Scan(&rank)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotWaitlisted
		}
		return 0, fmt.Errorf("rank waitlist entry: %w", err)
	}
	return rank, nil
}

// Remove withdraws the student from the offering's waitlist. Removing an
// absent entry reports ErrNotWaitlisted, never a silent success.
func (r *WaitlistRepository) Remove(ctx context.Context, offeringID, studentID string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM waitlist_entries WHERE offering_id = $1 AND student_id = $2`,
		offeringID, studentID,
	)
	if err != nil {
		return fmt.Errorf("remove waitlist entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotWaitlisted
	}
	return nil
}

// Entries returns the offering's full waitlist in queue order.
func (r *WaitlistRepository) Entries(ctx context.Context, offeringID string) ([]model.WaitlistEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT offering_id, student_id, score
		 FROM waitlist_entries
		 WHERE offering_id = $1
		 ORDER BY score ASC, student_id ASC`,
		offeringID,
	)
	if err != nil {
		return nil, fmt.Errorf("list waitlist entries: %w", err)
	}
	defer rows.Close()

	var entries []model.WaitlistEntry
	for rows.Next() {
		var e model.WaitlistEntry
		if err := rows.Scan(&e.OfferingID, &e.StudentID, &e.Score); err != nil {
			return nil, fmt.Errorf("scan waitlist entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Size returns the number of entries on the offering's waitlist.
func (r *WaitlistRepository) Size(ctx context.Context, offeringID string) (int, error) {
	var size int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM waitlist_entries WHERE offering_id = $1`,
		offeringID,
	).Scan(&size); err != nil {
		return 0, fmt.Errorf("count waitlist size: %w", err)
	}
	return size, nil
}
