package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campushub/class-enrollment/internal/model"
)

// SubscriptionRepository persists promotion-notification subscriptions.
// Subscriptions are lookup-only from the promotion path; no cross-record
// invariant is enforced beyond the waitlist-membership precondition at
// subscribe time.
type SubscriptionRepository struct {
	db *pgxpool.Pool
}

// NewSubscriptionRepository constructs a SubscriptionRepository.
func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Subscribe records notification targets for a waitlisted student. The
// transaction takes the offering row lock before the membership check, so
// it serialises with the promotion transaction: the student is either
// still queued when the subscription lands, or the check observes the
// committed pop and rejects.
func (r *SubscriptionRepository) Subscribe(ctx context.Context, sub model.Subscription) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, _, err := lockOffering(ctx, tx, sub.OfferingID); err != nil {
			return err
		}

		var waitlisted bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM waitlist_entries WHERE offering_id = $1 AND student_id = $2)`,
			sub.OfferingID, sub.StudentID,
		).Scan(&waitlisted); err != nil {
			return fmt.Errorf("check waitlist membership: %w", err)
		}
		if !waitlisted {
			return ErrNotWaitlisted
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO notification_subscriptions (offering_id, student_id, email, webhook_url, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			sub.OfferingID, sub.StudentID, sub.Email, sub.WebhookURL, sub.CreatedAt,
		); err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadySubscribed
			}
			return fmt.Errorf("insert subscription: %w", err)
		}
		return nil
	})
}

// Find returns the subscription for the pair, or nil when none exists.
func (r *SubscriptionRepository) Find(ctx context.Context, offeringID, studentID string) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.QueryRow(ctx,
		`SELECT offering_id, student_id, email, webhook_url, created_at
		 FROM notification_subscriptions
		 WHERE offering_id = $1 AND student_id = $2`,
		offeringID, studentID,
	).Scan(&sub.OfferingID, &sub.StudentID, &sub.Email, &sub.WebhookURL, &sub.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find subscription: %w", err)
	}
	return &sub, nil
}

// ListByStudent returns all of a student's subscriptions.
func (r *SubscriptionRepository) ListByStudent(ctx context.Context, studentID string) ([]model.Subscription, error) {
	rows, err := r.db.Query(ctx,
		`SELECT offering_id, student_id, email, webhook_url, created_at
		 FROM notification_subscriptions
		 WHERE student_id = $1
		 ORDER BY created_at ASC`,
		studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []model.Subscription
	for rows.Next() {
		var s model.Subscription
		if err := rows.Scan(&s.OfferingID, &s.StudentID, &s.Email, &s.WebhookURL, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// Delete removes the subscription for the pair. ErrNotSubscribed when
// none exists.
func (r *SubscriptionRepository) Delete(ctx context.Context, offeringID, studentID string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM notification_subscriptions WHERE offering_id = $1 AND student_id = $2`,
		offeringID, studentID,
	)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotSubscribed
	}
	return nil
}
