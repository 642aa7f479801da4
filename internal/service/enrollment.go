// Package service implements business logic and orchestration between
// HTTP handlers and the repository layer. Atomicity lives in the store;
// services sequence the store calls and never hold in-process locks
// across them.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/campushub/class-enrollment/internal/clock"
	"github.com/campushub/class-enrollment/internal/model"
	"github.com/campushub/class-enrollment/internal/repository"
)

// EnrollmentStore is the ledger side of the enrollment transactions.
type EnrollmentStore interface {
	Enroll(ctx context.Context, offeringID, studentID string, now time.Time) error
	Drop(ctx context.Context, offeringID, studentID string, administrative bool, now time.Time) error
}

// WaitlistStore is the ordered queue per offering.
type WaitlistStore interface {
	Join(ctx context.Context, offeringID, studentID string, score int64) error
	Rank(ctx context.Context, offeringID, studentID string) (int, error)
	Remove(ctx context.Context, offeringID, studentID string) error
	Entries(ctx context.Context, offeringID string) ([]model.WaitlistEntry, error)
}

// PolicyStore exposes the globally shared auto-enrollment flag.
// SetAutoEnroll reports whether the stored value changed, atomically with
// the write.
type PolicyStore interface {
	AutoEnrollEnabled(ctx context.Context) (bool, error)
	SetAutoEnroll(ctx context.Context, enabled bool) (changed bool, err error)
}

// Promoter triggers waitlist promotion for a set of offerings.
type Promoter interface {
	Promote(ctx context.Context, offeringIDs ...string) (int, error)
}

// EnrollmentService orchestrates enroll, drop and waitlist operations.
type EnrollmentService struct {
	enrollments EnrollmentStore
	waitlist    WaitlistStore
	policy      PolicyStore
	promoter    Promoter
	clock       clock.Clock
	logger      *log.Logger
}

// NewEnrollmentService constructs an EnrollmentService.
func NewEnrollmentService(
	enrollments EnrollmentStore,
	waitlist WaitlistStore,
	policy PolicyStore,
	promoter Promoter,
	clk clock.Clock,
	logger *log.Logger,
) *EnrollmentService {
	if logger == nil {
		logger = log.Default()
	}
	return &EnrollmentService{
		enrollments: enrollments,
		waitlist:    waitlist,
		policy:      policy,
		promoter:    promoter,
		clock:       clk,
		logger:      logger,
	}
}

// Enroll gives the student a seat when one is open, and otherwise queues
// them on the offering's waitlist. The waitlist score is fixed at enqueue
// time from the wall clock in milliseconds; equal scores break by student
// id in the queue ordering, so the score never needs to be unique.
func (s *EnrollmentService) Enroll(ctx context.Context, offeringID, studentID string) (model.EnrollOutcome, error) {
	if offeringID == "" {
		return "", fmt.Errorf("offering id is required")
	}
	if studentID == "" {
		return "", fmt.Errorf("student id is required")
	}

	now := s.clock.Now()
	err := s.enrollments.Enroll(ctx, offeringID, studentID, now)
	if err == nil {
		return model.OutcomeEnrolled, nil
	}
	if !errors.Is(err, repository.ErrOfferingFull) {
		if isBusinessOutcome(err) {
			return "", err
		}
		return "", fmt.Errorf("enroll: %w", err)
	}

	// No open seat: fall through to the waitlist.
	if err := s.waitlist.Join(ctx, offeringID, studentID, now.UnixMilli()); err != nil {
		if isBusinessOutcome(err) {
			return "", err
		}
		return "", fmt.Errorf("join waitlist: %w", err)
	}
	return model.OutcomeWaitlisted, nil
}

// Drop releases the student's seat. When the auto-enrollment policy is
// enabled, the promotion engine runs for this offering after the drop
// transaction has committed; a promotion or policy-read failure is logged
// and does not undo the already-committed drop.
func (s *EnrollmentService) Drop(ctx context.Context, offeringID, studentID string, administrative bool) error {
	if offeringID == "" || studentID == "" {
		return fmt.Errorf("offering id and student id are required")
	}

	if err := s.enrollments.Drop(ctx, offeringID, studentID, administrative, s.clock.Now()); err != nil {
		if isBusinessOutcome(err) {
			return err
		}
		return fmt.Errorf("drop: %w", err)
	}

	enabled, err := s.policy.AutoEnrollEnabled(ctx)
	if err != nil {
		s.logger.Printf("read auto-enrollment policy after drop offering=%s: %v", offeringID, err)
		return nil
	}
	if !enabled {
		return nil
	}
	if _, err := s.promoter.Promote(ctx, offeringID); err != nil {
		s.logger.Printf("promote after drop offering=%s: %v", offeringID, err)
	}
	return nil
}

// WaitlistPosition returns the student's zero-based queue position.
func (s *EnrollmentService) WaitlistPosition(ctx context.Context, offeringID, studentID string) (int, error) {
	return s.waitlist.Rank(ctx, offeringID, studentID)
}

// LeaveWaitlist withdraws the student voluntarily. An absent entry
// reports repository.ErrNotWaitlisted.
func (s *EnrollmentService) LeaveWaitlist(ctx context.Context, offeringID, studentID string) error {
	return s.waitlist.Remove(ctx, offeringID, studentID)
}

// isBusinessOutcome reports whether err is one of the expected typed
// results that handlers map to HTTP statuses, as opposed to an internal
// store failure.
func isBusinessOutcome(err error) bool {
	return errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, repository.ErrAlreadyEnrolled) ||
		errors.Is(err, repository.ErrNotEnrolled) ||
		errors.Is(err, repository.ErrAlreadyWaitlisted) ||
		errors.Is(err, repository.ErrNotWaitlisted) ||
		errors.Is(err, repository.ErrWaitlistFull) ||
		errors.Is(err, repository.ErrWaitlistLimit) ||
		errors.Is(err, repository.ErrDuplicateOffering) ||
		errors.Is(err, repository.ErrAlreadySubscribed) ||
		errors.Is(err, repository.ErrNotSubscribed) ||
		errors.Is(err, repository.ErrConflict)
}
