package service

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/class-enrollment/internal/clock"
	"github.com/campushub/class-enrollment/internal/model"
	"github.com/campushub/class-enrollment/internal/repository"
)

var testNow = time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestEnrollOpenSeat(t *testing.T) {
	enrollments := &fakeEnrollmentStore{
		enrollFn: func(ctx context.Context, offeringID, studentID string, now time.Time) error {
			assert.Equal(t, "off-1", offeringID)
			assert.Equal(t, "s-100", studentID)
			assert.Equal(t, testNow, now)
			return nil
		},
	}
	waitlist := &fakeWaitlistStore{
		joinFn: func(ctx context.Context, offeringID, studentID string, score int64) error {
			t.Fatal("waitlist join must not run when a seat is open")
			return nil
		},
	}
	svc := NewEnrollmentService(enrollments, waitlist, &fakePolicyStore{}, &fakePromoter{}, clock.NewFixed(testNow), discardLogger())

	outcome, err := svc.Enroll(context.Background(), "off-1", "s-100")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeEnrolled, outcome)
}

func TestEnrollFullOfferingFallsToWaitlist(t *testing.T) {
	enrollments := &fakeEnrollmentStore{
		enrollFn: func(ctx context.Context, offeringID, studentID string, now time.Time) error {
			return repository.ErrOfferingFull
		},
	}
	var joined bool
	waitlist := &fakeWaitlistStore{
		joinFn: func(ctx context.Context, offeringID, studentID string, score int64) error {
			joined = true
			assert.Equal(t, testNow.UnixMilli(), score)
			return nil
		},
	}
	svc := NewEnrollmentService(enrollments, waitlist, &fakePolicyStore{}, &fakePromoter{}, clock.NewFixed(testNow), discardLogger())

	outcome, err := svc.Enroll(context.Background(), "off-1", "s-100")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeWaitlisted, outcome)
	assert.True(t, joined)
}

func TestEnrollSeatHolderInFullOfferingIsNotWaitlisted(t *testing.T) {
	// The store reports the held seat before the capacity shortfall, so a
	// re-enroll in a full offering must surface AlreadyEnrolled and never
	// reach the waitlist.
	enrollments := &fakeEnrollmentStore{
		enrollFn: func(ctx context.Context, offeringID, studentID string, now time.Time) error {
			return repository.ErrAlreadyEnrolled
		},
	}
	waitlist := &fakeWaitlistStore{
		joinFn: func(ctx context.Context, offeringID, studentID string, score int64) error {
			t.Fatal("a seat holder must never be queued on the waitlist")
			return nil
		},
	}
	svc := NewEnrollmentService(enrollments, waitlist, &fakePolicyStore{}, &fakePromoter{}, clock.NewFixed(testNow), discardLogger())

	outcome, err := svc.Enroll(context.Background(), "off-1", "s-100")
	assert.ErrorIs(t, err, repository.ErrAlreadyEnrolled)
	assert.Empty(t, outcome)
}

func TestEnrollBusinessErrorsPassThrough(t *testing.T) {
	cases := []struct {
		name      string
		enrollErr error
		joinErr   error
		want      error
	}{
		{name: "already enrolled", enrollErr: repository.ErrAlreadyEnrolled, want: repository.ErrAlreadyEnrolled},
		{name: "unknown offering", enrollErr: repository.ErrNotFound, want: repository.ErrNotFound},
		{name: "already waitlisted", enrollErr: repository.ErrOfferingFull, joinErr: repository.ErrAlreadyWaitlisted, want: repository.ErrAlreadyWaitlisted},
		{name: "waitlist full", enrollErr: repository.ErrOfferingFull, joinErr: repository.ErrWaitlistFull, want: repository.ErrWaitlistFull},
		{name: "waitlist limit", enrollErr: repository.ErrOfferingFull, joinErr: repository.ErrWaitlistLimit, want: repository.ErrWaitlistLimit},
		{name: "conflict exhausted", enrollErr: repository.ErrConflict, want: repository.ErrConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			enrollments := &fakeEnrollmentStore{
				enrollFn: func(ctx context.Context, offeringID, studentID string, now time.Time) error {
					return tc.enrollErr
				},
			}
			waitlist := &fakeWaitlistStore{
				joinFn: func(ctx context.Context, offeringID, studentID string, score int64) error {
					return tc.joinErr
				},
			}
			svc := NewEnrollmentService(enrollments, waitlist, &fakePolicyStore{}, &fakePromoter{}, clock.NewFixed(testNow), discardLogger())

			_, err := svc.Enroll(context.Background(), "off-1", "s-100")
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestEnrollRequiresIDs(t *testing.T) {
	svc := NewEnrollmentService(&fakeEnrollmentStore{}, &fakeWaitlistStore{}, &fakePolicyStore{}, &fakePromoter{}, clock.NewFixed(testNow), discardLogger())

	_, err := svc.Enroll(context.Background(), "", "s-100")
	assert.Error(t, err)

	_, err = svc.Enroll(context.Background(), "off-1", "")
	assert.Error(t, err)
}

func TestDropTriggersPromotionWhenPolicyEnabled(t *testing.T) {
	enrollments := &fakeEnrollmentStore{
		dropFn: func(ctx context.Context, offeringID, studentID string, administrative bool, now time.Time) error {
			assert.False(t, administrative)
			return nil
		},
	}
	promoter := &fakePromoter{count: 1}
	svc := NewEnrollmentService(enrollments, &fakeWaitlistStore{}, &fakePolicyStore{enabled: true}, promoter, clock.NewFixed(testNow), discardLogger())

	require.NoError(t, svc.Drop(context.Background(), "off-1", "s-100", false))
	require.Len(t, promoter.calls, 1)
	assert.Equal(t, []string{"off-1"}, promoter.calls[0])
}

func TestDropSkipsPromotionWhenPolicyDisabled(t *testing.T) {
	enrollments := &fakeEnrollmentStore{
		dropFn: func(ctx context.Context, offeringID, studentID string, administrative bool, now time.Time) error {
			return nil
		},
	}
	promoter := &fakePromoter{}
	svc := NewEnrollmentService(enrollments, &fakeWaitlistStore{}, &fakePolicyStore{enabled: false}, promoter, clock.NewFixed(testNow), discardLogger())

	require.NoError(t, svc.Drop(context.Background(), "off-1", "s-100", false))
	assert.Empty(t, promoter.calls)
}

func TestDropSucceedsWhenPromotionFails(t *testing.T) {
	enrollments := &fakeEnrollmentStore{
		dropFn: func(ctx context.Context, offeringID, studentID string, administrative bool, now time.Time) error {
			return nil
		},
	}
	promoter := &fakePromoter{err: errors.New("broker down")}
	svc := NewEnrollmentService(enrollments, &fakeWaitlistStore{}, &fakePolicyStore{enabled: true}, promoter, clock.NewFixed(testNow), discardLogger())

	// The drop has committed; a failed promotion pass must not surface.
	assert.NoError(t, svc.Drop(context.Background(), "off-1", "s-100", false))
}

func TestDropNotEnrolled(t *testing.T) {
	enrollments := &fakeEnrollmentStore{
		dropFn: func(ctx context.Context, offeringID, studentID string, administrative bool, now time.Time) error {
			return repository.ErrNotEnrolled
		},
	}
	promoter := &fakePromoter{}
	svc := NewEnrollmentService(enrollments, &fakeWaitlistStore{}, &fakePolicyStore{enabled: true}, promoter, clock.NewFixed(testNow), discardLogger())

	err := svc.Drop(context.Background(), "off-1", "s-100", false)
	assert.ErrorIs(t, err, repository.ErrNotEnrolled)
	assert.Empty(t, promoter.calls, "a failed drop must not trigger promotion")
}

func TestAdministrativeDropFlagReachesStore(t *testing.T) {
	var gotAdministrative bool
	enrollments := &fakeEnrollmentStore{
		dropFn: func(ctx context.Context, offeringID, studentID string, administrative bool, now time.Time) error {
			gotAdministrative = administrative
			return nil
		},
	}
	svc := NewEnrollmentService(enrollments, &fakeWaitlistStore{}, &fakePolicyStore{}, &fakePromoter{}, clock.NewFixed(testNow), discardLogger())

	require.NoError(t, svc.Drop(context.Background(), "off-1", "s-100", true))
	assert.True(t, gotAdministrative)
}

func TestWaitlistPosition(t *testing.T) {
	waitlist := &fakeWaitlistStore{
		rankFn: func(ctx context.Context, offeringID, studentID string) (int, error) {
			return 2, nil
		},
	}
	svc := NewEnrollmentService(&fakeEnrollmentStore{}, waitlist, &fakePolicyStore{}, &fakePromoter{}, clock.NewFixed(testNow), discardLogger())

	pos, err := svc.WaitlistPosition(context.Background(), "off-1", "s-100")
	require.NoError(t, err)
	assert.Equal(t, 2, pos)
}

func TestLeaveWaitlistNotWaitlisted(t *testing.T) {
	waitlist := &fakeWaitlistStore{
		removeFn: func(ctx context.Context, offeringID, studentID string) error {
			return repository.ErrNotWaitlisted
		},
	}
	svc := NewEnrollmentService(&fakeEnrollmentStore{}, waitlist, &fakePolicyStore{}, &fakePromoter{}, clock.NewFixed(testNow), discardLogger())

	err := svc.LeaveWaitlist(context.Background(), "off-1", "s-100")
	assert.ErrorIs(t, err, repository.ErrNotWaitlisted)
}
