package repository

import "errors"

// Expected business outcomes. These are returned as typed values, never
// logged as errors; handlers map them onto HTTP statuses.
var (
	// ErrNotFound is returned when a requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrOfferingFull signals that an offering has no open seats. The
	// enrollment service reacts by attempting a waitlist join.
	ErrOfferingFull = errors.New("offering is full")

	// ErrAlreadyEnrolled is returned when the student already holds a seat.
	ErrAlreadyEnrolled = errors.New("already enrolled in this offering")

	// ErrNotEnrolled is returned when dropping a seat the student does not
	// hold, including the second of two concurrent drops.
	ErrNotEnrolled = errors.New("not enrolled in this offering")

	// ErrAlreadyWaitlisted is returned when the student is already on this
	// offering's waitlist.
	ErrAlreadyWaitlisted = errors.New("already on the waitlist")

	// ErrNotWaitlisted is returned when the student has no entry on this
	// offering's waitlist.
	ErrNotWaitlisted = errors.New("not on the waitlist")

	// ErrWaitlistFull is returned when the offering's waitlist has reached
	// its configured size bound.
	ErrWaitlistFull = errors.New("waitlist is full")

	// ErrWaitlistLimit is returned when the student already holds the
	// maximum number of concurrent waitlist memberships.
	ErrWaitlistLimit = errors.New("waitlist limit per student exceeded")

	// ErrDuplicateOffering is returned when an offering with the same term,
	// title and section already exists.
	ErrDuplicateOffering = errors.New("offering already exists")

	// ErrAlreadySubscribed is returned on a duplicate notification
	// subscription for the same (offering, student) pair.
	ErrAlreadySubscribed = errors.New("already subscribed")

	// ErrNotSubscribed is returned when unsubscribing without an active
	// subscription.
	ErrNotSubscribed = errors.New("not subscribed")

	// ErrConflict is returned when the store cancelled a transaction due to
	// concurrent modification and the bounded retries were exhausted.
	ErrConflict = errors.New("conflicting concurrent modification")
)
