// Package model defines the core domain types for the enrollment system.
package model

import "time"

// Offering represents a capacity-bounded class section that students
// compete to hold a seat in.
type Offering struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Term            string    `json:"term"`
	SectionNo       string    `json:"section_no"`
	Instructor      string    `json:"instructor"`
	Capacity        int       `json:"capacity"`
	EnrollmentCount int       `json:"enrollment_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// OpenSeats returns the number of seats still available.
func (o *Offering) OpenSeats() int {
	return o.Capacity - o.EnrollmentCount
}

// Available reports whether at least one seat remains. It is derived from
// the counters rather than stored, so it can never drift from them.
func (o *Offering) Available() bool {
	return o.EnrollmentCount < o.Capacity
}

// Enrollment represents a student holding a seat in an offering.
// Its existence is the single source of truth for seat ownership.
type Enrollment struct {
	OfferingID string    `json:"offering_id"`
	StudentID  string    `json:"student_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// WaitlistEntry is one student's position in an offering's waitlist.
// Score is fixed at enqueue time (wall-clock milliseconds) and strictly
// orders the queue; ties break by student id ascending.
type WaitlistEntry struct {
	OfferingID string `json:"offering_id"`
	StudentID  string `json:"student_id"`
	Score      int64  `json:"score"`
}

// DropRecord is an append-only audit row written when a seat is given up.
type DropRecord struct {
	ID             string    `json:"id"`
	OfferingID     string    `json:"offering_id"`
	StudentID      string    `json:"student_id"`
	Administrative bool      `json:"administrative"`
	DroppedAt      time.Time `json:"dropped_at"`
}

// Subscription holds a waitlisted student's notification targets for one
// offering. At least one of Email or WebhookURL is set.
type Subscription struct {
	OfferingID string    `json:"offering_id"`
	StudentID  string    `json:"student_id"`
	Email      string    `json:"email,omitempty"`
	WebhookURL string    `json:"webhook_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// EnrollOutcome tags a successful enrollment attempt.
type EnrollOutcome string

const (
	// OutcomeEnrolled means the student now holds a seat.
	OutcomeEnrolled EnrollOutcome = "enrolled"
	// OutcomeWaitlisted means the offering was full and the student was
	// placed on the waitlist instead.
	OutcomeWaitlisted EnrollOutcome = "waitlisted"
)

// PromotionResult summarises one offering's promotion transaction.
type PromotionResult struct {
	// Promoted lists the waitlist entries that were converted into
	// enrollments, in queue order.
	Promoted []WaitlistEntry
	// Conflicts counts popped entries whose ledger insert was rejected by
	// the duplicate-key condition. They are not re-queued.
	Conflicts int
}

// CreateOfferingRequest is the payload for creating a new offering.
type CreateOfferingRequest struct {
	Title      string `json:"title"`
	Term       string `json:"term"`
	SectionNo  string `json:"section_no"`
	Instructor string `json:"instructor"`
	Capacity   int    `json:"capacity"`
}

// SubscribeRequest is the payload for subscribing to promotion
// notifications. At least one target must be provided.
type SubscribeRequest struct {
	Email      string `json:"email,omitempty"`
	WebhookURL string `json:"webhook_url,omitempty"`
}

// PolicyRequest is the payload for toggling the auto-enrollment policy.
type PolicyRequest struct {
	AutoEnrollmentEnabled bool `json:"auto_enrollment_enabled"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
