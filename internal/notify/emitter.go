package notify

import (
	"context"
	"log"

	"github.com/campushub/class-enrollment/internal/model"
)

// SubscriptionLookup resolves and retires notification subscriptions.
type SubscriptionLookup interface {
	Find(ctx context.Context, offeringID, studentID string) (*model.Subscription, error)
	Delete(ctx context.Context, offeringID, studentID string) error
}

// Emitter publishes one Promoted event per committed promotion. It is
// called strictly after the store transaction commits and is best-effort:
// a publish failure is logged, never propagated back into the promotion
// path.
type Emitter struct {
	subs   SubscriptionLookup
	pub    Publisher
	logger *log.Logger
}

// NewEmitter constructs an Emitter. A nil logger falls back to the
// default logger.
func NewEmitter(subs SubscriptionLookup, pub Publisher, logger *log.Logger) *Emitter {
	if logger == nil {
		logger = log.Default()
	}
	return &Emitter{subs: subs, pub: pub, logger: logger}
}

// Emit publishes the promotion event for one student. Without a
// subscription it is a no-op. The subscription is one-shot: it is retired
// after a successful publish so a later promotion of the same pair cannot
// notify twice.
func (e *Emitter) Emit(ctx context.Context, offeringID, studentID string) error {
	sub, err := e.subs.Find(ctx, offeringID, studentID)
	if err != nil {
		return err
	}
	if sub == nil {
		return nil
	}

	event := Event{
		EventType:  EventTypePromoted,
		OfferingID: offeringID,
		StudentID:  studentID,
		Email:      sub.Email,
		WebhookURL: sub.WebhookURL,
	}
	if err := e.pub.PublishJSON(ctx, event); err != nil {
		return err
	}

	if err := e.subs.Delete(ctx, offeringID, studentID); err != nil {
		e.logger.Printf("retire subscription offering=%s student=%s: %v", offeringID, studentID, err)
	}
	return nil
}
