// Package notify publishes promotion events to a fan-out exchange.
// Delivery to downstream consumers (mail, webhooks) is their concern;
// the core only guarantees one event per committed promotion.
package notify

// EventTypePromoted tags the event published when a waitlisted student
// gains a seat.
const EventTypePromoted = "Promoted"

// Event is the record published per promotion. Email and WebhookURL are
// copied from the student's subscription so consumers need no store
// access to deliver.
type Event struct {
	EventType  string `json:"event_type"`
	OfferingID string `json:"offering_id"`
	StudentID  string `json:"student_id"`
	Email      string `json:"email,omitempty"`
	WebhookURL string `json:"webhook_url,omitempty"`
}
