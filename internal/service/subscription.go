package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/campushub/class-enrollment/internal/clock"
	"github.com/campushub/class-enrollment/internal/model"
)

// SubscriptionStore persists notification subscriptions.
type SubscriptionStore interface {
	Subscribe(ctx context.Context, sub model.Subscription) error
	ListByStudent(ctx context.Context, studentID string) ([]model.Subscription, error)
	Delete(ctx context.Context, offeringID, studentID string) error
}

// SubscriptionService manages promotion-notification subscriptions.
type SubscriptionService struct {
	subs  SubscriptionStore
	clock clock.Clock
}

// NewSubscriptionService constructs a SubscriptionService.
func NewSubscriptionService(subs SubscriptionStore, clk clock.Clock) *SubscriptionService {
	return &SubscriptionService{subs: subs, clock: clk}
}

// Subscribe registers notification targets for a waitlisted student. The
// store rejects the subscription when the student is not on the
// offering's waitlist.
func (s *SubscriptionService) Subscribe(ctx context.Context, offeringID, studentID string, req model.SubscribeRequest) (*model.Subscription, error) {
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.WebhookURL = strings.TrimSpace(req.WebhookURL)
	if req.Email == "" && req.WebhookURL == "" {
		return nil, fmt.Errorf("email and/or webhook_url is required")
	}
	if req.Email != "" && !isValidEmail(req.Email) {
		return nil, fmt.Errorf("email is not a valid email address")
	}
	if req.WebhookURL != "" && !strings.HasPrefix(req.WebhookURL, "http") {
		return nil, fmt.Errorf("webhook_url must be an http(s) URL")
	}

	sub := model.Subscription{
		OfferingID: offeringID,
		StudentID:  studentID,
		Email:      req.Email,
		WebhookURL: req.WebhookURL,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.subs.Subscribe(ctx, sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// List returns all of the student's subscriptions.
func (s *SubscriptionService) List(ctx context.Context, studentID string) ([]model.Subscription, error) {
	return s.subs.ListByStudent(ctx, studentID)
}

// Unsubscribe removes the student's subscription for one offering.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, offeringID, studentID string) error {
	return s.subs.Delete(ctx, offeringID, studentID)
}

// isValidEmail does a basic structural check on the address.
func isValidEmail(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	return len(parts[0]) > 0 && strings.Contains(parts[1], ".")
}
