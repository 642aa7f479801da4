package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/campushub/class-enrollment/internal/notify"
)

// Dispatcher delivers a promotion notification over the channels named in
// the event. Email delivery is logged only; SMTP wiring is deployment
// specific and sits behind the same interface.
type Dispatcher struct {
	logger *log.Logger
	client *http.Client
}

// NewDispatcher constructs a Dispatcher. A nil logger falls back to the
// standard logger; timeout bounds each webhook call.
func NewDispatcher(logger *log.Logger, timeout time.Duration) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		logger: logger,
		client: &http.Client{Timeout: timeout},
	}
}

// Handle delivers the event to every target it names. A webhook failure
// triggers redelivery of the whole event; email sends must therefore be
// idempotent.
func (d *Dispatcher) Handle(ctx context.Context, event notify.Event) error {
	if event.Email != "" {
		d.logger.Printf("notifier: email to=%s offering=%s student=%s seat opened, you are enrolled",
			event.Email, event.OfferingID, event.StudentID)
	}
	if event.WebhookURL != "" {
		if err := d.postWebhook(ctx, event); err != nil {
			return fmt.Errorf("webhook %s: %w", event.WebhookURL, err)
		}
		d.logger.Printf("notifier: webhook delivered url=%s offering=%s student=%s",
			event.WebhookURL, event.OfferingID, event.StudentID)
	}
	return nil
}

func (d *Dispatcher) postWebhook(ctx context.Context, event notify.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, event.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
