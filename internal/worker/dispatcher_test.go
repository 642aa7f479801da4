package worker

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/class-enrollment/internal/notify"
)

func testDispatcher() *Dispatcher {
	return NewDispatcher(log.New(io.Discard, "", 0), time.Second)
}

func TestDispatcherPostsWebhook(t *testing.T) {
	var received notify.Event
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	event := notify.Event{
		EventType:  notify.EventTypePromoted,
		OfferingID: "off-1",
		StudentID:  "s-100",
		WebhookURL: server.URL,
	}
	require.NoError(t, testDispatcher().Handle(context.Background(), event))
	assert.Equal(t, event, received)
}

func TestDispatcherRejectsNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	event := notify.Event{
		EventType:  notify.EventTypePromoted,
		OfferingID: "off-1",
		StudentID:  "s-100",
		WebhookURL: server.URL,
	}
	assert.Error(t, testDispatcher().Handle(context.Background(), event))
}

func TestDispatcherEmailOnlySkipsHTTP(t *testing.T) {
	event := notify.Event{
		EventType:  notify.EventTypePromoted,
		OfferingID: "off-1",
		StudentID:  "s-100",
		Email:      "s100@example.edu",
	}
	assert.NoError(t, testDispatcher().Handle(context.Background(), event))
}

func delivery(body []byte) amqp.Delivery {
	return amqp.Delivery{Body: body}
}

type recordingHandler struct {
	events []notify.Event
	err    error
}

func (h *recordingHandler) Handle(ctx context.Context, event notify.Event) error {
	h.events = append(h.events, event)
	return h.err
}

func TestHandleDeliveryDecodesAndFilters(t *testing.T) {
	h := &recordingHandler{}
	c := NewConsumer(Config{Queue: "q"}, h)

	body, err := json.Marshal(notify.Event{
		EventType: notify.EventTypePromoted, OfferingID: "off-1", StudentID: "s-100",
	})
	require.NoError(t, err)
	require.NoError(t, c.handleDelivery(context.Background(), delivery(body)))
	require.Len(t, h.events, 1)
	assert.Equal(t, "off-1", h.events[0].OfferingID)

	// Undecodable and unknown-type payloads are dropped, not retried.
	require.NoError(t, c.handleDelivery(context.Background(), delivery([]byte("{not json"))))
	require.NoError(t, c.handleDelivery(context.Background(), delivery([]byte(`{"event_type":"Unknown"}`))))
	assert.Len(t, h.events, 1)
}
