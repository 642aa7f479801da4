package notify

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/class-enrollment/internal/model"
)

type fakeLookup struct {
	subs    map[string]*model.Subscription
	findErr error
	delErr  error
	deleted []string
}

func key(offeringID, studentID string) string { return offeringID + "/" + studentID }

func (f *fakeLookup) Find(ctx context.Context, offeringID, studentID string) (*model.Subscription, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.subs[key(offeringID, studentID)], nil
}

func (f *fakeLookup) Delete(ctx context.Context, offeringID, studentID string) error {
	if f.delErr != nil {
		return f.delErr
	}
	f.deleted = append(f.deleted, key(offeringID, studentID))
	delete(f.subs, key(offeringID, studentID))
	return nil
}

type capturePublisher struct {
	published []any
	err       error
}

func (p *capturePublisher) PublishJSON(_ context.Context, v any) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, v)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func testEmitter(subs *fakeLookup, pub *capturePublisher) *Emitter {
	return NewEmitter(subs, pub, log.New(io.Discard, "", 0))
}

func TestEmitWithoutSubscriptionIsANoop(t *testing.T) {
	pub := &capturePublisher{}
	e := testEmitter(&fakeLookup{subs: map[string]*model.Subscription{}}, pub)

	require.NoError(t, e.Emit(context.Background(), "off-1", "s-100"))
	assert.Empty(t, pub.published)
}

func TestEmitPublishesSubscriptionTargets(t *testing.T) {
	lookup := &fakeLookup{subs: map[string]*model.Subscription{
		key("off-1", "s-100"): {
			OfferingID: "off-1",
			StudentID:  "s-100",
			Email:      "s100@example.edu",
			WebhookURL: "https://hooks.example.com/x",
		},
	}}
	pub := &capturePublisher{}
	e := testEmitter(lookup, pub)

	require.NoError(t, e.Emit(context.Background(), "off-1", "s-100"))
	require.Len(t, pub.published, 1)
	assert.Equal(t, Event{
		EventType:  EventTypePromoted,
		OfferingID: "off-1",
		StudentID:  "s-100",
		Email:      "s100@example.edu",
		WebhookURL: "https://hooks.example.com/x",
	}, pub.published[0])
}

func TestEmitRetiresSubscriptionAfterPublish(t *testing.T) {
	lookup := &fakeLookup{subs: map[string]*model.Subscription{
		key("off-1", "s-100"): {OfferingID: "off-1", StudentID: "s-100", Email: "s100@example.edu"},
	}}
	pub := &capturePublisher{}
	e := testEmitter(lookup, pub)

	require.NoError(t, e.Emit(context.Background(), "off-1", "s-100"))
	assert.Equal(t, []string{"off-1/s-100"}, lookup.deleted)

	// A second promotion of the same pair finds nothing and stays silent.
	require.NoError(t, e.Emit(context.Background(), "off-1", "s-100"))
	assert.Len(t, pub.published, 1)
}

func TestEmitKeepsSubscriptionOnPublishFailure(t *testing.T) {
	lookup := &fakeLookup{subs: map[string]*model.Subscription{
		key("off-1", "s-100"): {OfferingID: "off-1", StudentID: "s-100", Email: "s100@example.edu"},
	}}
	pub := &capturePublisher{err: errors.New("broker unavailable")}
	e := testEmitter(lookup, pub)

	err := e.Emit(context.Background(), "off-1", "s-100")
	assert.Error(t, err)
	assert.Empty(t, lookup.deleted, "a failed publish must not retire the subscription")
}

func TestEmitToleratesRetireFailure(t *testing.T) {
	lookup := &fakeLookup{
		subs: map[string]*model.Subscription{
			key("off-1", "s-100"): {OfferingID: "off-1", StudentID: "s-100", Email: "s100@example.edu"},
		},
		delErr: errors.New("connection reset"),
	}
	pub := &capturePublisher{}
	e := testEmitter(lookup, pub)

	require.NoError(t, e.Emit(context.Background(), "off-1", "s-100"))
	assert.Len(t, pub.published, 1)
}
