package service

import (
	"context"
	"time"

	"github.com/campushub/class-enrollment/internal/model"
)

// Function-field fakes so each test scripts exactly the store behavior it
// needs.

type fakeEnrollmentStore struct {
	enrollFn func(ctx context.Context, offeringID, studentID string, now time.Time) error
	dropFn   func(ctx context.Context, offeringID, studentID string, administrative bool, now time.Time) error
}

func (f *fakeEnrollmentStore) Enroll(ctx context.Context, offeringID, studentID string, now time.Time) error {
	return f.enrollFn(ctx, offeringID, studentID, now)
}

func (f *fakeEnrollmentStore) Drop(ctx context.Context, offeringID, studentID string, administrative bool, now time.Time) error {
	return f.dropFn(ctx, offeringID, studentID, administrative, now)
}

type fakeWaitlistStore struct {
	joinFn    func(ctx context.Context, offeringID, studentID string, score int64) error
	rankFn    func(ctx context.Context, offeringID, studentID string) (int, error)
	removeFn  func(ctx context.Context, offeringID, studentID string) error
	entriesFn func(ctx context.Context, offeringID string) ([]model.WaitlistEntry, error)
}

func (f *fakeWaitlistStore) Join(ctx context.Context, offeringID, studentID string, score int64) error {
	return f.joinFn(ctx, offeringID, studentID, score)
}

func (f *fakeWaitlistStore) Rank(ctx context.Context, offeringID, studentID string) (int, error) {
	return f.rankFn(ctx, offeringID, studentID)
}

func (f *fakeWaitlistStore) Remove(ctx context.Context, offeringID, studentID string) error {
	return f.removeFn(ctx, offeringID, studentID)
}

func (f *fakeWaitlistStore) Entries(ctx context.Context, offeringID string) ([]model.WaitlistEntry, error) {
	return f.entriesFn(ctx, offeringID)
}

type fakePolicyStore struct {
	enabled bool
	readErr error
	setErr  error
	sets    []bool
}

func (f *fakePolicyStore) AutoEnrollEnabled(ctx context.Context) (bool, error) {
	return f.enabled, f.readErr
}

func (f *fakePolicyStore) SetAutoEnroll(ctx context.Context, enabled bool) (bool, error) {
	if f.setErr != nil {
		return false, f.setErr
	}
	changed := f.enabled != enabled
	f.enabled = enabled
	if changed {
		f.sets = append(f.sets, enabled)
	}
	return changed, nil
}

type fakePromoter struct {
	calls [][]string
	count int
	err   error
}

func (f *fakePromoter) Promote(ctx context.Context, offeringIDs ...string) (int, error) {
	f.calls = append(f.calls, offeringIDs)
	return f.count, f.err
}

type fakePromotionStore struct {
	results map[string]model.PromotionResult
	errs    map[string]error
	openIDs []string
	openErr error
	calls   []string
}

func (f *fakePromotionStore) PromoteOffering(ctx context.Context, offeringID string, now time.Time) (model.PromotionResult, error) {
	f.calls = append(f.calls, offeringID)
	if err, ok := f.errs[offeringID]; ok {
		return model.PromotionResult{}, err
	}
	return f.results[offeringID], nil
}

func (f *fakePromotionStore) OpenOfferingIDs(ctx context.Context) ([]string, error) {
	return f.openIDs, f.openErr
}

type emittedEvent struct {
	offeringID string
	studentID  string
}

type fakeEmitter struct {
	events []emittedEvent
	err    error
}

func (f *fakeEmitter) Emit(ctx context.Context, offeringID, studentID string) error {
	f.events = append(f.events, emittedEvent{offeringID: offeringID, studentID: studentID})
	return f.err
}

type fakeOfferingStore struct {
	createFn func(ctx context.Context, req model.CreateOfferingRequest, now time.Time) (*model.Offering, error)
	getFn    func(ctx context.Context, id string) (*model.Offering, error)
	listFn   func(ctx context.Context) ([]model.Offering, error)
	availFn  func(ctx context.Context, studentID string) ([]model.Offering, error)
	deleteFn func(ctx context.Context, id string) error
}

func (f *fakeOfferingStore) Create(ctx context.Context, req model.CreateOfferingRequest, now time.Time) (*model.Offering, error) {
	return f.createFn(ctx, req, now)
}

func (f *fakeOfferingStore) GetByID(ctx context.Context, id string) (*model.Offering, error) {
	return f.getFn(ctx, id)
}

func (f *fakeOfferingStore) List(ctx context.Context) ([]model.Offering, error) {
	return f.listFn(ctx)
}

func (f *fakeOfferingStore) ListAvailable(ctx context.Context, studentID string) ([]model.Offering, error) {
	return f.availFn(ctx, studentID)
}

func (f *fakeOfferingStore) Delete(ctx context.Context, id string) error {
	return f.deleteFn(ctx, id)
}

type fakeRosterStore struct {
	rosterFn   func(ctx context.Context, offeringID string) ([]model.Enrollment, error)
	droplistFn func(ctx context.Context, offeringID string) ([]model.DropRecord, error)
}

func (f *fakeRosterStore) Roster(ctx context.Context, offeringID string) ([]model.Enrollment, error) {
	return f.rosterFn(ctx, offeringID)
}

func (f *fakeRosterStore) Droplist(ctx context.Context, offeringID string) ([]model.DropRecord, error) {
	return f.droplistFn(ctx, offeringID)
}

type fakeSweeper struct {
	count int
	err   error
	calls int
}

func (f *fakeSweeper) Sweep(ctx context.Context) (int, error) {
	f.calls++
	return f.count, f.err
}

type fakeSubscriptionStore struct {
	subscribeFn func(ctx context.Context, sub model.Subscription) error
	listFn      func(ctx context.Context, studentID string) ([]model.Subscription, error)
	deleteFn    func(ctx context.Context, offeringID, studentID string) error
}

func (f *fakeSubscriptionStore) Subscribe(ctx context.Context, sub model.Subscription) error {
	return f.subscribeFn(ctx, sub)
}

func (f *fakeSubscriptionStore) ListByStudent(ctx context.Context, studentID string) ([]model.Subscription, error) {
	return f.listFn(ctx, studentID)
}

func (f *fakeSubscriptionStore) Delete(ctx context.Context, offeringID, studentID string) error {
	return f.deleteFn(ctx, offeringID, studentID)
}
