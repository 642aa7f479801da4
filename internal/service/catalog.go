package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/campushub/class-enrollment/internal/clock"
	"github.com/campushub/class-enrollment/internal/model"
	"github.com/campushub/class-enrollment/internal/repository"
)

// OfferingStore handles offering administration and read views.
type OfferingStore interface {
	Create(ctx context.Context, req model.CreateOfferingRequest, now time.Time) (*model.Offering, error)
	GetByID(ctx context.Context, id string) (*model.Offering, error)
	List(ctx context.Context) ([]model.Offering, error)
	ListAvailable(ctx context.Context, studentID string) ([]model.Offering, error)
	Delete(ctx context.Context, id string) error
}

// RosterStore exposes the per-offering read views owned by the ledger.
type RosterStore interface {
	Roster(ctx context.Context, offeringID string) ([]model.Enrollment, error)
	Droplist(ctx context.Context, offeringID string) ([]model.DropRecord, error)
}

// Sweeper runs a promotion pass over all open offerings.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// CatalogService covers offering administration, instructor views and the
// auto-enrollment policy toggle.
type CatalogService struct {
	offerings OfferingStore
	roster    RosterStore
	waitlist  WaitlistStore
	policy    PolicyStore
	sweeper   Sweeper
	clock     clock.Clock
	logger    *log.Logger
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(
	offerings OfferingStore,
	roster RosterStore,
	waitlist WaitlistStore,
	policy PolicyStore,
	sweeper Sweeper,
	clk clock.Clock,
	logger *log.Logger,
) *CatalogService {
	if logger == nil {
		logger = log.Default()
	}
	return &CatalogService{
		offerings: offerings,
		roster:    roster,
		waitlist:  waitlist,
		policy:    policy,
		sweeper:   sweeper,
		clock:     clk,
		logger:    logger,
	}
}

// CreateOffering validates the request and delegates to the repository.
func (s *CatalogService) CreateOffering(ctx context.Context, req model.CreateOfferingRequest) (*model.Offering, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Term = strings.TrimSpace(req.Term)
	req.SectionNo = strings.TrimSpace(req.SectionNo)
	if req.Title == "" {
		return nil, fmt.Errorf("offering title is required")
	}
	if req.Term == "" {
		return nil, fmt.Errorf("term is required")
	}
	if req.SectionNo == "" {
		return nil, fmt.Errorf("section number is required")
	}
	if req.Capacity <= 0 {
		return nil, fmt.Errorf("capacity must be a positive integer")
	}
	if req.Capacity > 10_000 {
		return nil, fmt.Errorf("capacity cannot exceed 10,000")
	}
	return s.offerings.Create(ctx, req, s.clock.Now())
}

// GetOffering returns a single offering by ID.
func (s *CatalogService) GetOffering(ctx context.Context, id string) (*model.Offering, error) {
	if id == "" {
		return nil, fmt.Errorf("offering id is required")
	}
	return s.offerings.GetByID(ctx, id)
}

// ListOfferings returns all offerings.
func (s *CatalogService) ListOfferings(ctx context.Context) ([]model.Offering, error) {
	return s.offerings.List(ctx)
}

// ListAvailable returns open-seat offerings the student neither holds a
// seat in nor waits on.
func (s *CatalogService) ListAvailable(ctx context.Context, studentID string) ([]model.Offering, error) {
	return s.offerings.ListAvailable(ctx, studentID)
}

// DeleteOffering removes an offering administratively.
func (s *CatalogService) DeleteOffering(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("offering id is required")
	}
	return s.offerings.Delete(ctx, id)
}

// Roster returns the offering's current enrollments.
func (s *CatalogService) Roster(ctx context.Context, offeringID string) ([]model.Enrollment, error) {
	if _, err := s.offerings.GetByID(ctx, offeringID); err != nil {
		return nil, err
	}
	return s.roster.Roster(ctx, offeringID)
}

// Waitlist returns the offering's queue in promotion order.
func (s *CatalogService) Waitlist(ctx context.Context, offeringID string) ([]model.WaitlistEntry, error) {
	if _, err := s.offerings.GetByID(ctx, offeringID); err != nil {
		return nil, err
	}
	return s.waitlist.Entries(ctx, offeringID)
}

// Droplist returns the offering's drop audit trail.
func (s *CatalogService) Droplist(ctx context.Context, offeringID string) ([]model.DropRecord, error) {
	if _, err := s.offerings.GetByID(ctx, offeringID); err != nil {
		return nil, err
	}
	return s.roster.Droplist(ctx, offeringID)
}

// AutoEnrollment reports the current policy flag.
func (s *CatalogService) AutoEnrollment(ctx context.Context) (bool, error) {
	return s.policy.AutoEnrollEnabled(ctx)
}

// SetAutoEnrollment flips the policy flag. Enabling it immediately runs a
// promotion sweep over all offerings with open seats; the number of
// students promoted by that sweep is returned. The store reports whether
// the flag actually changed in the same statement that writes it, so of
// two concurrent enables exactly one runs the sweep.
func (s *CatalogService) SetAutoEnrollment(ctx context.Context, enabled bool) (int, error) {
	changed, err := s.policy.SetAutoEnroll(ctx, enabled)
	if err != nil {
		return 0, err
	}
	if !changed || !enabled {
		return 0, nil
	}

	promoted, err := s.sweeper.Sweep(ctx)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Printf("sweep after enabling auto-enrollment: %v", err)
	}
	return promoted, nil
}
