package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/campushub/class-enrollment/internal/clock"
	"github.com/campushub/class-enrollment/internal/model"
	"github.com/campushub/class-enrollment/internal/repository"
)

// PromotionStore is the atomic per-offering promotion transaction plus
// the open-offerings index used by sweeps.
type PromotionStore interface {
	PromoteOffering(ctx context.Context, offeringID string, now time.Time) (model.PromotionResult, error)
	OpenOfferingIDs(ctx context.Context) ([]string, error)
}

// EventEmitter publishes one event per committed promotion.
type EventEmitter interface {
	Emit(ctx context.Context, offeringID, studentID string) error
}

// PromotionEngine drains waitlists into freed seats. It is invoked with a
// single offering after a drop, and over all open offerings when the
// auto-enrollment policy is switched on.
type PromotionEngine struct {
	store   PromotionStore
	emitter EventEmitter
	clock   clock.Clock
	logger  *log.Logger
}

// NewPromotionEngine constructs a PromotionEngine.
func NewPromotionEngine(store PromotionStore, emitter EventEmitter, clk clock.Clock, logger *log.Logger) *PromotionEngine {
	if logger == nil {
		logger = log.Default()
	}
	return &PromotionEngine{store: store, emitter: emitter, clock: clk, logger: logger}
}

// Promote runs one promotion transaction per offering and returns how
// many students were actually promoted across all of them. Each
// transaction recomputes its open-seat count under the offering row lock,
// so counts are never reused across sweeps. Offerings that fail leave the
// others untouched; the first failure is reported alongside the partial
// count.
//
// Notification events are emitted strictly after each transaction has
// committed, and emission failures never roll a promotion back.
func (e *PromotionEngine) Promote(ctx context.Context, offeringIDs ...string) (int, error) {
	total := 0
	var firstErr error

	for _, offeringID := range offeringIDs {
		result, err := e.store.PromoteOffering(ctx, offeringID, e.clock.Now())
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			e.logger.Printf("promote offering=%s: %v", offeringID, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("promote offering %s: %w", offeringID, err)
			}
			continue
		}
		if result.Conflicts > 0 {
			e.logger.Printf("promote offering=%s: %d popped entries conflicted and were not re-queued",
				offeringID, result.Conflicts)
		}

		total += len(result.Promoted)
		for _, entry := range result.Promoted {
			if err := e.emitter.Emit(ctx, entry.OfferingID, entry.StudentID); err != nil {
				e.logger.Printf("emit promotion offering=%s student=%s: %v",
					entry.OfferingID, entry.StudentID, err)
			}
		}
	}
	return total, firstErr
}

// Sweep promotes across every offering currently below capacity.
func (e *PromotionEngine) Sweep(ctx context.Context) (int, error) {
	ids, err := e.store.OpenOfferingIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list open offerings: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return e.Promote(ctx, ids...)
}
