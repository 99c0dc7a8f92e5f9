// Package advance rewrites the target of recurring user countdowns once the
// day of their current target has ended in the reference zone.
package advance

import (
	"context"
	"fmt"
	"time"

	"countdown/internal/clock"
	appLog "countdown/internal/log"
	"countdown/internal/model"
	"countdown/internal/recurrence"
	"countdown/internal/store"
)

// Updater is the part of the store the service writes through.
type Updater interface {
	Update(ctx context.Context, id string, patch store.Patch) (*model.Countdown, error)
}

// Lister supplies the records a sweep walks over.
type Lister interface {
	List(ctx context.Context) ([]model.Countdown, error)
}

type Service struct {
	store Updater
	clock clock.Clock
}

func NewService(u Updater, c clock.Clock) *Service {
	return &Service{store: u, clock: c}
}

// MaybeAdvance persists the next occurrence of c when its target day has
// passed and returns the stored record. It returns (nil, nil) when there is
// nothing to do, so a second call right after a successful one is a no-op.
// c is never modified; on a store error the caller keeps its old value.
func (s *Service) MaybeAdvance(ctx context.Context, c model.Countdown) (*model.Countdown, error) {
	return s.maybeAdvanceAt(ctx, c, s.clock.Now())
}

// AdvanceAll runs MaybeAdvance over cs with a single clock reading. The
// result has the same length and order as cs; only advanced entries are
// replaced. Per-record failures are collected and leave that entry as is.
func (s *Service) AdvanceAll(ctx context.Context, cs []model.Countdown) ([]model.Countdown, []error) {
	now := s.clock.Now()
	out := make([]model.Countdown, len(cs))
	var errs []error

	for i, c := range cs {
		out[i] = c
		updated, err := s.maybeAdvanceAt(ctx, c, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if updated != nil {
			out[i] = *updated
		}
	}
	return out, errs
}

// Sweep advances every stored countdown that is due and reports how many
// records were rewritten.
func (s *Service) Sweep(ctx context.Context, l Lister) (int, error) {
	cs, err := l.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing countdowns: %w", err)
	}
	out, errs := s.AdvanceAll(ctx, cs)

	advanced := 0
	for i := range out {
		if !out[i].TargetDate.Equal(cs[i].TargetDate) {
			advanced++
		}
	}
	for _, err := range errs {
		appLog.Error("auto-advance failed", err)
	}
	if len(errs) > 0 {
		return advanced, fmt.Errorf("auto-advance: %d of %d records failed: %w", len(errs), len(cs), errs[0])
	}
	return advanced, nil
}

func (s *Service) maybeAdvanceAt(ctx context.Context, c model.Countdown, now time.Time) (*model.Countdown, error) {
	if !c.IsRecurring || c.Recurrence == nil {
		return nil, nil
	}
	if !clock.HasPassedEndOfDay(now, c.TargetDate) {
		return nil, nil
	}

	occ, err := recurrence.NextUserOccurrence(*c.Recurrence, now)
	if err != nil {
		appLog.Warn("cannot resolve next occurrence, keeping target",
			"id", c.ID, "type", c.Recurrence.Type, "err", err)
		return nil, nil
	}

	rec := c.Clone().Recurrence
	stamp := now
	rec.LastAutoAdvanced = &stamp
	target := occ.TargetDate

	updated, err := s.store.Update(ctx, c.ID, store.Patch{TargetDate: &target, Recurrence: rec})
	if err != nil {
		return nil, fmt.Errorf("advancing countdown %s: %w", c.ID, err)
	}
	if updated == nil {
		return nil, fmt.Errorf("advancing countdown %s: %w", c.ID, store.ErrNotFound)
	}

	kv := []any{"id", c.ID, "from", clock.Format(c.TargetDate), "to", clock.Format(updated.TargetDate)}
	if occ.WasAdjusted {
		kv = append(kv, "adjusted_from", clock.Format(*occ.AdjustedFrom))
	}
	appLog.Info("countdown auto-advanced", kv...)
	return updated, nil
}
