package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"github.com/goodtune/onlinelimiter/internal/storage"
	"github.com/rs/zerolog"
)

// Budget reads and writes the persisted countdown.
type Budget struct {
	store   storage.BudgetStore
	allowed time.Duration
	clock   quartz.Clock
	logger  zerolog.Logger
}

// NewBudget creates a budget over store with a daily allowance of allowed.
func NewBudget(store storage.BudgetStore, allowed time.Duration, clock quartz.Clock, logger zerolog.Logger) *Budget {
	return &Budget{
		store:   store,
		allowed: allowed,
		clock:   clock,
		logger:  logger.With().Str("component", "budget").Logger(),
	}
}

// Allowed returns the daily allowance.
func (b *Budget) Allowed() time.Duration {
	return b.allowed
}

// Load returns the remaining budget for today. A missing, empty or corrupt
// slot yields the full allowance. A slot last written before today's local
// midnight is stale: the full allowance is persisted and reset is true so the
// caller can rotate its log.
func (b *Budget) Load(ctx context.Context) (remaining time.Duration, reset bool, err error) {
	now := b.clock.Now("budget", "load")

	slot, err := b.store.Get(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		b.logger.Info().Dur("allowed", b.allowed).Msg("no saved budget, starting with full allowance")
		return b.allowed, false, b.Save(ctx, b.allowed)
	case err != nil && !errors.Is(err, storage.ErrCorrupt):
		return 0, false, fmt.Errorf("load budget: %w", err)
	}

	if slot != nil && slot.UpdatedAt.Before(Midnight(now)) {
		b.logger.Info().Time("updated_at", slot.UpdatedAt).Msg("saved budget is from an earlier day, resetting")
		return b.allowed, true, b.Save(ctx, b.allowed)
	}

	if err != nil {
		b.logger.Warn().Err(err).Msg("saved budget unreadable, starting with full allowance")
		return b.allowed, false, b.Save(ctx, b.allowed)
	}

	if slot.Remaining > b.allowed {
		b.logger.Warn().Dur("stored", slot.Remaining).Dur("allowed", b.allowed).Msg("saved budget exceeds allowance, clamping")
		return b.allowed, false, nil
	}

	return slot.Remaining, false, nil
}

// Save replaces the persisted countdown, stamped with the current time.
func (b *Budget) Save(ctx context.Context, remaining time.Duration) error {
	slot := storage.BudgetSlot{
		Remaining: remaining,
		UpdatedAt: b.clock.Now("budget", "save"),
	}
	if err := b.store.Put(ctx, slot); err != nil {
		return fmt.Errorf("save budget: %w", err)
	}
	return nil
}

// Midnight returns the start of t's day in local time. It is the single
// definition of the day boundary used by both Load and the tick loop.
func Midnight(t time.Time) time.Time {
	t = t.Local()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}

// SaturatingSub returns a-b, or zero when b exceeds a.
func SaturatingSub(a, b time.Duration) time.Duration {
	if b >= a {
		return 0
	}
	return a - b
}
