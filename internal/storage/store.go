package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a record is missing from storage.
	ErrNotFound = errors.New("storage: record not found")

	// ErrCorrupt is returned when a stored record cannot be decoded.
	ErrCorrupt = errors.New("storage: record corrupt")
)

// Store represents the root storage interface.
type Store interface {
	Close() error
	Budget() BudgetStore
	Usage() UsageStore
}

// BudgetStore holds the single countdown slot. Put replaces the slot whole.
type BudgetStore interface {
	Get(ctx context.Context) (*BudgetSlot, error)
	Put(ctx context.Context, slot BudgetSlot) error
}

// UsageStore keeps per-day totals of restricted activity.
type UsageStore interface {
	GetDailyUsage(ctx context.Context, date string) (*DailyUsage, error)
	IncrementDailyUsage(ctx context.Context, date string, seconds int64) error
	DeleteDailyUsageBefore(ctx context.Context, cutoffDate string) (int, error)
}
