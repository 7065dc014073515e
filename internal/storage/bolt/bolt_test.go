package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/goodtune/onlinelimiter/internal/storage"
)

func TestBudgetStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	if _, err := store.Budget().Get(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty store, got %v", err)
	}

	at := time.Date(2030, 5, 1, 9, 30, 0, 0, time.UTC)
	if err := store.Budget().Put(ctx, storage.BudgetSlot{Remaining: 90 * time.Minute, UpdatedAt: at}); err != nil {
		t.Fatalf("put budget: %v", err)
	}
	if err := store.Budget().Put(ctx, storage.BudgetSlot{Remaining: 89 * time.Minute, UpdatedAt: at.Add(time.Minute)}); err != nil {
		t.Fatalf("replace budget: %v", err)
	}

	slot, err := store.Budget().Get(ctx)
	if err != nil {
		t.Fatalf("get budget: %v", err)
	}
	if slot.Remaining != 89*time.Minute {
		t.Fatalf("expected remaining 89m, got %s", slot.Remaining)
	}
	if !slot.UpdatedAt.Equal(at.Add(time.Minute)) {
		t.Fatalf("expected updated_at %s, got %s", at.Add(time.Minute), slot.UpdatedAt)
	}
}

func TestBudgetStorePersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limiter.bolt")
	ctx := context.Background()

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Budget().Put(ctx, storage.BudgetSlot{Remaining: time.Hour, UpdatedAt: time.Now()}); err != nil {
		t.Fatalf("put budget: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	store, err = Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer func() { _ = store.Close() }()

	slot, err := store.Budget().Get(ctx)
	if err != nil {
		t.Fatalf("get budget: %v", err)
	}
	if slot.Remaining != time.Hour {
		t.Fatalf("expected remaining 1h, got %s", slot.Remaining)
	}
}

func TestUsageStoreDailyUsage(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	usageStore := store.Usage()
	ctx := context.Background()

	for _, date := range []string{"2030-01-01", "2030-01-02", "2030-01-02", "2030-01-03"} {
		if err := usageStore.IncrementDailyUsage(ctx, date, 120); err != nil {
			t.Fatalf("increment daily usage: %v", err)
		}
	}

	usage, err := usageStore.GetDailyUsage(ctx, "2030-01-02")
	if err != nil {
		t.Fatalf("get daily usage: %v", err)
	}
	if usage.Seconds != 240 {
		t.Fatalf("expected 240 seconds, got %d", usage.Seconds)
	}

	deleted, err := usageStore.DeleteDailyUsageBefore(ctx, "2030-01-03")
	if err != nil {
		t.Fatalf("delete daily usage before: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted entries, got %d", deleted)
	}

	if _, err := usageStore.GetDailyUsage(ctx, "2030-01-01"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected pruned entry to be gone, got %v", err)
	}
	if _, err := usageStore.GetDailyUsage(ctx, "2030-01-03"); err != nil {
		t.Fatalf("expected entry on cutoff date to survive, got %v", err)
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "limiter.bolt")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}
