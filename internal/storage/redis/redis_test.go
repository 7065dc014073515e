package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goodtune/onlinelimiter/internal/config"
	"github.com/goodtune/onlinelimiter/internal/storage"
)

func setupTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	// miniredis.Addr() returns "host:port", so Port stays zero
	cfg := config.RedisConfig{
		Host:         mr.Addr(),
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 1,
		DialTimeout:  "5s",
		ReadTimeout:  "3s",
		WriteTimeout: "3s",
	}

	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("Failed to open Redis store: %v", err)
	}

	return store, mr
}

func TestOpenRejectsBadTimeout(t *testing.T) {
	_, err := Open(config.RedisConfig{Host: "localhost:6379", DialTimeout: "soon", ReadTimeout: "3s", WriteTimeout: "3s"})
	if err == nil {
		t.Fatal("Expected error for invalid dial_timeout")
	}
}

func TestClientOptions(t *testing.T) {
	base := config.RedisConfig{
		Host:         "cache",
		Port:         6380,
		DB:           2,
		PoolSize:     4,
		DialTimeout:  "5s",
		ReadTimeout:  "3s",
		WriteTimeout: "2s",
	}

	opts, err := clientOptions(base)
	if err != nil {
		t.Fatalf("clientOptions() error = %v", err)
	}
	if opts.Addr != "cache:6380" {
		t.Errorf("Addr = %q, want cache:6380", opts.Addr)
	}
	if opts.DB != 2 || opts.PoolSize != 4 {
		t.Errorf("DB/PoolSize = %d/%d, want 2/4", opts.DB, opts.PoolSize)
	}
	if opts.DialTimeout != 5*time.Second || opts.ReadTimeout != 3*time.Second || opts.WriteTimeout != 2*time.Second {
		t.Errorf("timeouts = %s/%s/%s", opts.DialTimeout, opts.ReadTimeout, opts.WriteTimeout)
	}

	hostOnly := base
	hostOnly.Host = "cache:7000"
	hostOnly.Port = 0
	if opts, err := clientOptions(hostOnly); err != nil || opts.Addr != "cache:7000" {
		t.Errorf("clientOptions(host with port) = %v, %v", opts, err)
	}

	tests := []struct {
		name   string
		mutate func(*config.RedisConfig)
	}{
		{"bad read timeout", func(c *config.RedisConfig) { c.ReadTimeout = "later" }},
		{"zero write timeout", func(c *config.RedisConfig) { c.WriteTimeout = "0s" }},
		{"negative dial timeout", func(c *config.RedisConfig) { c.DialTimeout = "-1s" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			if _, err := clientOptions(cfg); err == nil {
				t.Fatal("clientOptions() succeeded, want error")
			}
		})
	}
}

func TestBudgetStore_RoundTrip(t *testing.T) {
	store, mr := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()

	if _, err := store.Budget().Get(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	at := time.Date(2030, 7, 4, 18, 0, 0, 0, time.UTC)
	slot := storage.BudgetSlot{Remaining: 3570 * time.Second, UpdatedAt: at}
	if err := store.Budget().Put(ctx, slot); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if got := mr.HGet(budgetKey, "remaining_seconds"); got != "3570" {
		t.Errorf("Expected remaining_seconds=3570, got %s", got)
	}

	retrieved, err := store.Budget().Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if retrieved.Remaining != slot.Remaining {
		t.Errorf("Expected Remaining %s, got %s", slot.Remaining, retrieved.Remaining)
	}
	if !retrieved.UpdatedAt.Equal(at) {
		t.Errorf("Expected UpdatedAt %s, got %s", at, retrieved.UpdatedAt)
	}
}

func TestBudgetStore_Corrupt(t *testing.T) {
	store, mr := setupTestStore(t)
	defer func() { _ = store.Close() }()

	mr.HSet(budgetKey, "remaining_seconds", "lots", "updated_at", time.Now().Format(time.RFC3339Nano))

	if _, err := store.Budget().Get(context.Background()); !errors.Is(err, storage.ErrCorrupt) {
		t.Fatalf("Expected ErrCorrupt, got %v", err)
	}
}

func TestUsageStore_DailyUsage(t *testing.T) {
	store, mr := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	usage := store.Usage()

	if _, err := usage.GetDailyUsage(ctx, "2030-01-02"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	for i := 0; i < 4; i++ {
		if err := usage.IncrementDailyUsage(ctx, "2030-01-02", 30); err != nil {
			t.Fatalf("IncrementDailyUsage failed: %v", err)
		}
	}
	if err := usage.IncrementDailyUsage(ctx, "2030-01-01", 600); err != nil {
		t.Fatalf("IncrementDailyUsage failed: %v", err)
	}

	got, err := usage.GetDailyUsage(ctx, "2030-01-02")
	if err != nil {
		t.Fatalf("GetDailyUsage failed: %v", err)
	}
	if got.Seconds != 120 {
		t.Errorf("Expected 120 seconds, got %d", got.Seconds)
	}

	// Entries expire after 90 days
	mr.FastForward(91 * 24 * time.Hour)
	if _, err := usage.GetDailyUsage(ctx, "2030-01-02"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected entry to expire, got %v", err)
	}
}

func TestUsageStore_DeleteDailyUsageBefore(t *testing.T) {
	store, _ := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	usage := store.Usage()

	for _, date := range []string{"2030-01-01", "2030-01-02", "2030-01-03"} {
		if err := usage.IncrementDailyUsage(ctx, date, 30); err != nil {
			t.Fatalf("IncrementDailyUsage failed: %v", err)
		}
	}

	deleted, err := usage.DeleteDailyUsageBefore(ctx, "2030-01-03")
	if err != nil {
		t.Fatalf("DeleteDailyUsageBefore failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 deleted, got %d", deleted)
	}
	if _, err := usage.GetDailyUsage(ctx, "2030-01-03"); err != nil {
		t.Errorf("Expected cutoff date to survive, got %v", err)
	}

	if _, err := usage.DeleteDailyUsageBefore(ctx, "03/01/2030"); err == nil {
		t.Error("Expected error for malformed cutoff")
	}
	if err := usage.IncrementDailyUsage(ctx, "tomorrow", 30); err == nil {
		t.Error("Expected error for malformed date")
	}
}
