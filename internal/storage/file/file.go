// Package file stores the countdown as plain-text decimal seconds in a single
// file whose modification time records when it was written.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goodtune/onlinelimiter/internal/storage"
	"github.com/natefinch/atomic"
)

// Store implements storage.Store on the local filesystem. Daily usage lives
// in a JSON sidecar next to the budget slot.
type Store struct {
	path      string
	usagePath string
	mu        sync.Mutex
}

// Open returns a file-backed store for the slot at path. The slot itself is
// created lazily by the first Put.
func Open(path string) (*Store, error) {
	if err := storage.EnsureDir(path); err != nil {
		return nil, err
	}
	return &Store{path: path, usagePath: path + ".usage.json"}, nil
}

// Close is a no-op; the store holds no open handles.
func (s *Store) Close() error { return nil }

// Budget returns the countdown slot.
func (s *Store) Budget() storage.BudgetStore { return &budgetStore{store: s} }

// Usage returns the daily usage history.
func (s *Store) Usage() storage.UsageStore { return &usageStore{store: s} }

type budgetStore struct {
	store *Store
}

func (b *budgetStore) Get(ctx context.Context) (*storage.BudgetSlot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(b.store.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read budget slot: %w", err)
	}

	info, err := os.Stat(b.store.path)
	if err != nil {
		return nil, fmt.Errorf("stat budget slot: %w", err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, storage.ErrNotFound
	}

	seconds, err := strconv.ParseInt(text, 10, 64)
	if err != nil || seconds < 0 {
		return &storage.BudgetSlot{UpdatedAt: info.ModTime()}, fmt.Errorf("%w: %q", storage.ErrCorrupt, text)
	}

	return &storage.BudgetSlot{
		Remaining: time.Duration(seconds) * time.Second,
		UpdatedAt: info.ModTime(),
	}, nil
}

// Put replaces the slot through a temp file and rename, then stamps the file
// with slot.UpdatedAt so staleness follows the caller's clock.
func (b *budgetStore) Put(ctx context.Context, slot storage.BudgetSlot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	seconds := int64(slot.Remaining / time.Second)
	if err := atomic.WriteFile(b.store.path, strings.NewReader(strconv.FormatInt(seconds, 10))); err != nil {
		return fmt.Errorf("write budget slot: %w", err)
	}

	if !slot.UpdatedAt.IsZero() {
		if err := os.Chtimes(b.store.path, slot.UpdatedAt, slot.UpdatedAt); err != nil {
			return fmt.Errorf("stamp budget slot: %w", err)
		}
	}

	return nil
}

type usageStore struct {
	store *Store
}

func (u *usageStore) GetDailyUsage(ctx context.Context, date string) (*storage.DailyUsage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	days, err := u.load()
	if err != nil {
		return nil, err
	}
	seconds, ok := days[date]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &storage.DailyUsage{Date: date, Seconds: seconds}, nil
}

func (u *usageStore) IncrementDailyUsage(ctx context.Context, date string, seconds int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	days, err := u.load()
	if err != nil {
		return err
	}
	days[date] += seconds
	return u.save(days)
}

func (u *usageStore) DeleteDailyUsageBefore(ctx context.Context, cutoffDate string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if _, err := time.Parse(storage.DateLayout, cutoffDate); err != nil {
		return 0, fmt.Errorf("invalid cutoff date: %w", err)
	}

	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	days, err := u.load()
	if err != nil {
		return 0, err
	}

	deleted := 0
	for date := range days {
		if date < cutoffDate {
			delete(days, date)
			deleted++
		}
	}
	if deleted == 0 {
		return 0, nil
	}
	return deleted, u.save(days)
}

func (u *usageStore) load() (map[string]int64, error) {
	days := make(map[string]int64)

	data, err := os.ReadFile(u.store.usagePath)
	if errors.Is(err, os.ErrNotExist) {
		return days, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read usage history: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return days, nil
	}

	var records []storage.DailyUsage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: usage history: %v", storage.ErrCorrupt, err)
	}
	for _, r := range records {
		days[r.Date] = r.Seconds
	}
	return days, nil
}

func (u *usageStore) save(days map[string]int64) error {
	records := make([]storage.DailyUsage, 0, len(days))
	for date, seconds := range days {
		records = append(records, storage.DailyUsage{Date: date, Seconds: seconds})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date < records[j].Date })

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal usage history: %w", err)
	}
	if err := atomic.WriteFile(u.store.usagePath, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write usage history: %w", err)
	}
	return nil
}
