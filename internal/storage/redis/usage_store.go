package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/onlinelimiter/internal/storage"
	"github.com/redis/go-redis/v9"
)

var (
	incrementDailyUsage    = redis.NewScript(incrementDailyUsageScript)
	deleteDailyUsageBefore = redis.NewScript(deleteDailyUsageBeforeScript)
)

type budgetStore struct {
	client *redis.Client
}

// Get retrieves the countdown slot
func (s *budgetStore) Get(ctx context.Context) (*storage.BudgetSlot, error) {
	data, err := s.client.HGetAll(ctx, budgetKey).Result()
	if err != nil {
		return nil, err
	}

	return parseBudgetSlot(data)
}

// Put replaces both fields of the countdown slot in one command
func (s *budgetStore) Put(ctx context.Context, slot storage.BudgetSlot) error {
	return s.client.HSet(ctx, budgetKey,
		"remaining_seconds", strconv.FormatInt(int64(slot.Remaining/time.Second), 10),
		"updated_at", slot.UpdatedAt.Format(time.RFC3339Nano),
	).Err()
}

type usageStore struct {
	client *redis.Client
}

// GetDailyUsage retrieves the usage total for a date
func (s *usageStore) GetDailyUsage(ctx context.Context, date string) (*storage.DailyUsage, error) {
	data, err := s.client.HGetAll(ctx, usagePrefix+date).Result()
	if err != nil {
		return nil, err
	}

	return parseDailyUsage(data)
}

// IncrementDailyUsage atomically increments (or creates) daily usage
func (s *usageStore) IncrementDailyUsage(ctx context.Context, date string, seconds int64) error {
	score, err := dateScore(date)
	if err != nil {
		return err
	}

	keys := []string{usagePrefix + date, usageIndexKey}
	args := []interface{}{date, seconds, score, int64(usageTTL / time.Second)}

	return incrementDailyUsage.Run(ctx, s.client, keys, args...).Err()
}

// DeleteDailyUsageBefore removes entries dated before cutoffDate. Entries
// also expire on their own after 90 days.
func (s *usageStore) DeleteDailyUsageBefore(ctx context.Context, cutoffDate string) (int, error) {
	score, err := dateScore(cutoffDate)
	if err != nil {
		return 0, fmt.Errorf("invalid cutoff date: %w", err)
	}

	keys := []string{usageIndexKey}
	args := []interface{}{usagePrefix, fmt.Sprintf("(%d", score)}

	deleted, err := deleteDailyUsageBefore.Run(ctx, s.client, keys, args...).Int()
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
