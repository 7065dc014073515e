package redis

import (
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/onlinelimiter/internal/storage"
)

// parseBudgetSlot converts a Redis hash to BudgetSlot
func parseBudgetSlot(data map[string]string) (*storage.BudgetSlot, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	seconds, err := strconv.ParseInt(data["remaining_seconds"], 10, 64)
	if err != nil || seconds < 0 {
		return nil, fmt.Errorf("%w: remaining_seconds %q", storage.ErrCorrupt, data["remaining_seconds"])
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, data["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("%w: updated_at %q", storage.ErrCorrupt, data["updated_at"])
	}

	return &storage.BudgetSlot{
		Remaining: time.Duration(seconds) * time.Second,
		UpdatedAt: updatedAt,
	}, nil
}

// parseDailyUsage converts a Redis hash to DailyUsage
func parseDailyUsage(data map[string]string) (*storage.DailyUsage, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	seconds, err := strconv.ParseInt(data["seconds"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: seconds %q", storage.ErrCorrupt, data["seconds"])
	}

	return &storage.DailyUsage{
		Date:    data["date"],
		Seconds: seconds,
	}, nil
}

// dateScore orders daily usage keys in the index sorted set, e.g. 20300102.
func dateScore(date string) (int64, error) {
	t, err := time.Parse(storage.DateLayout, date)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return int64(t.Year()*10000 + int(t.Month())*100 + t.Day()), nil
}
