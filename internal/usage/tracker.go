package usage

import (
	"context"
	"errors"
	"time"

	"github.com/goodtune/onlinelimiter/internal/storage"
)

// recordUsage adds consumed to the usage total of now's day. A failure only
// loses history, so it is logged and dropped.
func (c *Controller) recordUsage(ctx context.Context, now time.Time, consumed time.Duration) {
	if c.usage == nil || consumed <= 0 {
		return
	}

	date := Midnight(now).Format(storage.DateLayout)
	if err := c.usage.IncrementDailyUsage(ctx, date, int64(consumed/time.Second)); err != nil {
		c.logger.Error().Err(err).Str("date", date).Msg("Failed to record daily usage")
	}
}

// History returns the usage of the days days ending with the day of now,
// oldest first. Days without records report zero usage.
func History(ctx context.Context, store storage.UsageStore, now time.Time, days int) ([]DayUsage, error) {
	today := Midnight(now)
	history := make([]DayUsage, 0, days)

	for i := days - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		entry := DayUsage{Date: day}

		record, err := store.GetDailyUsage(ctx, day.Format(storage.DateLayout))
		switch {
		case err == nil:
			entry.Used = time.Duration(record.Seconds) * time.Second
		case !errors.Is(err, storage.ErrNotFound):
			return nil, err
		}

		history = append(history, entry)
	}

	return history, nil
}
