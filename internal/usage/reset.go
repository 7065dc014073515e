package usage

import (
	"context"
	"time"

	"github.com/goodtune/onlinelimiter/internal/metrics"
	"github.com/goodtune/onlinelimiter/internal/storage"
)

// DefaultRetentionDays is how many days of usage history are kept.
const DefaultRetentionDays = 90

// resetDay restores the full allowance for the day starting at today,
// rotates the log and prunes old usage history. Rotation and pruning
// failures are logged; neither stops the loop.
func (c *Controller) resetDay(ctx context.Context, today time.Time) {
	c.logger.Info().
		Str("date", today.Format(storage.DateLayout)).
		Dur("allowed", c.budget.Allowed()).
		Msg("Performing daily budget reset")

	c.remaining = c.budget.Allowed()
	c.lastReset = today
	metrics.DayResetsTotal.Inc()

	c.rotateLog()
	c.pruneHistory(ctx, today)
}

func (c *Controller) rotateLog() {
	if c.rotator == nil {
		return
	}
	dest, err := c.rotator.Rotate()
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to rotate log")
		return
	}
	c.logger.Info().Str("historic_log", dest).Msg("Rotated log")
}

func (c *Controller) pruneHistory(ctx context.Context, today time.Time) {
	if c.usage == nil || c.retentionDays <= 0 {
		return
	}

	cutoffDate := today.AddDate(0, 0, -c.retentionDays).Format(storage.DateLayout)
	deleted, err := c.usage.DeleteDailyUsageBefore(ctx, cutoffDate)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to clean up old daily usage data")
		return
	}
	if deleted > 0 {
		c.logger.Info().
			Int("days_deleted", deleted).
			Str("cutoff_date", cutoffDate).
			Msg("Old daily usage cleaned up")
	}
}
