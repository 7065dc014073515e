package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/onlinelimiter/internal/config"
	"github.com/goodtune/onlinelimiter/internal/storage"
	"github.com/goodtune/onlinelimiter/internal/usage"
	"github.com/spf13/cobra"
)

var statusDays int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the remaining budget and recent usage",
	Long: `Show today's remaining budget and the usage of recent days as stored by the
daemon. The stored budget is only read, never modified.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusDays, "days", 7, "Number of days of usage history to show")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if statusDays < 1 {
		return fmt.Errorf("--days must be at least 1, got %d", statusDays)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := time.Now()
	allowed := cfg.Budget.Allowance()

	remaining, note, err := storedRemaining(ctx, store.Budget(), allowed, now)
	if err != nil {
		return fmt.Errorf("failed to read budget: %w", err)
	}

	history, err := usage.History(ctx, store.Usage(), now, statusDays)
	if err != nil {
		return fmt.Errorf("failed to read usage history: %w", err)
	}

	printStatus(os.Stdout, allowed, remaining, note, history)
	return nil
}

// storedRemaining interprets the stored slot the way the daemon would on
// load, without writing anything back.
func storedRemaining(ctx context.Context, budget storage.BudgetStore, allowed time.Duration, now time.Time) (time.Duration, string, error) {
	slot, err := budget.Get(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return allowed, "no budget stored yet", nil
	case errors.Is(err, storage.ErrCorrupt):
		return allowed, "stored budget is corrupt and will be reset", nil
	case err != nil:
		return 0, "", err
	}

	if slot.UpdatedAt.Before(usage.Midnight(now)) {
		return allowed, "stored budget is from " + slot.UpdatedAt.Format(storage.DateLayout) + " and will be reset", nil
	}
	if slot.Remaining > allowed {
		return allowed, "", nil
	}
	return slot.Remaining, "", nil
}

func printStatus(w io.Writer, allowed, remaining time.Duration, note string, history []usage.DayUsage) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	_, _ = cyan.Fprintln(w, "Budget")
	_, _ = fmt.Fprintf(w, "  Allowed:   %s\n", allowed)

	remainingColor := green
	switch {
	case remaining == 0:
		remainingColor = red
	case remaining*4 <= allowed:
		remainingColor = yellow
	}
	_, _ = remainingColor.Fprintf(w, "  Remaining: %s\n", remaining)
	if note != "" {
		_, _ = yellow.Fprintf(w, "  Note:      %s\n", note)
	}

	_, _ = cyan.Fprintln(w, "\nUsage")
	for _, day := range history {
		bar := usageBar(day.Used, allowed, 40)
		_, _ = fmt.Fprintf(w, "  %s  %-40s %s\n", day.Date.Format(storage.DateLayout), bar, day.Used)
	}
}

// usageBar renders used as a bar of at most width cells, full at allowed.
func usageBar(used, allowed time.Duration, width int) string {
	if allowed <= 0 || used <= 0 {
		return ""
	}
	cells := int(int64(used) * int64(width) / int64(allowed))
	if cells > width {
		cells = width
	}
	if cells == 0 {
		cells = 1
	}
	return strings.Repeat("#", cells)
}
