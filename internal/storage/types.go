package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DateLayout is the key format of daily usage records.
const DateLayout = "2006-01-02"

// BudgetSlot is the persisted countdown. UpdatedAt is the time of the write
// that produced it and decides whether the slot belongs to the current day.
type BudgetSlot struct {
	Remaining time.Duration `json:"remaining"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// DailyUsage aggregates restricted-activity seconds per calendar day.
type DailyUsage struct {
	Date    string `json:"date"`
	Seconds int64  `json:"seconds"`
}

// EnsureDir creates the parent directory of path.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}
