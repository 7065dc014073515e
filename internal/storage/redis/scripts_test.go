package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a miniredis instance for testing Lua scripts
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, mr
}

func TestIncrementDailyUsageScript(t *testing.T) {
	client, _ := setupTestRedis(t)
	defer client.Close()

	ctx := context.Background()
	usageKey := usagePrefix + "2030-01-02"

	// First increment creates the entry
	result := client.Eval(ctx, incrementDailyUsageScript, []string{usageKey, usageIndexKey},
		"2030-01-02", 30, 20300102, 7776000)
	if result.Err() != nil {
		t.Fatalf("Script execution failed: %v", result.Err())
	}
	if got, _ := result.Text(); got != "30" {
		t.Errorf("Expected script to return 30, got %q", got)
	}

	// Second increment adds to it
	result = client.Eval(ctx, incrementDailyUsageScript, []string{usageKey, usageIndexKey},
		"2030-01-02", 45, 20300102, 7776000)
	if result.Err() != nil {
		t.Fatalf("Script execution failed: %v", result.Err())
	}

	data := client.HGetAll(ctx, usageKey).Val()
	if data["seconds"] != "75" {
		t.Errorf("Expected seconds=75, got %s", data["seconds"])
	}
	if data["date"] != "2030-01-02" {
		t.Errorf("Expected date=2030-01-02, got %s", data["date"])
	}

	if ttl := client.TTL(ctx, usageKey).Val(); ttl <= 0 {
		t.Errorf("Expected TTL to be set, got %v", ttl)
	}

	score := client.ZScore(ctx, usageIndexKey, "2030-01-02")
	if score.Err() != nil {
		t.Fatalf("Expected date in index: %v", score.Err())
	}
	if score.Val() != 20300102 {
		t.Errorf("Expected index score 20300102, got %v", score.Val())
	}
}

func TestDeleteDailyUsageBeforeScript(t *testing.T) {
	client, _ := setupTestRedis(t)
	defer client.Close()

	ctx := context.Background()

	dates := []struct {
		date  string
		score int64
	}{
		{"2029-12-31", 20291231},
		{"2030-01-01", 20300101},
		{"2030-01-02", 20300102},
	}
	for _, d := range dates {
		result := client.Eval(ctx, incrementDailyUsageScript, []string{usagePrefix + d.date, usageIndexKey},
			d.date, 60, d.score, 7776000)
		if result.Err() != nil {
			t.Fatalf("Failed to seed %s: %v", d.date, result.Err())
		}
	}

	result := client.Eval(ctx, deleteDailyUsageBeforeScript, []string{usageIndexKey}, usagePrefix, "(20300102")
	deleted, err := result.Int()
	if err != nil {
		t.Fatalf("Script execution failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 deleted dates, got %d", deleted)
	}

	if n := client.Exists(ctx, usagePrefix+"2030-01-01").Val(); n != 0 {
		t.Error("Expected 2030-01-01 to be deleted")
	}
	if n := client.Exists(ctx, usagePrefix+"2030-01-02").Val(); n != 1 {
		t.Error("Expected 2030-01-02 to survive")
	}
	if card := client.ZCard(ctx, usageIndexKey).Val(); card != 1 {
		t.Errorf("Expected 1 indexed date, got %d", card)
	}
}
