package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/onlinelimiter/internal/config"
	"github.com/goodtune/onlinelimiter/internal/storage"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "limiter:"
	budgetKey     = keyPrefix + "budget"
	usagePrefix   = keyPrefix + "usage:daily:"
	usageIndexKey = keyPrefix + "usage:daily:index"

	// usageTTL bounds how long daily usage is kept (90 days).
	usageTTL = 90 * 24 * time.Hour
)

// Store keeps the budget slot and usage history in redis.
type Store struct {
	client      *redis.Client
	budgetStore *budgetStore
	usageStore  *usageStore
}

// Open connects to the configured redis server. The connection is checked
// once, bounded by the dial timeout.
func Open(cfg config.RedisConfig) (*Store, error) {
	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s unreachable: %w", opts.Addr, err)
	}

	return &Store{
		client:      client,
		budgetStore: &budgetStore{client: client},
		usageStore:  &usageStore{client: client},
	}, nil
}

// clientOptions maps the storage.redis section onto go-redis options. A
// zero port means the host already carries one.
func clientOptions(cfg config.RedisConfig) (*redis.Options, error) {
	opts := &redis.Options{
		Addr:         cfg.Host,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	}
	if cfg.Port > 0 {
		opts.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	for _, t := range []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"dial_timeout", cfg.DialTimeout, &opts.DialTimeout},
		{"read_timeout", cfg.ReadTimeout, &opts.ReadTimeout},
		{"write_timeout", cfg.WriteTimeout, &opts.WriteTimeout},
	} {
		d, err := time.ParseDuration(t.value)
		if err != nil {
			return nil, fmt.Errorf("storage.redis.%s: %w", t.name, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("storage.redis.%s must be positive, got %s", t.name, d)
		}
		*t.dst = d
	}

	return opts, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

// Budget returns the countdown slot.
func (s *Store) Budget() storage.BudgetStore {
	return s.budgetStore
}

// Usage returns the daily usage history.
func (s *Store) Usage() storage.UsageStore {
	return s.usageStore
}
