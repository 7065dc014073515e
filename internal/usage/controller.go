package usage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/goodtune/onlinelimiter/internal/metrics"
	"github.com/goodtune/onlinelimiter/internal/storage"
	"github.com/rs/zerolog"
)

// ErrMisconfigured is returned by NewController when the allowance is not a
// whole number of ticks.
var ErrMisconfigured = errors.New("usage: invalid controller configuration")

// Config holds controller configuration and collaborators. Budget, Sampler
// and Enforcer are required.
type Config struct {
	Budget   *Budget
	Usage    storage.UsageStore
	Sampler  Sampler
	Enforcer Enforcer
	Notifier Notifier
	Rotator  Rotator

	// Interval is the tick length; the allowance must be a multiple of it.
	Interval time.Duration

	// WarnTicks sends a low-budget notification on the tick that brings the
	// budget down to exactly this many ticks. Zero disables the warning.
	WarnTicks int

	// RetentionDays of usage history are kept; zero keeps everything.
	RetentionDays int

	// TextfilePath, when set, receives a metrics snapshot after each tick.
	TextfilePath string

	// Watchdog is pinged after each tick.
	Watchdog func() error

	Clock  quartz.Clock
	Logger zerolog.Logger
}

// Controller runs the budget loop: sample, decrement, persist, enforce.
type Controller struct {
	budget        *Budget
	usage         storage.UsageStore
	sampler       Sampler
	enforcer      Enforcer
	notifier      Notifier
	rotator       Rotator
	interval      time.Duration
	warnAt        time.Duration
	retentionDays int
	textfilePath  string
	watchdog      func() error
	clock         quartz.Clock
	logger        zerolog.Logger

	// Owned by the loop goroutine
	remaining time.Duration
	lastReset time.Time

	mu    sync.Mutex
	state State
}

// NewController validates cfg and creates a controller.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Budget == nil || cfg.Sampler == nil || cfg.Enforcer == nil {
		return nil, fmt.Errorf("%w: budget, sampler and enforcer are required", ErrMisconfigured)
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("%w: tick interval %s must be positive", ErrMisconfigured, cfg.Interval)
	}
	allowed := cfg.Budget.Allowed()
	if allowed <= 0 || allowed%cfg.Interval != 0 {
		return nil, fmt.Errorf("%w: allowance %s is not a multiple of tick interval %s", ErrMisconfigured, allowed, cfg.Interval)
	}
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}

	return &Controller{
		budget:        cfg.Budget,
		usage:         cfg.Usage,
		sampler:       cfg.Sampler,
		enforcer:      cfg.Enforcer,
		notifier:      cfg.Notifier,
		rotator:       cfg.Rotator,
		interval:      cfg.Interval,
		warnAt:        time.Duration(cfg.WarnTicks) * cfg.Interval,
		retentionDays: cfg.RetentionDays,
		textfilePath:  cfg.TextfilePath,
		watchdog:      cfg.Watchdog,
		clock:         cfg.Clock,
		logger:        cfg.Logger.With().Str("component", "controller").Logger(),
	}, nil
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Remaining returns the in-memory countdown. It must not be called
// concurrently with Run.
func (c *Controller) Remaining() time.Duration {
	return c.remaining
}

// Load reads the persisted budget and anchors the day boundary at today.
// A stale budget is reset by the store; the log is rotated to match.
func (c *Controller) Load(ctx context.Context) error {
	remaining, reset, err := c.budget.Load(ctx)
	if err != nil {
		return err
	}

	c.remaining = remaining
	c.lastReset = Midnight(c.clock.Now("controller", "load"))
	if reset {
		metrics.DayResetsTotal.Inc()
		c.rotateLog()
		c.pruneHistory(ctx, c.lastReset)
	}

	metrics.BudgetAllowedSeconds.Set(c.budget.Allowed().Seconds())
	metrics.BudgetRemainingSeconds.Set(c.remaining.Seconds())

	c.logger.Info().
		Dur("remaining", c.remaining).
		Dur("allowed", c.budget.Allowed()).
		Dur("interval", c.interval).
		Bool("reset", reset).
		Msg("Budget loaded")
	return nil
}

// Run loads the budget and ticks every interval until ctx is cancelled,
// which returns nil. A persistence failure stops the loop and is returned.
func (c *Controller) Run(ctx context.Context) error {
	defer c.setState(StateStopped)

	if err := c.Load(ctx); err != nil {
		return err
	}
	c.setState(StateRunning)

	for ctx.Err() == nil {
		if err := c.Tick(ctx); err != nil {
			c.logger.Error().Err(err).Msg("Stopping budget loop")
			return err
		}
		if !c.wait(ctx) {
			break
		}
	}

	c.setState(StateStopping)
	c.logger.Info().Dur("remaining", c.remaining).Msg("Budget loop stopped")
	return nil
}

// wait blocks for one interval and reports false if ctx ended first.
func (c *Controller) wait(ctx context.Context) bool {
	timer := c.clock.NewTimer(c.interval, "controller", "wait")
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Tick performs one iteration of the loop.
func (c *Controller) Tick(ctx context.Context) error {
	now := c.clock.Now("controller", "tick")
	before := c.remaining

	// A reset day is always saved so the slot carries today's date, even
	// when the allowance was untouched yesterday.
	reset := false
	if today := Midnight(now); today.After(c.lastReset) {
		c.resetDay(ctx, today)
		reset = true
	}

	sample := c.sampler.Sample(ctx)
	active := sample.Active()

	decremented := false
	if active && c.remaining > 0 {
		prev := c.remaining
		c.remaining = SaturatingSub(c.remaining, c.interval)
		c.recordUsage(ctx, now, prev-c.remaining)
		decremented = true
	}

	if reset || c.remaining != before {
		if err := c.budget.Save(ctx, c.remaining); err != nil {
			return err
		}
	}

	killed := 0
	if c.remaining == 0 {
		killed = c.enforcer.Enforce(ctx)
	}

	c.logger.Info().
		Strs("tabs", sample.MatchedTabs).
		Str("game_id", sample.GameID).
		Bool("active", active).
		Int64("remaining_seconds", int64(c.remaining/time.Second)).
		Int("killed", killed).
		Msg("tick")

	if decremented {
		c.warnIfLow()
	}
	c.observe(active)

	return nil
}

// warnIfLow runs after a decrement. The countdown only falls within a day,
// so landing on warnAt happens at most once per day, across restarts too.
func (c *Controller) warnIfLow() {
	if c.warnAt <= 0 || c.remaining != c.warnAt {
		return
	}
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Notify(fmt.Sprintf("Only %s left.", c.remaining)); err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		c.logger.Error().Err(err).Msg("Error while sending notification")
		return
	}
	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
}

func (c *Controller) observe(active bool) {
	metrics.BudgetRemainingSeconds.Set(c.remaining.Seconds())
	if active {
		metrics.Active.Set(1)
		metrics.TicksTotal.WithLabelValues("true").Inc()
	} else {
		metrics.Active.Set(0)
		metrics.TicksTotal.WithLabelValues("false").Inc()
	}

	if c.textfilePath != "" {
		if err := metrics.WriteTextfile(c.textfilePath); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to write metrics textfile")
		}
	}

	if c.watchdog != nil {
		if err := c.watchdog(); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to ping watchdog")
		}
	}
}
