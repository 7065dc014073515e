package usage

import (
	"context"
	"time"

	"github.com/goodtune/onlinelimiter/internal/activity"
)

// State is the lifecycle state of a Controller.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Sampler observes restricted activity once per tick.
type Sampler interface {
	Sample(ctx context.Context) activity.Sample
}

// Enforcer terminates restricted applications and reports how many it
// killed.
type Enforcer interface {
	Enforce(ctx context.Context) int
}

// Notifier delivers a message to the user.
type Notifier interface {
	Notify(message string) error
}

// Rotator moves the current log aside at a day boundary.
type Rotator interface {
	Rotate() (string, error)
}

// DayUsage is one day of the usage history.
type DayUsage struct {
	Date time.Time
	Used time.Duration
}
