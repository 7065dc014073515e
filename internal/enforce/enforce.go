// Package enforce terminates the configured game executables once the daily
// budget is exhausted.
package enforce

import (
	"context"
	"strings"

	"github.com/goodtune/onlinelimiter/internal/config"
	"github.com/goodtune/onlinelimiter/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/process"
)

// Process is a running process that can be identified by name and killed.
type Process interface {
	Pid() int32
	Name(ctx context.Context) (string, error)
	Kill(ctx context.Context) error
}

// Lister enumerates running processes.
type Lister interface {
	Processes(ctx context.Context) ([]Process, error)
}

// Actuator kills every process whose executable name matches a target.
type Actuator struct {
	targets []config.TargetConfig
	lister  Lister
	logger  zerolog.Logger
}

// New creates an actuator over the processes of the local system.
func New(targets []config.TargetConfig, logger zerolog.Logger) *Actuator {
	return NewWithLister(targets, systemLister{}, logger)
}

// NewWithLister creates an actuator over the processes returned by lister.
func NewWithLister(targets []config.TargetConfig, lister Lister, logger zerolog.Logger) *Actuator {
	return &Actuator{
		targets: targets,
		lister:  lister,
		logger:  logger.With().Str("component", "enforce").Logger(),
	}
}

// Enforce lists processes once and kills each match. Failures are logged at
// debug level and never stop the remaining kills. It returns the number of
// processes killed.
func (a *Actuator) Enforce(ctx context.Context) int {
	procs, err := a.lister.Processes(ctx)
	if err != nil {
		a.logger.Debug().Err(err).Msg("list processes")
		return 0
	}

	killed := 0
	for _, p := range procs {
		name, err := p.Name(ctx)
		if err != nil || name == "" {
			continue
		}

		target, ok := a.match(name)
		if !ok {
			continue
		}

		if err := p.Kill(ctx); err != nil {
			a.logger.Debug().Err(err).Int32("pid", p.Pid()).Str("executable", name).Msg("kill failed")
			continue
		}

		killed++
		metrics.EnforcementKills.WithLabelValues(target.Name).Inc()
		a.logger.Info().
			Int32("pid", p.Pid()).
			Str("executable", name).
			Str("app", target.Name).
			Str("app_id", target.AppID).
			Msg("terminated process, budget exhausted")
	}

	return killed
}

func (a *Actuator) match(name string) (config.TargetConfig, bool) {
	for _, target := range a.targets {
		for _, exe := range target.Executables {
			if strings.EqualFold(name, exe) {
				return target, true
			}
		}
	}
	return config.TargetConfig{}, false
}

type systemLister struct{}

func (systemLister) Processes(ctx context.Context) ([]Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Process, 0, len(procs))
	for _, p := range procs {
		out = append(out, systemProcess{p})
	}
	return out, nil
}

type systemProcess struct {
	p *process.Process
}

func (s systemProcess) Pid() int32 { return s.p.Pid }

func (s systemProcess) Name(ctx context.Context) (string, error) {
	return s.p.NameWithContext(ctx)
}

func (s systemProcess) Kill(ctx context.Context) error {
	return s.p.KillWithContext(ctx)
}
