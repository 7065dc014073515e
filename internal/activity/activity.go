// Package activity decides whether restricted activity is happening right
// now by combining a game-session source and a browser-tab source.
package activity

import (
	"context"
	"strings"

	"github.com/goodtune/onlinelimiter/internal/metrics"
	"github.com/rs/zerolog"
)

// Source names used in logs, metrics and Sample.Errors.
const (
	SourceSteam   = "steam"
	SourceFirefox = "firefox"
)

// GameSource reports the id of the game currently being played, or "" when
// none is.
type GameSource interface {
	CurrentGame(ctx context.Context) (string, error)
}

// TabSource reports the titles of the currently open browser tabs.
type TabSource interface {
	TabTitles(ctx context.Context) ([]string, error)
}

// Sample is the combined observation of one tick.
type Sample struct {
	GameID      string
	MatchedTabs []string

	// Errors holds the failure of each source that produced no signal.
	Errors map[string]error
}

// Active reports whether either source observed restricted activity.
func (s Sample) Active() bool {
	return s.GameID != "" || len(s.MatchedTabs) > 0
}

// Aggregator queries both sources and merges their answers.
type Aggregator struct {
	game      GameSource
	tabs      TabSource
	watchlist []string
	logger    zerolog.Logger
}

// NewAggregator creates an aggregator matching tab titles against watchlist.
func NewAggregator(game GameSource, tabs TabSource, watchlist []string, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		game:      game,
		tabs:      tabs,
		watchlist: watchlist,
		logger:    logger.With().Str("component", "activity").Logger(),
	}
}

// Sample queries both sources. A failing source counts as no signal from
// that source; errors are logged and recorded in the sample, never returned.
func (a *Aggregator) Sample(ctx context.Context) Sample {
	var sample Sample

	gameID, err := a.game.CurrentGame(ctx)
	if err != nil {
		sample.fail(SourceSteam, err)
		a.failed(SourceSteam, err)
	} else {
		sample.GameID = gameID
	}

	titles, err := a.tabs.TabTitles(ctx)
	if err != nil {
		sample.fail(SourceFirefox, err)
		a.failed(SourceFirefox, err)
	} else {
		sample.MatchedTabs = MatchTabs(titles, a.watchlist)
	}

	return sample
}

func (s *Sample) fail(source string, err error) {
	if s.Errors == nil {
		s.Errors = make(map[string]error)
	}
	s.Errors[source] = err
}

func (a *Aggregator) failed(source string, err error) {
	metrics.SignalErrors.WithLabelValues(source).Inc()
	a.logger.Warn().Err(err).Str("source", source).Msg("activity source failed, treating as inactive")
}

// MatchTabs returns the titles containing any watch-list entry. Matching is
// a case-sensitive substring test; each title is reported once.
func MatchTabs(titles, watchlist []string) []string {
	var matched []string
	for _, title := range titles {
		for _, entry := range watchlist {
			if entry != "" && strings.Contains(title, entry) {
				matched = append(matched, title)
				break
			}
		}
	}
	return matched
}
