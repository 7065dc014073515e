package activity

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/goodtune/onlinelimiter/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

type fakeGame struct {
	id  string
	err error
}

func (f fakeGame) CurrentGame(context.Context) (string, error) { return f.id, f.err }

type fakeTabs struct {
	titles []string
	err    error
}

func (f fakeTabs) TabTitles(context.Context) ([]string, error) { return f.titles, f.err }

var watchlist = []string{"YouTube", "Twitch", "Netflix"}

func TestMatchTabs(t *testing.T) {
	tests := []struct {
		name   string
		titles []string
		want   []string
	}{
		{"no tabs", nil, nil},
		{"no match", []string{"Inbox", "Docs"}, nil},
		{"substring", []string{"Lofi beats - YouTube", "Inbox"}, []string{"Lofi beats - YouTube"}},
		{"case sensitive", []string{"youtube.com", "TWITCH"}, nil},
		{"reported once", []string{"Netflix and YouTube"}, []string{"Netflix and YouTube"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchTabs(tt.titles, watchlist); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MatchTabs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSampleActive(t *testing.T) {
	tests := []struct {
		name   string
		game   fakeGame
		tabs   fakeTabs
		active bool
	}{
		{"idle", fakeGame{}, fakeTabs{titles: []string{"Inbox"}}, false},
		{"game only", fakeGame{id: "1086940"}, fakeTabs{}, true},
		{"tab only", fakeGame{}, fakeTabs{titles: []string{"Twitch"}}, true},
		{"both", fakeGame{id: "1086940"}, fakeTabs{titles: []string{"Twitch"}}, true},
		{"game fails, tab active", fakeGame{err: errors.New("timeout")}, fakeTabs{titles: []string{"Twitch"}}, true},
		{"tab fails, game active", fakeGame{id: "227300"}, fakeTabs{err: errors.New("missing")}, true},
		{"both fail", fakeGame{err: errors.New("timeout")}, fakeTabs{err: errors.New("missing")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator(tt.game, tt.tabs, watchlist, zerolog.Nop())
			if got := agg.Sample(context.Background()).Active(); got != tt.active {
				t.Errorf("Active() = %v, want %v", got, tt.active)
			}
		})
	}
}

func TestSampleRecordsErrors(t *testing.T) {
	before := testutil.ToFloat64(metrics.SignalErrors.WithLabelValues(SourceSteam))

	boom := errors.New("502 Bad Gateway")
	agg := NewAggregator(fakeGame{err: boom}, fakeTabs{titles: []string{"Inbox"}}, watchlist, zerolog.Nop())
	sample := agg.Sample(context.Background())

	if !errors.Is(sample.Errors[SourceSteam], boom) {
		t.Errorf("Errors[steam] = %v, want %v", sample.Errors[SourceSteam], boom)
	}
	if _, ok := sample.Errors[SourceFirefox]; ok {
		t.Error("Errors[firefox] set for a healthy source")
	}
	if got := testutil.ToFloat64(metrics.SignalErrors.WithLabelValues(SourceSteam)); got != before+1 {
		t.Errorf("signal errors = %v, want %v", got, before+1)
	}
}
