package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/onlinelimiter/internal/activity"
	"github.com/goodtune/onlinelimiter/internal/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Take one activity sample",
	Long: `Query the Steam and Firefox sources once and show whether the daemon would
count the current moment against the budget.`,
	Example: `  online-limiter -c config.yaml check`,
	RunE:    runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.RequireSources(); err != nil {
		return err
	}

	// Create a quiet logger for check mode
	logger := zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.Sources.Steam.RequestTimeout())
	defer cancel()

	sample := newAggregator(cfg, logger).Sample(ctx)
	printSample(os.Stdout, sample)
	return nil
}

func printSample(w io.Writer, sample activity.Sample) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow)

	_, _ = cyan.Fprintf(w, "Activity sample at %s\n", time.Now().Format(time.DateTime))

	if sample.GameID != "" {
		_, _ = fmt.Fprintf(w, "  Steam game:   %s\n", sample.GameID)
	} else {
		_, _ = fmt.Fprintln(w, "  Steam game:   none")
	}
	if len(sample.MatchedTabs) > 0 {
		for _, title := range sample.MatchedTabs {
			_, _ = fmt.Fprintf(w, "  Watched tab:  %s\n", title)
		}
	} else {
		_, _ = fmt.Fprintln(w, "  Watched tab:  none")
	}

	sources := make([]string, 0, len(sample.Errors))
	for source := range sample.Errors {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	for _, source := range sources {
		_, _ = yellow.Fprintf(w, "  ⚠️  %s unavailable: %v\n", source, sample.Errors[source])
	}

	if sample.Active() {
		_, _ = red.Fprintln(w, "\n🎮 ACTIVE - this tick would count against the budget")
	} else {
		_, _ = green.Fprintln(w, "\n✅ IDLE - this tick would not count")
	}
}
