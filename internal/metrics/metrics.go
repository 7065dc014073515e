package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Budget metrics
	BudgetRemainingSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "online_limiter_budget_remaining_seconds",
			Help: "Seconds of restricted activity left today",
		},
	)

	BudgetAllowedSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "online_limiter_budget_allowed_seconds",
			Help: "Daily allowance in seconds",
		},
	)

	DayResetsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "online_limiter_day_resets_total",
			Help: "Total day-boundary budget resets",
		},
	)

	// Activity metrics
	Active = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "online_limiter_activity_active",
			Help: "1 when restricted activity was observed on the last tick",
		},
	)

	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "online_limiter_ticks_total",
			Help: "Total controller ticks by observed activity",
		},
		[]string{"active"},
	)

	SignalErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "online_limiter_signal_errors_total",
			Help: "Activity source query errors",
		},
		[]string{"source"},
	)

	// Enforcement metrics
	EnforcementKills = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "online_limiter_enforcement_kills_total",
			Help: "Processes terminated after the budget ran out",
		},
		[]string{"app"},
	)

	// Notification metrics
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "online_limiter_notifications_total",
			Help: "Desktop notifications by delivery result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		BudgetRemainingSeconds,
		BudgetAllowedSeconds,
		DayResetsTotal,
		Active,
		TicksTotal,
		SignalErrors,
		EnforcementKills,
		NotificationsTotal,
	)
}

// WriteTextfile writes every registered metric to path in the Prometheus
// text format, for collection by node_exporter's textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
