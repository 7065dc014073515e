package main

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/onlinelimiter/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	validateDump bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the Online-Limiter configuration file for syntax and semantic errors.`,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Dump full configuration with defaults highlighted")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	// Check for unknown keys (always, not just with --dump)
	unknownKeys, err := findUnknownKeys(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "⚠️  Warning: Could not check for unknown keys: %v\n", err)
	}

	_, _ = fmt.Fprintf(os.Stdout, "✅ Configuration is valid: %s\n", configPath)

	if err := cfg.RequireSources(); err != nil {
		yellow := color.New(color.FgYellow, color.Bold)
		_, _ = yellow.Fprintf(os.Stdout, "⚠️  %v - the daemon will exit without doing anything\n", err)
	}

	// Warn about unknown keys
	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		_, _ = fmt.Fprintln(os.Stdout)
		_, _ = red.Fprintf(os.Stdout, "⚠️  WARNING: Found %d unknown configuration key(s):\n", len(unknownKeys))
		for _, key := range unknownKeys {
			_, _ = red.Fprintf(os.Stdout, "   - %s\n", key)
		}
		_, _ = fmt.Fprintln(os.Stdout, "\nThese keys will be ignored and may indicate typos or deprecated settings.")
	}

	// If dump requested, show full configuration with defaults highlighted
	if validateDump {
		_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
		_, _ = fmt.Fprintln(os.Stdout, "FULL CONFIGURATION (values different from defaults are highlighted)")
		_, _ = fmt.Fprintln(os.Stdout, strings.Repeat("=", 80))

		dumpConfig(os.Stdout, cfg, getDefaultConfig())
	}

	return nil
}

// getDefaultConfig creates a configuration with default values
func getDefaultConfig() *config.Config {
	v := viper.New()
	config.SetDefaults(v)

	var cfg config.Config
	_ = v.Unmarshal(&cfg)
	cfg.Enforcement.Targets = config.DefaultTargets

	return &cfg
}

// findUnknownKeys loads the config file and checks for unknown keys
func findUnknownKeys(configPath string) ([]string, error) {
	if _, err := os.Stat(configPath); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	validKeys := getValidKeys()

	unknown := []string{}
	for _, key := range v.AllKeys() {
		if !validKeys[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)

	return unknown, nil
}

// getValidKeys returns a set of all valid configuration keys. Every key has a
// default except the target list.
func getValidKeys() map[string]bool {
	v := viper.New()
	config.SetDefaults(v)

	keys := map[string]bool{
		"enforcement.targets": true,
	}
	for _, key := range v.AllKeys() {
		keys[key] = true
	}
	return keys
}

// dumpConfig dumps configuration with color highlighting for non-default values
func dumpConfig(w io.Writer, cfg, defaultCfg *config.Config) {
	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan, color.Bold)

	field := func(name string, value, defaultValue interface{}) {
		dumpField(w, name, value, defaultValue, yellow, green)
	}

	// Budget
	_, _ = cyan.Fprintln(w, "\n[budget]")
	field("  allowed_duration", cfg.Budget.AllowedDuration, defaultCfg.Budget.AllowedDuration)
	field("  tick_interval", cfg.Budget.TickInterval, defaultCfg.Budget.TickInterval)
	field("  warn_ticks", cfg.Budget.WarnTicks, defaultCfg.Budget.WarnTicks)

	// Storage
	_, _ = cyan.Fprintln(w, "\n[storage]")
	field("  type", cfg.Storage.Type, defaultCfg.Storage.Type)
	field("  path", cfg.Storage.Path, defaultCfg.Storage.Path)
	field("  bolt_path", cfg.Storage.BoltPath, defaultCfg.Storage.BoltPath)
	_, _ = cyan.Fprintln(w, "  [storage.redis]")
	field("    host", cfg.Storage.Redis.Host, defaultCfg.Storage.Redis.Host)
	field("    port", cfg.Storage.Redis.Port, defaultCfg.Storage.Redis.Port)
	field("    password", redact(cfg.Storage.Redis.Password), redact(defaultCfg.Storage.Redis.Password))
	field("    db", cfg.Storage.Redis.DB, defaultCfg.Storage.Redis.DB)
	field("    pool_size", cfg.Storage.Redis.PoolSize, defaultCfg.Storage.Redis.PoolSize)
	field("    min_idle_conns", cfg.Storage.Redis.MinIdleConns, defaultCfg.Storage.Redis.MinIdleConns)
	field("    dial_timeout", cfg.Storage.Redis.DialTimeout, defaultCfg.Storage.Redis.DialTimeout)
	field("    read_timeout", cfg.Storage.Redis.ReadTimeout, defaultCfg.Storage.Redis.ReadTimeout)
	field("    write_timeout", cfg.Storage.Redis.WriteTimeout, defaultCfg.Storage.Redis.WriteTimeout)

	// Logging
	_, _ = cyan.Fprintln(w, "\n[logging]")
	field("  level", cfg.Logging.Level, defaultCfg.Logging.Level)
	field("  format", cfg.Logging.Format, defaultCfg.Logging.Format)
	field("  file", cfg.Logging.File, defaultCfg.Logging.File)
	field("  history_slots", cfg.Logging.HistorySlots, defaultCfg.Logging.HistorySlots)
	field("  stdout", cfg.Logging.Stdout, defaultCfg.Logging.Stdout)

	// Sources
	_, _ = cyan.Fprintln(w, "\n[sources]")
	field("  watchlist", cfg.Sources.Watchlist, defaultCfg.Sources.Watchlist)
	_, _ = cyan.Fprintln(w, "  [sources.steam]")
	field("    api_key", redact(cfg.Sources.Steam.APIKey), redact(defaultCfg.Sources.Steam.APIKey))
	field("    steam_id", cfg.Sources.Steam.SteamID, defaultCfg.Sources.Steam.SteamID)
	field("    api_url", cfg.Sources.Steam.APIURL, defaultCfg.Sources.Steam.APIURL)
	field("    timeout", cfg.Sources.Steam.Timeout, defaultCfg.Sources.Steam.Timeout)
	_, _ = cyan.Fprintln(w, "  [sources.firefox]")
	field("    recovery_path", cfg.Sources.Firefox.RecoveryPath, defaultCfg.Sources.Firefox.RecoveryPath)

	// Enforcement
	_, _ = cyan.Fprintln(w, "\n[enforcement]")
	field("  targets", cfg.Enforcement.Targets, defaultCfg.Enforcement.Targets)

	// Notifications
	_, _ = cyan.Fprintln(w, "\n[notifications]")
	field("  enabled", cfg.Notifications.Enabled, defaultCfg.Notifications.Enabled)
	field("  title", cfg.Notifications.Title, defaultCfg.Notifications.Title)

	// Metrics
	_, _ = cyan.Fprintln(w, "\n[metrics]")
	field("  textfile_path", cfg.Metrics.TextfilePath, defaultCfg.Metrics.TextfilePath)

	_, _ = fmt.Fprintln(w, "\n"+strings.Repeat("=", 80))
}

// dumpField prints a field with color if it differs from default
func dumpField(w io.Writer, name string, value, defaultValue interface{}, modifiedColor, defaultColor *color.Color) {
	valueStr := fmt.Sprintf("%v", value)

	if reflect.DeepEqual(value, defaultValue) {
		_, _ = defaultColor.Fprintf(w, "%s = %s\n", name, valueStr)
	} else {
		_, _ = modifiedColor.Fprintf(w, "%s = %s  (modified from default: %v)\n", name, valueStr, defaultValue)
	}
}

// redact hides secrets if set
func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "***REDACTED***"
}
