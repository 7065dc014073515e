package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingCredential is returned by RequireSources when a value needed to
// query the activity sources has not been configured.
var ErrMissingCredential = errors.New("config: missing credential")

// Config holds the complete application configuration
type Config struct {
	Budget        BudgetConfig        `mapstructure:"budget"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Sources       SourcesConfig       `mapstructure:"sources"`
	Enforcement   EnforcementConfig   `mapstructure:"enforcement"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
}

// BudgetConfig defines the daily allowance and polling cadence
type BudgetConfig struct {
	AllowedDuration string `mapstructure:"allowed_duration"`
	TickInterval    string `mapstructure:"tick_interval"`
	WarnTicks       int    `mapstructure:"warn_ticks"` // Remaining ticks at which the low-budget warning fires
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type     string      `mapstructure:"type"`      // "file", "bolt" or "redis"
	Path     string      `mapstructure:"path"`      // Countdown slot for the file backend
	BoltPath string      `mapstructure:"bolt_path"` // Database file for the bolt backend
	Redis    RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines the connection to the redis backend
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level        string `mapstructure:"level"`
	Format       string `mapstructure:"format"`
	File         string `mapstructure:"file"`
	HistorySlots int    `mapstructure:"history_slots"`
	Stdout       bool   `mapstructure:"stdout"`
}

// SourcesConfig defines where activity signals come from
type SourcesConfig struct {
	Steam     SteamConfig   `mapstructure:"steam"`
	Firefox   FirefoxConfig `mapstructure:"firefox"`
	Watchlist []string      `mapstructure:"watchlist"`
}

// SteamConfig defines the Steam Web API query
type SteamConfig struct {
	APIKey  string `mapstructure:"api_key"`
	SteamID string `mapstructure:"steam_id"`
	APIURL  string `mapstructure:"api_url"`
	Timeout string `mapstructure:"timeout"`
}

// FirefoxConfig points at the session-restore file
type FirefoxConfig struct {
	RecoveryPath string `mapstructure:"recovery_path"`
}

// EnforcementConfig lists the applications terminated once the budget is spent
type EnforcementConfig struct {
	Targets []TargetConfig `mapstructure:"targets"`
}

// TargetConfig is a single restricted application
type TargetConfig struct {
	AppID       string   `mapstructure:"app_id"`
	Name        string   `mapstructure:"name"`
	Executables []string `mapstructure:"executables"`
}

// NotificationsConfig defines the low-budget desktop notification
type NotificationsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Title   string `mapstructure:"title"`
}

// MetricsConfig defines the prometheus textfile export
type MetricsConfig struct {
	TextfilePath string `mapstructure:"textfile_path"`
}

// DefaultTargets are the applications terminated when no targets are configured.
var DefaultTargets = []TargetConfig{
	{AppID: "1086940", Name: "Baldur's Gate 3", Executables: []string{"bg3.exe", "bg3_dx11.exe"}},
	{AppID: "671860", Name: "BattleBit Remastered", Executables: []string{"BattleBit.exe"}},
	{AppID: "227300", Name: "Euro Truck Simulator 2", Executables: []string{"eurotrucks2.exe"}},
}

// DefaultWatchlist holds the tab title fragments that count as streaming.
var DefaultWatchlist = []string{"YouTube", "Twitch", "Disney+", "Netflix", "Prime Video"}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	SetDefaults(v)

	// Configure viper
	v.SetEnvPrefix("LIMITER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	// The config file is optional, everything can come from the environment
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// bindLegacyEnv keeps the environment variable names the limiter has always
// been deployed with working next to the LIMITER_ prefixed ones.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("sources.steam.api_key", "LIMITER_SOURCES_STEAM_API_KEY", "STEAM_API_KEY")
	_ = v.BindEnv("sources.steam.steam_id", "LIMITER_SOURCES_STEAM_STEAM_ID", "STEAM_ID")
	_ = v.BindEnv("sources.firefox.recovery_path", "LIMITER_SOURCES_FIREFOX_RECOVERY_PATH", "FFOX_RECOVERY_JSON_LOCATION")
}

// SetDefaults sets default configuration values
func SetDefaults(v *viper.Viper) {
	tmp := os.TempDir()

	// Budget defaults
	v.SetDefault("budget.allowed_duration", "4h")
	v.SetDefault("budget.tick_interval", "30s")
	v.SetDefault("budget.warn_ticks", 10)

	// Storage defaults
	v.SetDefault("storage.type", "file")
	v.SetDefault("storage.path", filepath.Join(tmp, "countdown.txt"))
	v.SetDefault("storage.bolt_path", filepath.Join(tmp, "online-limiter.bolt"))
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 4)
	v.SetDefault("storage.redis.min_idle_conns", 1)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", filepath.Join(tmp, "limiter.log"))
	v.SetDefault("logging.history_slots", 99)
	v.SetDefault("logging.stdout", false)

	// Source defaults
	v.SetDefault("sources.steam.api_key", "")
	v.SetDefault("sources.steam.steam_id", "")
	v.SetDefault("sources.steam.api_url", "https://api.steampowered.com")
	v.SetDefault("sources.steam.timeout", "10s")
	v.SetDefault("sources.firefox.recovery_path", "")
	v.SetDefault("sources.watchlist", DefaultWatchlist)

	// Notification defaults
	v.SetDefault("notifications.enabled", true)
	v.SetDefault("notifications.title", "Online-Limiter")

	// Metrics defaults
	v.SetDefault("metrics.textfile_path", "")
}

// validate validates the configuration
func validate(cfg *Config) error {
	allowed, err := time.ParseDuration(cfg.Budget.AllowedDuration)
	if err != nil {
		return fmt.Errorf("invalid allowed_duration %q: %w", cfg.Budget.AllowedDuration, err)
	}
	tick, err := time.ParseDuration(cfg.Budget.TickInterval)
	if err != nil {
		return fmt.Errorf("invalid tick_interval %q: %w", cfg.Budget.TickInterval, err)
	}
	if tick < time.Second || tick%time.Second != 0 {
		return fmt.Errorf("tick_interval must be a whole number of seconds, got %s", tick)
	}
	if allowed <= 0 {
		return fmt.Errorf("allowed_duration must be positive, got %s", allowed)
	}
	// The countdown must be able to land on exactly zero
	if allowed%tick != 0 {
		return fmt.Errorf("allowed_duration %s is not a multiple of tick_interval %s", allowed, tick)
	}
	if cfg.Budget.WarnTicks < 0 {
		return fmt.Errorf("warn_ticks must not be negative, got %d", cfg.Budget.WarnTicks)
	}

	switch cfg.Storage.Type {
	case "":
		cfg.Storage.Type = "file"
	case "file", "bolt", "redis":
	default:
		return fmt.Errorf("unsupported storage type: %s (must be file, bolt or redis)", cfg.Storage.Type)
	}
	if cfg.Storage.Type == "file" && cfg.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}
	if cfg.Storage.Type == "bolt" && cfg.Storage.BoltPath == "" {
		return fmt.Errorf("storage bolt_path is required")
	}

	switch cfg.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unsupported logging format: %s (must be text or json)", cfg.Logging.Format)
	}
	if cfg.Logging.File == "" {
		return fmt.Errorf("logging file is required")
	}
	if cfg.Logging.HistorySlots < 0 {
		return fmt.Errorf("history_slots must not be negative, got %d", cfg.Logging.HistorySlots)
	}

	if _, err := time.ParseDuration(cfg.Sources.Steam.Timeout); err != nil {
		return fmt.Errorf("invalid steam timeout %q: %w", cfg.Sources.Steam.Timeout, err)
	}

	if len(cfg.Enforcement.Targets) == 0 {
		cfg.Enforcement.Targets = DefaultTargets
	}
	for i, target := range cfg.Enforcement.Targets {
		if len(target.Executables) == 0 {
			return fmt.Errorf("enforcement target %d (%s) has no executables", i, target.Name)
		}
	}

	// Ensure the directories for our files exist
	for _, path := range []string{cfg.Storage.Path, cfg.Storage.BoltPath, cfg.Logging.File} {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
	}

	return nil
}

// RequireSources reports which activity source setting is missing, if any.
// The daemon cannot do anything useful without all of them.
func (c *Config) RequireSources() error {
	switch {
	case c.Sources.Steam.APIKey == "":
		return fmt.Errorf("%w: steam api key (STEAM_API_KEY)", ErrMissingCredential)
	case c.Sources.Steam.SteamID == "":
		return fmt.Errorf("%w: steam id (STEAM_ID)", ErrMissingCredential)
	case c.Sources.Firefox.RecoveryPath == "":
		return fmt.Errorf("%w: firefox recovery path (FFOX_RECOVERY_JSON_LOCATION)", ErrMissingCredential)
	}
	return nil
}

// Allowance returns the parsed daily allowance.
func (b BudgetConfig) Allowance() time.Duration {
	return parseDuration(b.AllowedDuration, 4*time.Hour)
}

// Interval returns the parsed tick interval.
func (b BudgetConfig) Interval() time.Duration {
	return parseDuration(b.TickInterval, 30*time.Second)
}

// RequestTimeout returns the parsed Steam API timeout.
func (s SteamConfig) RequestTimeout() time.Duration {
	return parseDuration(s.Timeout, 10*time.Second)
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
