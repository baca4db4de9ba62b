package config

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"payout-charts/internal/logging"
)

// Source kinds.
const (
	SourceAPI      = "api"
	SourcePostgres = "postgres"
	SourceFile     = "file"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Source   SourceConfig   `mapstructure:"source"`
	Chart    ChartConfig    `mapstructure:"chart"`
	Render   RenderConfig   `mapstructure:"render"`
	Alerting AlertingConfig `mapstructure:"alerting"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`

	v    *viper.Viper
	live *liveValues
}

// liveValues hold the settings re-read on file changes. They are written on the
// watcher goroutine and read from the scheduler's.
type liveValues struct {
	pollInterval       atomic.Int64
	stalenessThreshold atomic.Int64
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SourceConfig selects where raw payment events are read from.
type SourceConfig struct {
	Kind      string        `mapstructure:"kind"`
	BaseURL   string        `mapstructure:"base_url"`
	Account   string        `mapstructure:"account"`
	File      string        `mapstructure:"file"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Lookback  time.Duration `mapstructure:"lookback"`
	UserAgent string        `mapstructure:"user_agent"`
}

// ChartConfig governs series cadence and presentation.
type ChartConfig struct {
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	StalenessThreshold time.Duration `mapstructure:"staleness_threshold"`
	StartupDelay       time.Duration `mapstructure:"startup_delay"`
	DisplayUnit        string        `mapstructure:"display_unit"`
	Locale             string        `mapstructure:"locale"`
	Timezone           string        `mapstructure:"timezone"`
	PushOnStart        bool          `mapstructure:"push_on_start"`
}

// RenderConfig configures the rendering surfaces.
type RenderConfig struct {
	Listen  string `mapstructure:"listen"`
	PNGPath string `mapstructure:"png_path"`
	Width   int    `mapstructure:"width"`
	Height  int    `mapstructure:"height"`
}

// AlertingConfig defines where data errors are reported.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Cooldown time.Duration  `mapstructure:"cooldown"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram reporter.
type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MetricsConfig sets Prometheus naming.
type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PAYOUTCHART")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Source.Account = strings.ToLower(strings.TrimSpace(cfg.Source.Account))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.live = &liveValues{}
	cfg.live.pollInterval.Store(int64(cfg.Chart.PollInterval))
	cfg.live.stalenessThreshold.Store(int64(cfg.Chart.StalenessThreshold))
	return cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "payoutchart")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("source.kind", SourceAPI)
	v.SetDefault("source.timeout", "10s")
	v.SetDefault("source.lookback", "720h")

	v.SetDefault("chart.poll_interval", "120s")
	v.SetDefault("chart.staleness_threshold", "120s")
	v.SetDefault("chart.startup_delay", "0s")
	v.SetDefault("chart.display_unit", "ETH")
	v.SetDefault("chart.locale", "en-US")
	v.SetDefault("chart.timezone", "Local")
	v.SetDefault("chart.push_on_start", true)

	v.SetDefault("render.listen", ":8090")
	v.SetDefault("render.width", 1280)
	v.SetDefault("render.height", 200)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.cooldown", "30m")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.timeout", "10s")

	v.SetDefault("metrics.namespace", "payoutchart")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case SourceAPI:
		if c.Source.BaseURL == "" {
			return fmt.Errorf("source.base_url is required for the api source")
		}
	case SourcePostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres source")
		}
	case SourceFile:
		if c.Source.File == "" {
			return fmt.Errorf("source.file is required for the file source")
		}
	default:
		return fmt.Errorf("source.kind %q is not one of api, postgres, file", c.Source.Kind)
	}
	if c.Source.Kind != SourceFile && !common.IsHexAddress(c.Source.Account) {
		return fmt.Errorf("source.account %q is not a valid hex address", c.Source.Account)
	}
	if c.Chart.PollInterval < 0 {
		return fmt.Errorf("chart.poll_interval cannot be negative")
	}
	if c.Chart.StalenessThreshold < 0 {
		return fmt.Errorf("chart.staleness_threshold cannot be negative")
	}
	if c.Chart.StartupDelay < 0 {
		return fmt.Errorf("chart.startup_delay cannot be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		return fmt.Errorf("render.width and render.height must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}

// Location resolves chart.timezone.
func (c *Config) Location() (*time.Location, error) {
	name := c.Chart.Timezone
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("chart.timezone: %w", err)
	}
	return loc, nil
}

// PollInterval returns the current poll interval, reflecting config file reloads.
func (c *Config) PollInterval() time.Duration {
	if c.live == nil {
		return c.Chart.PollInterval
	}
	return time.Duration(c.live.pollInterval.Load())
}

// StalenessThreshold returns the current staleness threshold, reflecting config file reloads.
func (c *Config) StalenessThreshold() time.Duration {
	if c.live == nil {
		return c.Chart.StalenessThreshold
	}
	return time.Duration(c.live.stalenessThreshold.Load())
}

// Watch reloads the config file on change so live values pick up edits.
// It is a no-op when no config file was read.
func (c *Config) Watch(logger zerolog.Logger) {
	if c.v == nil || c.live == nil || c.v.ConfigFileUsed() == "" {
		return
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		c.reload(logger, e.Name)
	})
	c.v.WatchConfig()
}

// reload runs on viper's watcher goroutine, right after it re-read the file,
// so it is the only reader of c.v at that point.
func (c *Config) reload(logger zerolog.Logger, file string) {
	poll := c.v.GetDuration("chart.poll_interval")
	stale := c.v.GetDuration("chart.staleness_threshold")
	if poll < 0 || stale < 0 {
		logger.Warn().Str("file", file).Msg("configuration reload rejected: negative duration")
		return
	}

	c.live.pollInterval.Store(int64(poll))
	c.live.stalenessThreshold.Store(int64(stale))
	logger.Info().Str("file", file).
		Dur("poll_interval", poll).
		Dur("staleness_threshold", stale).
		Msg("configuration reloaded")
}
