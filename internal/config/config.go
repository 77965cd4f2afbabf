package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sells-group/domain-intel/internal/collector"
	"github.com/sells-group/domain-intel/internal/extract"
	"github.com/sells-group/domain-intel/internal/lifecycle"
	"github.com/sells-group/domain-intel/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig             `yaml:"store" mapstructure:"store"`
	Log       LogConfig               `yaml:"log" mapstructure:"log"`
	Server    ServerConfig            `yaml:"server" mapstructure:"server"`
	Collector CollectorConfig         `yaml:"collector" mapstructure:"collector"`
	HTTP      collector.HTTPConfig    `yaml:"http" mapstructure:"http"`
	Crawl     collector.CrawlConfig   `yaml:"crawl" mapstructure:"crawl"`
	Browser   collector.BrowserConfig `yaml:"browser" mapstructure:"browser"`
	Lifecycle lifecycle.Config        `yaml:"lifecycle" mapstructure:"lifecycle"`
	Extract   ExtractConfig           `yaml:"extract" mapstructure:"extract"`
	Session   SessionConfig           `yaml:"session" mapstructure:"session"`
	Metrics   MetricsConfig           `yaml:"metrics" mapstructure:"metrics"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// LogConfig configures logging. File enables a rotating JSON sink next to
// the console output.
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Format     string `yaml:"format" mapstructure:"format"`
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// CollectorConfig selects which collectors are registered with a session.
type CollectorConfig struct {
	Enabled []string `yaml:"enabled" mapstructure:"enabled"`
}

// ExtractConfig configures the extraction pipeline.
type ExtractConfig struct {
	extract.Options `yaml:",inline" mapstructure:",squash"`
	CacheSize       int `yaml:"cache_size" mapstructure:"cache_size"`
}

// SessionConfig configures how the CLI drives a session.
type SessionConfig struct {
	AutoSave      bool `yaml:"auto_save" mapstructure:"auto_save"`
	FollowRounds  int  `yaml:"follow_rounds" mapstructure:"follow_rounds"`
	MaxURLsPerRun int  `yaml:"max_urls_per_run" mapstructure:"max_urls_per_run"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DOMAIN_INTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "domain-intel.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("collector.enabled", []string{"http", "crawl"})
	v.SetDefault("session.auto_save", true)
	v.SetDefault("session.follow_rounds", 0)
	v.SetDefault("session.max_urls_per_run", 25)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	h := collector.DefaultHTTPConfig()
	setCollectorDefaults(v, "http", h.Config)
	v.SetDefault("http.user_agent", h.UserAgent)
	v.SetDefault("http.request_timeout", h.RequestTimeout)
	v.SetDefault("http.max_body_bytes", h.MaxBodyBytes)
	v.SetDefault("http.rate_per_host", h.RatePerHost)
	v.SetDefault("http.burst", h.Burst)
	v.SetDefault("http.max_attempts", h.MaxAttempts)
	v.SetDefault("http.initial_backoff", h.InitialBackoff)
	v.SetDefault("http.breaker_threshold", h.BreakerThreshold)
	v.SetDefault("http.breaker_reset", h.BreakerReset)
	v.SetDefault("http.detect_blocks", h.DetectBlocks)

	c := collector.DefaultCrawlConfig()
	setCollectorDefaults(v, "crawl", c.Config)
	v.SetDefault("crawl.user_agent", c.UserAgent)
	v.SetDefault("crawl.request_timeout", c.RequestTimeout)
	v.SetDefault("crawl.max_depth", c.MaxDepth)
	v.SetDefault("crawl.delay", c.Delay)
	v.SetDefault("crawl.random_delay", c.RandomDelay)

	b := collector.DefaultBrowserConfig()
	setCollectorDefaults(v, "browser", b.Config)
	v.SetDefault("browser.headless", b.Headless)
	v.SetDefault("browser.no_sandbox", b.NoSandbox)
	v.SetDefault("browser.bin", b.Bin)
	v.SetDefault("browser.control_url", b.ControlURL)
	v.SetDefault("browser.stealth", b.Stealth)
	v.SetDefault("browser.nav_timeout", b.NavTimeout)
	v.SetDefault("browser.stable_wait", b.StableWait)

	l := lifecycle.DefaultConfig()
	v.SetDefault("lifecycle.max_uses", l.MaxUses)
	v.SetDefault("lifecycle.max_errors", l.MaxErrors)
	v.SetDefault("lifecycle.max_idle", l.MaxIdle)
	v.SetDefault("lifecycle.health_check_interval", l.HealthCheckInterval)

	e := extract.DefaultOptions()
	v.SetDefault("extract.content", e.Content)
	v.SetDefault("extract.contact", e.Contact)
	v.SetDefault("extract.social", e.Social)
	v.SetDefault("extract.metadata", e.Metadata)
	v.SetDefault("extract.mode", string(e.Mode))
	v.SetDefault("extract.timeout", e.Timeout)
	v.SetDefault("extract.cache_size", 256)
}

func setCollectorDefaults(v *viper.Viper, prefix string, c collector.Config) {
	v.SetDefault(prefix+".include", c.Include)
	v.SetDefault(prefix+".exclude", c.Exclude)
	v.SetDefault(prefix+".timeout", c.Timeout)
	v.SetDefault(prefix+".concurrency", c.Concurrency)
	v.SetDefault(prefix+".per_page", c.PerPage)
	v.SetDefault(prefix+".overhead", c.Overhead)
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres", "postgresql":
	default:
		return eris.Errorf("config: unsupported store driver %q", c.Store.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return eris.Errorf("config: invalid server port %d", c.Server.Port)
	}
	switch c.Extract.Mode {
	case extract.ModeParallel, extract.ModeSequential:
	default:
		return eris.Errorf("config: unknown extract mode %q", c.Extract.Mode)
	}
	for _, id := range c.Collector.Enabled {
		switch id {
		case "http", "crawl", "browser":
		default:
			return eris.Errorf("config: unknown collector %q", id)
		}
	}
	if c.Session.MaxURLsPerRun < 0 || c.Session.FollowRounds < 0 {
		return eris.New("config: session limits must not be negative")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	var opts []zap.Option
	if cfg.File != "" {
		sink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		})
		fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), sink, zapCfg.Level)
		opts = append(opts, zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, fileCore)
		}))
	}

	logger, err := zapCfg.Build(opts...)
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
