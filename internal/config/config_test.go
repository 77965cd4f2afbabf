package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/domain-intel/internal/extract"
)

// chdirTemp moves into an empty directory so no config.yaml is found.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "domain-intel.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Empty(t, cfg.Log.File)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"http", "crawl"}, cfg.Collector.Enabled)

	assert.Equal(t, 4, cfg.HTTP.Concurrency)
	assert.Equal(t, 2*time.Minute, cfg.HTTP.Timeout)
	assert.Equal(t, 15*time.Second, cfg.HTTP.RequestTimeout)
	assert.Equal(t, 3, cfg.HTTP.MaxAttempts)
	assert.True(t, cfg.HTTP.DetectBlocks)
	assert.Equal(t, 1, cfg.Crawl.MaxDepth)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 30*time.Second, cfg.Browser.NavTimeout)

	assert.Equal(t, 50, cfg.Lifecycle.MaxUses)
	assert.Equal(t, 3, cfg.Lifecycle.MaxErrors)
	assert.Equal(t, 10*time.Minute, cfg.Lifecycle.MaxIdle)

	assert.True(t, cfg.Extract.Content)
	assert.Equal(t, extract.ModeParallel, cfg.Extract.Mode)
	assert.Equal(t, extract.DefaultTimeout, cfg.Extract.Timeout)
	assert.Equal(t, 256, cfg.Extract.CacheSize)

	assert.True(t, cfg.Session.AutoSave)
	assert.Equal(t, 25, cfg.Session.MaxURLsPerRun)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/intel
log:
  level: debug
  format: console
server:
  port: 9090
collector:
  enabled: [http, browser]
http:
  concurrency: 8
  request_timeout: 5s
  exclude: ["/blog/*"]
extract:
  mode: sequential
  social: false
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"http", "browser"}, cfg.Collector.Enabled)
	assert.Equal(t, 8, cfg.HTTP.Concurrency)
	assert.Equal(t, 5*time.Second, cfg.HTTP.RequestTimeout)
	assert.Equal(t, []string{"/blog/*"}, cfg.HTTP.Exclude)
	assert.Equal(t, extract.ModeSequential, cfg.Extract.Mode)
	assert.False(t, cfg.Extract.Social)
	// Defaults still apply for unset values
	assert.True(t, cfg.Extract.Contact)
	assert.Equal(t, 1, cfg.Crawl.MaxDepth)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log:\n  level: debug\n"), 0o644))

	t.Setenv("DOMAIN_INTEL_LOG_LEVEL", "warn")
	t.Setenv("DOMAIN_INTEL_STORE_DRIVER", "postgres")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "postgres", cfg.Store.Driver)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("DOMAIN_INTEL_SERVER_PORT", "3000")
	t.Setenv("DOMAIN_INTEL_HTTP_REQUEST_TIMEOUT", "45s")
	t.Setenv("DOMAIN_INTEL_LIFECYCLE_MAX_USES", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 45*time.Second, cfg.HTTP.RequestTimeout)
	assert.Equal(t, 7, cfg.Lifecycle.MaxUses)
}

func TestLoadInvalidFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	chdirTemp(t)
	t.Setenv("DOMAIN_INTEL_STORE_DRIVER", "mysql")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Server.Port = 8080
	cfg.Extract.Mode = extract.ModeParallel
	cfg.Collector.Enabled = []string{"http"}
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"zero port", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"bad mode", func(c *Config) { c.Extract.Mode = "turbo" }, "unknown extract mode"},
		{"bad collector", func(c *Config) { c.Collector.Enabled = []string{"ftp"} }, "unknown collector"},
		{"negative rounds", func(c *Config) { c.Session.FollowRounds = -1 }, "must not be negative"},
		{"postgres", func(c *Config) { c.Store.Driver = "postgres" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

func TestInitLoggerFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "intel.log")
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json", File: path, MaxSizeMB: 1}))
	t.Cleanup(func() { zap.ReplaceGlobals(zap.NewNop()) })

	zap.L().Info("written to file", zap.String("component", "test"))
	_ = zap.L().Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
	assert.Contains(t, string(data), `"component":"test"`)
}
