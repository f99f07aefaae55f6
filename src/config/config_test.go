package config

import (
	"os"
	"path/filepath"
	"testing"

	"plex-observer/src/analysis"
	"plex-observer/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------

const validYAML = `
name: "plex-observer"
host: "127.0.0.1"
port: 8000
log_level: "INFO"
default_timeframe: "5M"
timeframes: ["5M", "1H", "1D", "1W", "1M"]
storage:
  enabled: false
network:
  timeout: 15
  retries: 3
upstream:
  historical_url: "https://feed.example/historical-data/"
  live_url: "wss://feed.example/ws"
  lookback_days: 30
collector:
  enabled: false
`

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// -----------------------------------------------------------------------------

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig(writeConfigFile(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "plex-observer", cfg.Name)
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, 30, cfg.Upstream.LookbackDays)
	assert.Equal(t, analysis.TimeframeFiveMinute, cfg.DefaultTF())
	assert.Equal(t, []string{"5M", "1H", "1D", "1W", "1M"}, cfg.TimeframeLabels())
}

// -----------------------------------------------------------------------------

func TestNewConfig_MissingFile(t *testing.T) {
	_, err := NewConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// -----------------------------------------------------------------------------

func TestNewConfig_EnvOverride(t *testing.T) {
	t.Setenv("PLEX_PORT", "9000")
	t.Setenv("PLEX_DEFAULT_TIMEFRAME", "1H")

	cfg, err := NewConfig(writeConfigFile(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, analysis.TimeframeHour, cfg.DefaultTF())
}

// -----------------------------------------------------------------------------

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{MConfig: &models.MConfig{
			Name:     "test",
			Host:     "127.0.0.1",
			Port:     8000,
			Network:  models.MNetworkConfig{RequestTimeout: 15, MaxRetries: 3},
			Upstream: models.MUpstreamConfig{HistoricalURL: "https://feed.example/", LookbackDays: 30},
		}}
	}

	assert.NoError(t, base().Validate())

	c := base()
	c.Port = 80
	assert.Error(t, c.Validate())

	c = base()
	c.Upstream.HistoricalURL = ""
	assert.Error(t, c.Validate(), "no upstream and no collector")

	c = base()
	c.Upstream.HistoricalURL = ""
	c.Collector = models.MCollectorConfig{Enabled: true, OrdersURL: "https://orders.example/", IntervalMinutes: 5}
	assert.NoError(t, c.Validate(), "collector can replace the upstream feed")

	c = base()
	c.Storage = models.MStorageConfig{Enabled: true, DBType: "sqlite"}
	assert.Error(t, c.Validate(), "sqlite needs a path")

	c = base()
	c.DefaultTimeframe = "15M"
	assert.Error(t, c.Validate())

	c = base()
	c.Timeframes = []string{"5M", "bogus"}
	assert.Error(t, c.Validate())
}

// -----------------------------------------------------------------------------

func TestSaveRoundTrip(t *testing.T) {
	cfg, err := NewConfig(writeConfigFile(t, validYAML))
	require.NoError(t, err)

	// A runtime change written back to disk survives a reload.
	cfg.DefaultTimeframe = "1H"
	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, cfg.Save(path))

	reloaded, err := NewConfig(path)
	require.NoError(t, err)
	assert.Equal(t, analysis.TimeframeHour, reloaded.DefaultTF())
	assert.Equal(t, cfg.Upstream.HistoricalURL, reloaded.Upstream.HistoricalURL)
	assert.Equal(t, cfg.Port, reloaded.Port)
}

// -----------------------------------------------------------------------------

func TestTimeframeLabels_FallbackToAllKnown(t *testing.T) {
	c := &Config{MConfig: &models.MConfig{}}
	assert.Equal(t, []string{"5M", "1H", "1D", "1W", "1M"}, c.TimeframeLabels())
}
