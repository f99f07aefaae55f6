package models

// MConfig Structure
type MConfig struct {
	Name             string           `yaml:"name" env:"PLEX_APP_NAME"`
	Host             string           `yaml:"host" env:"PLEX_HOST"`
	Port             int              `yaml:"port" env:"PLEX_PORT"`
	LogLevel         string           `yaml:"log_level" env:"PLEX_LOG_LEVEL"`
	DefaultTimeframe string           `yaml:"default_timeframe" env:"PLEX_DEFAULT_TIMEFRAME"`
	Timeframes       []string         `yaml:"timeframes"`
	Storage          MStorageConfig   `yaml:"storage"`
	Network          MNetworkConfig   `yaml:"network"`
	Upstream         MUpstreamConfig  `yaml:"upstream"`
	Collector        MCollectorConfig `yaml:"collector"`
}

type MStorageConfig struct {
	Enabled            bool   `yaml:"enabled" env:"PLEX_STORAGE_ENABLED"`
	DBType             string `yaml:"db_type" env:"PLEX_DB_TYPE"`
	DBPath             string `yaml:"db_path" env:"PLEX_DB_PATH"`
	DBConnectionString string `yaml:"db_connection_string" env:"PLEX_DB_CONNECTION_STRING"`
}

type MNetworkConfig struct {
	RequestTimeout int    `yaml:"timeout" env:"PLEX_NET_TIMEOUT"`
	MaxRetries     int    `yaml:"retries" env:"PLEX_NET_RETRIES"`
	UserAgent      string `yaml:"user_agent" env:"PLEX_NET_USER_AGENT"`
}

// MUpstreamConfig describes the external quote feed: a one-shot historical
// snapshot endpoint plus a live websocket channel.
type MUpstreamConfig struct {
	HistoricalURL    string `yaml:"historical_url" env:"PLEX_UPSTREAM_HISTORICAL_URL"`
	LiveURL          string `yaml:"live_url" env:"PLEX_UPSTREAM_LIVE_URL"`
	LookbackDays     int    `yaml:"lookback_days" env:"PLEX_UPSTREAM_LOOKBACK_DAYS"`
	Reconnect        bool   `yaml:"reconnect" env:"PLEX_UPSTREAM_RECONNECT"`
	ReconnectMaxWait int    `yaml:"reconnect_max_wait" env:"PLEX_UPSTREAM_RECONNECT_MAX_WAIT"` // seconds
}

// MCollectorConfig gates the optional order-book poller that derives quotes
// from a raw market-orders endpoint instead of consuming a ready-made feed.
type MCollectorConfig struct {
	Enabled         bool   `yaml:"enabled" env:"PLEX_COLLECTOR_ENABLED"`
	OrdersURL       string `yaml:"orders_url" env:"PLEX_COLLECTOR_ORDERS_URL"`
	IntervalMinutes int    `yaml:"interval_minutes" env:"PLEX_COLLECTOR_INTERVAL_MINUTES"`
}
