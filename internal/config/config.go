package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for DealScout.
type Config struct {
	Scan    ScanConfig    `mapstructure:"scan"    yaml:"scan"`
	Fetcher FetcherConfig `mapstructure:"fetcher" yaml:"fetcher"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Proxy   ProxyConfig   `mapstructure:"proxy"   yaml:"proxy"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Watch   WatchConfig   `mapstructure:"watch"   yaml:"watch"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	API     APIConfig     `mapstructure:"api"     yaml:"api"`
}

// ScanConfig controls card discovery and ranking.
type ScanConfig struct {
	WaitTimeout      time.Duration `mapstructure:"wait_timeout"      yaml:"wait_timeout"`
	PollInterval     time.Duration `mapstructure:"poll_interval"     yaml:"poll_interval"`
	RankMode         string        `mapstructure:"rank_mode"         yaml:"rank_mode"`
	MinCardSize      float64       `mapstructure:"min_card_size"     yaml:"min_card_size"`
	EmbeddedFallback bool          `mapstructure:"embedded_fallback" yaml:"embedded_fallback"`
	ProfilesFile     string        `mapstructure:"profiles_file"     yaml:"profiles_file"`
}

// FetcherConfig controls how listing pages are loaded.
type FetcherConfig struct {
	Type            string        `mapstructure:"type"              yaml:"type"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"   yaml:"request_timeout"`
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
	RateLimit       float64       `mapstructure:"rate_limit"        yaml:"rate_limit"`
	RateBurst       int           `mapstructure:"rate_burst"        yaml:"rate_burst"`
	UserAgents      []string      `mapstructure:"user_agents"       yaml:"user_agents"`
	RespectRobots   bool          `mapstructure:"respect_robots"    yaml:"respect_robots"`
}

// BrowserConfig controls the headless browser used for live pages.
type BrowserConfig struct {
	Headless        bool          `mapstructure:"headless"         yaml:"headless"`
	Stealth         bool          `mapstructure:"stealth"          yaml:"stealth"`
	BinPath         string        `mapstructure:"bin_path"         yaml:"bin_path"`
	UserDataDir     string        `mapstructure:"user_data_dir"    yaml:"user_data_dir"`
	WindowSize      string        `mapstructure:"window_size"      yaml:"window_size"`
	NavigateTimeout time.Duration `mapstructure:"navigate_timeout" yaml:"navigate_timeout"`
}

// ProxyConfig controls proxy rotation.
type ProxyConfig struct {
	Enabled  bool     `mapstructure:"enabled"  yaml:"enabled"`
	Rotation string   `mapstructure:"rotation" yaml:"rotation"`
	URLs     []string `mapstructure:"urls"     yaml:"urls"`
}

// StorageConfig controls where scan results go.
type StorageConfig struct {
	Type        string   `mapstructure:"type"        yaml:"type"`
	Types       []string `mapstructure:"types"       yaml:"types"`
	OutputPath  string   `mapstructure:"output_path" yaml:"output_path"`
	SQLitePath  string   `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	PostgresURL string   `mapstructure:"postgres_url" yaml:"postgres_url"`
	MongoURI    string   `mapstructure:"mongo_uri"   yaml:"mongo_uri"`
	MongoDB     string   `mapstructure:"mongo_db"    yaml:"mongo_db"`
	Collection  string   `mapstructure:"collection"  yaml:"collection"`
}

// WatchConfig controls periodic scanning.
type WatchConfig struct {
	Cron        string   `mapstructure:"cron"        yaml:"cron"`
	URLs        []string `mapstructure:"urls"        yaml:"urls"`
	Concurrency int      `mapstructure:"concurrency" yaml:"concurrency"`

	// SnapshotDir holds the last records seen per page for change detection.
	// Empty disables change detection.
	SnapshotDir string `mapstructure:"snapshot_dir" yaml:"snapshot_dir"`

	// WebhookURL receives detected changes as a JSON POST.
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls the metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// APIConfig controls the HTTP scan API.
type APIConfig struct {
	Port        int   `mapstructure:"port"          yaml:"port"`
	MaxBodySize int64 `mapstructure:"max_body_size" yaml:"max_body_size"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Scan: ScanConfig{
			WaitTimeout:      4500 * time.Millisecond,
			PollInterval:     250 * time.Millisecond,
			RankMode:         "none",
			MinCardSize:      8,
			EmbeddedFallback: true,
		},
		Fetcher: FetcherConfig{
			Type:            "http",
			RequestTimeout:  30 * time.Second,
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    20,
			RateLimit:       1,
			RateBurst:       1,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
		},
		Browser: BrowserConfig{
			Headless:        true,
			Stealth:         true,
			WindowSize:      "1366,768",
			NavigateTimeout: 30 * time.Second,
		},
		Proxy: ProxyConfig{
			Enabled:  false,
			Rotation: "round_robin",
		},
		Storage: StorageConfig{
			Type:       "json",
			OutputPath: "./output",
			SQLitePath: "./output/dealscout.db",
			MongoDB:    "dealscout",
			Collection: "scans",
		},
		Watch: WatchConfig{
			Cron:        "@every 15m",
			Concurrency: 2,
			SnapshotDir: "./output/snapshots",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
		API: APIConfig{
			Port:        8080,
			MaxBodySize: 5 * 1024 * 1024, // 5MB
		},
	}
}
