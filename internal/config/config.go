package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// DefaultUserAgent is the browser signature sent with every request.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; rv:78.0) Gecko/20100101 Firefox/78.0"

// Config is the root configuration for feedstalk.
type Config struct {
	Fetcher FetcherConfig `mapstructure:"fetcher" yaml:"fetcher"`
	Proxy   ProxyConfig   `mapstructure:"proxy"   yaml:"proxy"`
	Sites   SitesConfig   `mapstructure:"sites"   yaml:"sites"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	API     APIConfig     `mapstructure:"api"     yaml:"api"`
}

// FetcherConfig controls the HTTP fetcher.
type FetcherConfig struct {
	RequestTimeout  time.Duration `mapstructure:"request_timeout"   yaml:"request_timeout"`
	UserAgent       string        `mapstructure:"user_agent"        yaml:"user_agent"`
	AcceptLanguage  string        `mapstructure:"accept_language"   yaml:"accept_language"`
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
}

// ProxyConfig controls the static proxy pool. When disabled, the fetcher
// falls back to http_proxy/https_proxy from the environment.
type ProxyConfig struct {
	Enabled  bool     `mapstructure:"enabled"  yaml:"enabled"`
	Rotation string   `mapstructure:"rotation" yaml:"rotation"`
	URLs     []string `mapstructure:"urls"     yaml:"urls"`
}

// SitesConfig overrides the base URL of each backend.
type SitesConfig struct {
	FacebookURL  string `mapstructure:"facebook_url"  yaml:"facebook_url"`
	LeboncoinURL string `mapstructure:"leboncoin_url" yaml:"leboncoin_url"`
	InstagramURL string `mapstructure:"instagram_url" yaml:"instagram_url"`
	YoutubeURL   string `mapstructure:"youtube_url"   yaml:"youtube_url"`
}

// StorageConfig controls persistence and export.
type StorageConfig struct {
	URI        string `mapstructure:"uri"         yaml:"uri"`
	Database   string `mapstructure:"database"    yaml:"database"`
	Format     string `mapstructure:"format"      yaml:"format"`
	OutputPath string `mapstructure:"output_path" yaml:"output_path"`
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
	Path    string `mapstructure:"path"    yaml:"path"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Fetcher: FetcherConfig{
			RequestTimeout:  30 * time.Second,
			UserAgent:       DefaultUserAgent,
			AcceptLanguage:  "en-US",
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    100,
		},
		Proxy: ProxyConfig{
			Enabled:  false,
			Rotation: "round_robin",
		},
		Sites: SitesConfig{
			FacebookURL:  "https://mobile.facebook.com",
			LeboncoinURL: "https://api.leboncoin.fr",
			InstagramURL: "https://www.instagram.com",
			YoutubeURL:   "https://www.youtube.com",
		},
		Storage: StorageConfig{
			Database:   "feedstalk",
			Format:     "json",
			OutputPath: "-",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
	}
}
