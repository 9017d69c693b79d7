package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all orchestrator configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Engine    EngineConfig    `toml:"engine"`
	Loader    LoaderConfig    `toml:"loader"`
	Registry  RegistryConfig  `toml:"registry"`
	Logging   LogConfig       `toml:"logging"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000" toml:"port"`
	Host string `envconfig:"HOST" default:"0.0.0.0" toml:"host"`

	// HostPage is an HTML file to serve as the host document. Empty means
	// a built-in skeleton with a single #root container.
	HostPage string `envconfig:"HOST_PAGE" default:"" toml:"host_page"`

	// StaticDir, when set, is served under /static with gzip compression.
	StaticDir string `envconfig:"STATIC_DIR" default:"" toml:"static_dir"`
}

// EngineConfig holds lifecycle engine configuration.
type EngineConfig struct {
	Singular        bool `envconfig:"ENGINE_SINGULAR" default:"true" toml:"singular"`
	StrictIsolation bool `envconfig:"ENGINE_STRICT_ISOLATION" default:"true" toml:"strict_isolation"`
	IsolatedRoot    bool `envconfig:"ENGINE_ISOLATED_ROOT" default:"false" toml:"isolated_root"`
	ScopedCSS       bool `envconfig:"ENGINE_SCOPED_CSS" default:"false" toml:"scoped_css"`
}

// LoaderConfig holds remote entry fetching configuration.
type LoaderConfig struct {
	TimeoutSeconds int      `envconfig:"LOADER_TIMEOUT" default:"30" toml:"timeout_seconds"`
	RetryCount     int      `envconfig:"LOADER_RETRIES" default:"3" toml:"retry_count"`
	UserAgent      string   `envconfig:"LOADER_USER_AGENT" default:"qiankun-host/1.0" toml:"user_agent"`
	Sanitize       bool     `envconfig:"LOADER_SANITIZE" default:"false" toml:"sanitize"`
	Ignores        []string `envconfig:"LOADER_IGNORES" toml:"ignores"`

	// BreakerThreshold is the consecutive fetch-failure count that opens an
	// origin's circuit. Zero disables circuit breaking.
	BreakerThreshold int `envconfig:"LOADER_BREAKER_THRESHOLD" default:"5" toml:"breaker_threshold"`
}

// RegistryConfig holds application registry configuration.
type RegistryConfig struct {
	SeedDir string `envconfig:"REGISTRY_SEED_DIR" default:"" toml:"seed_dir"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" toml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" toml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" toml:"enabled"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// LoadFile loads configuration from environment, then overlays the TOML
// file at path. File values win over environment values.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:      "8000",
			Host:      "0.0.0.0",
			HostPage:  "",
			StaticDir: "",
		},
		Engine: EngineConfig{
			Singular:        true,
			StrictIsolation: true,
			IsolatedRoot:    false,
			ScopedCSS:       false,
		},
		Loader: LoaderConfig{
			TimeoutSeconds:   30,
			RetryCount:       3,
			UserAgent:        "qiankun-host/1.0",
			Sanitize:         false,
			BreakerThreshold: 5,
		},
		Registry: RegistryConfig{
			SeedDir: "",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
