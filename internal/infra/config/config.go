package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends accepted by storage.backend.
const (
	StorageFile   = "file"
	StorageSQLite = "sqlite"
	StorageValkey = "valkey"
	StorageMemory = "memory"
)

// Config aggregates runtime configuration used by the CLI and the local facade.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Session   SessionConfig   `yaml:"session"`
	Storage   StorageConfig   `yaml:"storage"`
	HTTP      HTTPConfig      `yaml:"http"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// APIConfig points at the remote SunBalance API.
type APIConfig struct {
	BaseURL   string          `yaml:"baseUrl"`
	Timeout   time.Duration   `yaml:"timeout"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
}

// RateLimitConfig throttles outgoing API calls.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerSecond int  `yaml:"requestsPerSecond"`
	Burst             int  `yaml:"burst"`
}

// SessionConfig tunes the token lifecycle.
type SessionConfig struct {
	StorageKey    string        `yaml:"storageKey"`
	RefreshWindow time.Duration `yaml:"refreshWindow"`
}

// StorageConfig selects the local key-value store holding the credential record.
type StorageConfig struct {
	Backend string       `yaml:"backend"`
	Path    string       `yaml:"path"`
	Valkey  ValkeyConfig `yaml:"valkey"`
}

// ValkeyConfig contains connection information for the valkey backend.
type ValkeyConfig struct {
	Addr   string `yaml:"addr"`
	Prefix string `yaml:"prefix"`
}

// HTTPConfig controls the local facade server.
type HTTPConfig struct {
	Address        string        `yaml:"address"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
	AllowedOrigins []string      `yaml:"allowedOrigins"`
}

// TelemetryConfig enables OTLP trace export.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"serviceName"`
	Endpoint    string `yaml:"endpoint"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SUNBALANCE_API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("SUNBALANCE_API_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.API.Timeout = parsed
		}
	}
	if v := os.Getenv("SUNBALANCE_API_RATE_LIMIT_ENABLED"); v != "" {
		cfg.API.RateLimit.Enabled = parseBool(v)
	}
	if v := os.Getenv("SUNBALANCE_API_RATE_LIMIT_RPS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.API.RateLimit.RequestsPerSecond = parsed
		}
	}
	if v := os.Getenv("SUNBALANCE_API_RATE_LIMIT_BURST"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.API.RateLimit.Burst = parsed
		}
	}
	if v := os.Getenv("SUNBALANCE_SESSION_REFRESH_WINDOW"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Session.RefreshWindow = parsed
		}
	}
	if v := os.Getenv("SUNBALANCE_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("SUNBALANCE_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("SUNBALANCE_VALKEY_ADDR"); v != "" {
		cfg.Storage.Valkey.Addr = v
	}
	if v := os.Getenv("SUNBALANCE_VALKEY_PREFIX"); v != "" {
		cfg.Storage.Valkey.Prefix = v
	}
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.Endpoint = v
		cfg.Telemetry.Enabled = true
	}
	if v := os.Getenv("SUNBALANCE_TELEMETRY_ENABLED"); v != "" {
		cfg.Telemetry.Enabled = parseBool(v)
	}
}

func parseBool(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func defaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8000/api",
			Timeout: 15 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerSecond: 10,
				Burst:             5,
			},
		},
		Session: SessionConfig{
			StorageKey:    "sunbalance_tokens",
			RefreshWindow: time.Minute,
		},
		Storage: StorageConfig{
			Backend: StorageFile,
			Path:    defaultStoragePath(),
			Valkey: ValkeyConfig{
				Prefix: "sunbalance",
			},
		},
		HTTP: HTTPConfig{
			Address:      "127.0.0.1:5174",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "sunbalance-client",
		},
	}
}

func defaultStoragePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ".sunbalance/store.json"
	}
	return filepath.Join(dir, "sunbalance", "store.json")
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("api.baseUrl cannot be empty")
	}
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}
	if c.API.RateLimit.Enabled {
		if c.API.RateLimit.RequestsPerSecond <= 0 {
			return errors.New("api.rateLimit.requestsPerSecond must be positive")
		}
		if c.API.RateLimit.Burst <= 0 {
			return errors.New("api.rateLimit.burst must be positive")
		}
	}
	if strings.TrimSpace(c.Session.StorageKey) == "" {
		return errors.New("session.storageKey cannot be empty")
	}
	if c.Session.RefreshWindow < 0 {
		return errors.New("session.refreshWindow cannot be negative")
	}
	switch c.Storage.Backend {
	case StorageFile, StorageSQLite:
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("storage.path cannot be empty for the %s backend", c.Storage.Backend)
		}
	case StorageValkey:
		if strings.TrimSpace(c.Storage.Valkey.Addr) == "" {
			return errors.New("storage.valkey.addr cannot be empty when the valkey backend is selected")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend)
	}
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.Telemetry.Enabled && strings.TrimSpace(c.Telemetry.Endpoint) == "" {
		return errors.New("telemetry.endpoint cannot be empty when telemetry is enabled")
	}
	return nil
}
