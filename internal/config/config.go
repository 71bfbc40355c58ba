// Package config loads and validates application configuration from YAML files
// and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Router names.
const (
	RouterChi      = "chi"
	RouterServeMux = "servemux"
)

// Session drivers.
const (
	SessionCookie   = "cookie"
	SessionRedis    = "redis"
	SessionPostgres = "postgres"
	SessionMemory   = "memory"
)

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Templates     TemplatesConfig     `yaml:"templates"`
	Session       SessionConfig       `yaml:"session"`
	Auth          AuthConfig          `yaml:"auth"`
	Datastar      DatastarConfig      `yaml:"datastar"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig describes HTTP server settings.
type ServerConfig struct {
	BindIP          string        `yaml:"bind_ip"`
	Port            int           `yaml:"port"`
	Router          string        `yaml:"router"`
	StaticDir       string        `yaml:"static_dir"`
	AllowRemoteStop bool          `yaml:"allow_remote_stop"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	HandlerTimeout  time.Duration `yaml:"handler_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxFormBytes    int64         `yaml:"max_form_bytes"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.BindIP, s.Port)
}

// TemplatesConfig describes where page templates live.
type TemplatesConfig struct {
	Dir    string `yaml:"dir"`
	Ext    string `yaml:"ext"`
	Reload bool   `yaml:"reload"`
}

// SessionConfig describes where the session principal is persisted.
type SessionConfig struct {
	Driver        string         `yaml:"driver"`
	CookieName    string         `yaml:"cookie_name"`
	SecretFile    string         `yaml:"secret_file"`
	SecretEnv     string         `yaml:"secret_env"`
	TTL           time.Duration  `yaml:"ttl"`
	Secure        bool           `yaml:"secure"`
	PurgeInterval time.Duration  `yaml:"purge_interval"`
	Redis         RedisConfig    `yaml:"redis"`
	Postgres      PostgresConfig `yaml:"postgres"`
}

// RedisConfig describes the Redis session backend.
type RedisConfig struct {
	AddrEnv   string `yaml:"addr_env"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// PostgresConfig describes the Postgres session backend.
type PostgresConfig struct {
	DSNEnv          string        `yaml:"dsn_env"`
	MaxConns        int32         `yaml:"max_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// AuthConfig describes the reference session-backed auth provider.
type AuthConfig struct {
	LoginURL string `yaml:"login_url"`
}

// DatastarConfig describes the Datastar SSE adapter.
type DatastarConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Selector string `yaml:"selector"`
	Mode     string `yaml:"mode"`
}

// ObservabilityConfig describes logging, tracing, and metrics settings.
type ObservabilityConfig struct {
	LogLevel string        `yaml:"log_level"`
	Tracing  TracingConfig `yaml:"tracing"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// TracingConfig describes distributed tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// MetricsConfig describes Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			BindIP:          "127.0.0.1",
			Port:            4480,
			Router:          RouterChi,
			StaticDir:       "staticfiles",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			HandlerTimeout:  8 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxFormBytes:    1 << 20,
		},
		Templates: TemplatesConfig{
			Dir: "./templates",
			Ext: "mustache",
		},
		Session: SessionConfig{
			Driver:        SessionCookie,
			CookieName:    "statepage_session",
			SecretFile:    ".secret",
			SecretEnv:     "STATEPAGE_SESSION_SECRET",
			TTL:           24 * time.Hour,
			PurgeInterval: 10 * time.Minute,
			Redis: RedisConfig{
				AddrEnv:   "STATEPAGE_REDIS_ADDR",
				KeyPrefix: "statepage:session:",
			},
			Postgres: PostgresConfig{
				DSNEnv:          "STATEPAGE_DATABASE_URL",
				MaxConns:        10,
				ConnMaxLifetime: 30 * time.Minute,
			},
		},
		Auth: AuthConfig{
			LoginURL: "/login",
		},
		Datastar: DatastarConfig{
			Enabled:  true,
			Selector: "#page",
			Mode:     "outer",
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// Load reads a YAML config file, applies environment variable overrides,
// and validates required fields. An empty path loads defaults only.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	switch c.Server.Router {
	case RouterChi, RouterServeMux:
	default:
		errs = append(errs, fmt.Sprintf("server.router must be %q or %q", RouterChi, RouterServeMux))
	}
	if c.Templates.Dir == "" {
		errs = append(errs, "templates.dir is required")
	}
	switch c.Session.Driver {
	case SessionCookie, SessionMemory:
	case SessionRedis:
		if c.Session.Redis.AddrEnv == "" {
			errs = append(errs, "session.redis.addr_env is required for the redis driver")
		}
	case SessionPostgres:
		if c.Session.Postgres.DSNEnv == "" {
			errs = append(errs, "session.postgres.dsn_env is required for the postgres driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("session.driver %q is not supported", c.Session.Driver))
	}
	if c.Session.CookieName == "" {
		errs = append(errs, "session.cookie_name is required")
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, "session.ttl must be positive")
	}
	if c.Auth.LoginURL == "" {
		errs = append(errs, "auth.login_url is required")
	}
	switch c.Datastar.Mode {
	case "outer", "inner", "replace", "prepend", "append", "before", "after", "remove":
	default:
		errs = append(errs, fmt.Sprintf("datastar.mode %q is not supported", c.Datastar.Mode))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// applyEnvOverrides reads STATEPAGE_* environment variables and overrides
// config values. BIND_IP and BIND_PORT are honoured for compatibility with
// existing deployments. Only the most commonly overridden fields are
// supported.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BIND_IP"); v != "" {
		cfg.Server.BindIP = v
	}
	if v := os.Getenv("BIND_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("STATEPAGE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("STATEPAGE_SERVER_ROUTER"); v != "" {
		cfg.Server.Router = v
	}
	if v := os.Getenv("STATEPAGE_TEMPLATES_DIR"); v != "" {
		cfg.Templates.Dir = v
	}
	if v := os.Getenv("STATEPAGE_TEMPLATES_RELOAD"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Templates.Reload = b
		}
	}
	if v := os.Getenv("STATEPAGE_SESSION_DRIVER"); v != "" {
		cfg.Session.Driver = v
	}
	if v := os.Getenv("STATEPAGE_OBSERVABILITY_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
}
