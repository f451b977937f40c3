// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/cloudgate/adapters/hasher"
	"github.com/artpar/cloudgate/domain/lifecycle"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "cloudgate.yaml"

// Config is the root configuration structure.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Driver  DriverConfig  `yaml:"driver"`
	Auth    AuthConfig    `yaml:"auth"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Client  ClientConfig  `yaml:"client"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	PublicURL      string        `yaml:"public_url"` // base for hrefs; derived from requests when empty
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	TLS            TLSConfig     `yaml:"tls"`
}

// TLSConfig enables HTTPS from certificate files or ACME.
type TLSConfig struct {
	CertFile      string   `yaml:"cert_file"`
	KeyFile       string   `yaml:"key_file"`
	ACMEDomains   []string `yaml:"acme_domains"`
	ACMEEmail     string   `yaml:"acme_email"`
	ACMEStaging   bool     `yaml:"acme_staging"`
	CacheDir      string   `yaml:"cache_dir"`      // ACME cache when storage is memory
	ChallengeAddr string   `yaml:"challenge_addr"` // HTTP-01 listener (default :80)
}

// Enabled reports whether HTTPS is configured.
func (t TLSConfig) Enabled() bool {
	return t.CertFile != "" || t.KeyFile != "" || len(t.ACMEDomains) > 0
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DriverConfig selects the backend.
type DriverConfig struct {
	Name      string `yaml:"name"`      // only "mock" is built in
	Lifecycle string `yaml:"lifecycle"` // built-in state machine (default: driver name)
	SeedFile  string `yaml:"seed_file"` // YAML catalog replacing the built-in one
}

// AuthConfig is the account accepted by the API.
// Password may be plaintext or a bcrypt hash; PasswordHash wins when both are set.
type AuthConfig struct {
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	PasswordHash string `yaml:"password_hash"`
}

// StorageConfig configures where instances, keys and volumes live.
type StorageConfig struct {
	Driver string `yaml:"driver"` // "memory" or "sqlite"
	DSN    string `yaml:"dsn"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// ClientConfig configures the command line client.
type ClientConfig struct {
	URL      string        `yaml:"url"`
	User     string        `yaml:"user"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse reads configuration from YAML bytes, expanding ${ENV} references
// and applying CLOUDGATE_* overrides.
func Parse(data []byte) (*Config, error) {
	data = expandEnv(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${NAME} references only. Bare $ sequences such as the
// ones in bcrypt hashes are left alone.
func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		return []byte(os.Getenv(string(ref[2 : len(ref)-1])))
	})
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	CLOUDGATE_SERVER_HOST         - Server host (default: 0.0.0.0)
//	CLOUDGATE_SERVER_PORT         - Server port (default: 3001)
//	CLOUDGATE_SERVER_PUBLIC_URL   - Base URL used in hrefs
//	CLOUDGATE_TLS_CERT_FILE       - TLS certificate file
//	CLOUDGATE_TLS_KEY_FILE        - TLS key file
//	CLOUDGATE_TLS_ACME_DOMAINS    - Comma separated ACME domains
//	CLOUDGATE_TLS_ACME_EMAIL      - ACME account email
//	CLOUDGATE_DRIVER              - Backend driver (default: mock)
//	CLOUDGATE_LIFECYCLE           - Instance lifecycle (default: driver name)
//	CLOUDGATE_SEED_FILE           - Seed catalog for the mock driver
//	CLOUDGATE_AUTH_USER           - API user (default: mockuser)
//	CLOUDGATE_AUTH_PASSWORD       - API password (default: mockpassword)
//	CLOUDGATE_AUTH_PASSWORD_HASH  - bcrypt hash of the API password
//	CLOUDGATE_STORAGE_DRIVER      - memory or sqlite (default: memory)
//	CLOUDGATE_STORAGE_DSN         - SQLite path (default: cloudgate.db)
//	CLOUDGATE_LOG_LEVEL           - debug, info, warn, error (default: info)
//	CLOUDGATE_LOG_FORMAT          - json or console (default: json)
//	CLOUDGATE_METRICS_ENABLED     - Enable /metrics endpoint
//	CLOUDGATE_METRICS_PATH        - Metrics path (default: /metrics)
//	CLOUDGATE_CLIENT_URL          - API URL used by the client commands
//	CLOUDGATE_CLIENT_USER         - Client user
//	CLOUDGATE_CLIENT_PASSWORD     - Client password
//	CLOUDGATE_CLIENT_TIMEOUT      - Client request timeout (default: 30s)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// LoadWithFallback loads path when it exists and falls back to the
// environment otherwise. Every setting has a default, so the fallback
// always yields a runnable configuration.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies CLOUDGATE_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}

	setString("CLOUDGATE_SERVER_HOST", &cfg.Server.Host)
	if v := os.Getenv("CLOUDGATE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	setString("CLOUDGATE_SERVER_PUBLIC_URL", &cfg.Server.PublicURL)
	setDuration("CLOUDGATE_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	setDuration("CLOUDGATE_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	setString("CLOUDGATE_TLS_CERT_FILE", &cfg.Server.TLS.CertFile)
	setString("CLOUDGATE_TLS_KEY_FILE", &cfg.Server.TLS.KeyFile)
	if v := os.Getenv("CLOUDGATE_TLS_ACME_DOMAINS"); v != "" {
		cfg.Server.TLS.ACMEDomains = strings.Split(v, ",")
	}
	setString("CLOUDGATE_TLS_ACME_EMAIL", &cfg.Server.TLS.ACMEEmail)

	setString("CLOUDGATE_DRIVER", &cfg.Driver.Name)
	setString("CLOUDGATE_LIFECYCLE", &cfg.Driver.Lifecycle)
	setString("CLOUDGATE_SEED_FILE", &cfg.Driver.SeedFile)

	setString("CLOUDGATE_AUTH_USER", &cfg.Auth.User)
	setString("CLOUDGATE_AUTH_PASSWORD", &cfg.Auth.Password)
	setString("CLOUDGATE_AUTH_PASSWORD_HASH", &cfg.Auth.PasswordHash)

	setString("CLOUDGATE_STORAGE_DRIVER", &cfg.Storage.Driver)
	setString("CLOUDGATE_STORAGE_DSN", &cfg.Storage.DSN)

	setString("CLOUDGATE_LOG_LEVEL", &cfg.Logging.Level)
	setString("CLOUDGATE_LOG_FORMAT", &cfg.Logging.Format)

	if v := os.Getenv("CLOUDGATE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	setString("CLOUDGATE_METRICS_PATH", &cfg.Metrics.Path)

	setString("CLOUDGATE_CLIENT_URL", &cfg.Client.URL)
	setString("CLOUDGATE_CLIENT_USER", &cfg.Client.User)
	setString("CLOUDGATE_CLIENT_PASSWORD", &cfg.Client.Password)
	setDuration("CLOUDGATE_CLIENT_TIMEOUT", &cfg.Client.Timeout)
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3001
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}

	if len(cfg.Server.TLS.ACMEDomains) > 0 {
		if cfg.Server.TLS.CacheDir == "" {
			cfg.Server.TLS.CacheDir = "certs"
		}
		if cfg.Server.TLS.ChallengeAddr == "" {
			cfg.Server.TLS.ChallengeAddr = ":80"
		}
	}

	if cfg.Driver.Name == "" {
		cfg.Driver.Name = "mock"
	}
	if cfg.Driver.Lifecycle == "" {
		cfg.Driver.Lifecycle = cfg.Driver.Name
	}

	if cfg.Auth.User == "" {
		cfg.Auth.User = "mockuser"
		if cfg.Auth.Password == "" && cfg.Auth.PasswordHash == "" {
			cfg.Auth.Password = "mockpassword"
		}
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "memory"
	}
	if cfg.Storage.Driver == "sqlite" && cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "cloudgate.db"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Client.URL == "" {
		cfg.Client.URL = fmt.Sprintf("http://localhost:%d/api", cfg.Server.Port)
	}
	if cfg.Client.Timeout == 0 {
		cfg.Client.Timeout = 30 * time.Second
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	tlsCfg := cfg.Server.TLS
	if (tlsCfg.CertFile == "") != (tlsCfg.KeyFile == "") {
		return fmt.Errorf("server.tls.cert_file and server.tls.key_file must be set together")
	}
	if tlsCfg.CertFile != "" && len(tlsCfg.ACMEDomains) > 0 {
		return fmt.Errorf("server.tls: use certificate files or acme_domains, not both")
	}

	if cfg.Driver.Name != "mock" {
		return fmt.Errorf("driver.name must be 'mock', got %q", cfg.Driver.Name)
	}
	if !slices.Contains(lifecycle.BuiltinNames(), cfg.Driver.Lifecycle) {
		return fmt.Errorf("driver.lifecycle must be one of %s, got %q",
			strings.Join(lifecycle.BuiltinNames(), ", "), cfg.Driver.Lifecycle)
	}

	if cfg.Auth.Password == "" && cfg.Auth.PasswordHash == "" {
		return fmt.Errorf("auth.password or auth.password_hash is required")
	}
	if cfg.Auth.PasswordHash != "" && !hasher.IsHash(cfg.Auth.PasswordHash) {
		return fmt.Errorf("auth.password_hash is not a bcrypt hash")
	}

	switch cfg.Storage.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("storage.driver must be 'memory' or 'sqlite', got %q", cfg.Storage.Driver)
	}

	if _, err := zerolog.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") || strings.HasPrefix(cfg.Metrics.Path, "/api") {
		return fmt.Errorf("metrics.path must start with / and lie outside /api, got %q", cfg.Metrics.Path)
	}

	return nil
}

// Secret returns the configured password and whether it is a bcrypt hash.
// A bcrypt value in auth.password counts as a hash.
func (a AuthConfig) Secret() (value string, hashed bool) {
	if a.PasswordHash != "" {
		return a.PasswordHash, true
	}
	if hasher.IsHash(a.Password) {
		return a.Password, true
	}
	return a.Password, false
}
