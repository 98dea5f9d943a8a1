// Package config loads the process-wide configuration once at startup.
//
// Values come from (lowest to highest precedence) built-in defaults, an
// optional gateguard.yaml, a config.env file loaded with godotenv, and the
// process environment. Both namespaced variables (SCORING_API_TOKEN) and the
// legacy names used by existing deployments (API_TOKEN) are honoured.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "gateguard-ai-api"

// Config is the immutable process configuration. It is built once by Load and
// passed by value; nothing mutates it afterwards.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Scoring  ScoringConfig
	GeoIP    GeoIPConfig
	Log      LogConfig
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port            int
	CORSOrigins     []string
	// TrustedProxies are the CIDRs/IPs allowed to set X-Forwarded-For. Empty
	// means the peer address is always the client IP.
	TrustedProxies  []string
	LogsRateLimit   int
	ShutdownTimeout time.Duration
}

// DatabaseConfig selects and sizes the datastore.
type DatabaseConfig struct {
	Driver   string
	URL      string
	MaxConns int
}

// ScoringConfig holds the values shared by every scoring request.
type ScoringConfig struct {
	APIToken     string
	ModelVersion string
	Threshold    float64
	FaultDelay   time.Duration
}

// GeoIPConfig points at an optional MaxMind City database.
type GeoIPConfig struct {
	CityDB string
}

// LogConfig selects the zap preset.
type LogConfig struct {
	Development bool
}

// Options control where Load looks for files.
type Options struct {
	// EnvFile is loaded with godotenv when it exists. Existing environment
	// variables are never overridden.
	EnvFile string
	// ConfigPaths are searched for gateguard.yaml.
	ConfigPaths []string
}

// DefaultOptions mirrors the layout of a deployed service directory.
func DefaultOptions() Options {
	return Options{
		EnvFile:     "config.env",
		ConfigPaths: []string{"configs", "."},
	}
}

// Load builds a Config. A missing env file or yaml file is not an error.
func Load(opts Options) (Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", opts.EnvFile, err)
		}
	}

	v := viper.New()
	v.SetConfigName("gateguard")
	v.SetConfigType("yaml")
	for _, p := range opts.ConfigPaths {
		v.AddConfigPath(p)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return Config{}, err
	}

	if len(opts.ConfigPaths) > 0 {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            v.GetInt("server.port"),
			CORSOrigins:     v.GetStringSlice("server.cors_origins"),
			TrustedProxies:  v.GetStringSlice("server.trusted_proxies"),
			LogsRateLimit:   v.GetInt("server.logs_rate_limit_rps"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(v.GetString("database.driver")),
			URL:      v.GetString("database.url"),
			MaxConns: v.GetInt("database.max_conns"),
		},
		Scoring: ScoringConfig{
			APIToken:     v.GetString("scoring.api_token"),
			ModelVersion: v.GetString("scoring.model_version"),
			Threshold:    v.GetFloat64("scoring.threshold"),
			FaultDelay:   v.GetDuration("scoring.fault_delay"),
		},
		GeoIP: GeoIPConfig{
			CityDB: v.GetString("geoip.city_db"),
		},
		Log: LogConfig{
			Development: v.GetBool("log.development"),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = legacyDatabaseURL(v)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Scoring.APIToken == "":
		return errors.New("scoring.api_token must not be empty")
	case c.Scoring.Threshold < 0 || c.Scoring.Threshold > 1:
		return fmt.Errorf("scoring.threshold %v out of range [0,1]", c.Scoring.Threshold)
	case c.Scoring.FaultDelay < 0:
		return errors.New("scoring.fault_delay must not be negative")
	case c.Database.Driver != DriverPostgres && c.Database.Driver != DriverSQLite:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	case c.Database.MaxConns <= 0:
		return errors.New("database.max_conns must be positive")
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors_origins", []string{"http://localhost:8080", "http://127.0.0.1:8080"})
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("server.logs_rate_limit_rps", 20)
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("scoring.api_token", "changeme-token")
	v.SetDefault("scoring.model_version", "urlclf-unknown")
	v.SetDefault("scoring.threshold", 0.50)
	v.SetDefault("scoring.fault_delay", "10s")
	v.SetDefault("geoip.city_db", "")
	v.SetDefault("log.development", false)

	v.SetDefault("db.host", "127.0.0.1")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "gateguard")
	v.SetDefault("db.password", "gateguard")
	v.SetDefault("db.name", "gateguard")
}

func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"scoring.api_token":     {"SCORING_API_TOKEN", "API_TOKEN"},
		"scoring.model_version": {"SCORING_MODEL_VERSION", "MODEL_VERSION"},
		"scoring.threshold":     {"SCORING_THRESHOLD", "THRESHOLD"},
		"database.url":          {"DATABASE_URL"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

// legacyDatabaseURL assembles a Postgres URL from DB_HOST, DB_PORT, DB_USER,
// DB_PASSWORD and DB_NAME. For sqlite, DB_NAME is used as the file path.
func legacyDatabaseURL(v *viper.Viper) string {
	if strings.ToLower(v.GetString("database.driver")) == DriverSQLite {
		return v.GetString("db.name") + ".db"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(v.GetString("db.user"), v.GetString("db.password")),
		Host:     fmt.Sprintf("%s:%d", v.GetString("db.host"), v.GetInt("db.port")),
		Path:     "/" + v.GetString("db.name"),
		RawQuery: "sslmode=disable",
	}
	return u.String()
}
