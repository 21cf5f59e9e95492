package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	ArcGIS    ArcGISConfig    `mapstructure:"arcgis"`
	Store     StoreConfig     `mapstructure:"store"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	FrontendPort int `mapstructure:"frontend_port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
	// CORSOrigins overrides the default localhost frontend origins.
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// AllowedOrigins returns the CORS origins for the demo frontend.
func (s ServerConfig) AllowedOrigins() string {
	if len(s.CORSOrigins) > 0 {
		return strings.Join(s.CORSOrigins, ", ")
	}
	return fmt.Sprintf("http://localhost:%d, http://127.0.0.1:%d", s.FrontendPort, s.FrontendPort)
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ArcGISConfig struct {
	APIKey                    string   `mapstructure:"api_key"`
	SolveURL                  string   `mapstructure:"solve_url"`
	ExposeAPIKey              bool     `mapstructure:"expose_api_key"`
	FallbackToMockOnAuthError bool     `mapstructure:"fallback_to_mock_on_auth_error"`
	AuthErrorCodes            []int    `mapstructure:"auth_error_codes"`
	AuthErrorMarkers          []string `mapstructure:"auth_error_markers"`
	RateLimit                 float64  `mapstructure:"rate_limit"`
	RateBurst                 int      `mapstructure:"rate_burst"`
}

type StoreConfig struct {
	// Driver is "file" (in-memory, optionally persisted) or "postgres".
	Driver  string `mapstructure:"driver"`
	Persist bool   `mapstructure:"persist"`
	Path    string `mapstructure:"path"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	// RouteTTL is how long solved routes are cached, in seconds. 0 disables caching.
	RouteTTL int `mapstructure:"route_ttl"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

const (
	StoreDriverFile     = "file"
	StoreDriverPostgres = "postgres"
)

// legacyEnv maps config keys to the unprefixed variable names used by
// existing deployments and .env files.
var legacyEnv = map[string]string{
	"arcgis.api_key":                        "ARCGIS_API_KEY",
	"arcgis.expose_api_key":                 "EXPOSE_API_KEY",
	"arcgis.fallback_to_mock_on_auth_error": "FALLBACK_TO_MOCK_ON_AUTH_ERROR",
	"store.persist":                         "PERSIST_FLOODS",
	"server.port":                           "BACKEND_PORT",
	"server.frontend_port":                  "FRONTEND_PORT",
	"log.level":                             "LOG_LEVEL",
}

// Load reads configuration from .env files, an optional config file and
// environment variables.
func Load(service string) (*Config, error) {
	loadDotEnv(".env", "../.env")

	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.frontend_port", 5173)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("arcgis.api_key", "")
	v.SetDefault("arcgis.solve_url", "https://route-api.arcgis.com/arcgis/rest/services/World/Route/NAServer/Route_World/solve")
	v.SetDefault("arcgis.expose_api_key", true)
	v.SetDefault("arcgis.fallback_to_mock_on_auth_error", true)
	v.SetDefault("arcgis.auth_error_codes", []int{498, 499, 401, 403})
	v.SetDefault("arcgis.auth_error_markers", []string{"Invalid Token"})
	v.SetDefault("arcgis.rate_limit", 10.0)
	v.SetDefault("arcgis.rate_burst", 5)
	v.SetDefault("store.driver", StoreDriverFile)
	v.SetDefault("store.persist", false)
	v.SetDefault("store.path", "floods.json")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "floodroute")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "floodroute")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.enabled", false)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.route_ttl", 300)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: FLOODROUTE_STORE_PATH → store.path
	v.SetEnvPrefix("FLOODROUTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, name := range legacyEnv {
		prefixed := "FLOODROUTE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, name); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", name, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ArcGIS.APIKey = strings.TrimSpace(cfg.ArcGIS.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadDotEnv loads each existing file. Variables that are already set, by the
// environment or by an earlier file, are left untouched.
func loadDotEnv(files ...string) {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.FrontendPort <= 0 || c.Server.FrontendPort > 65535 {
		errs = append(errs, fmt.Sprintf("server.frontend_port must be 1-65535, got %d", c.Server.FrontendPort))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.ArcGIS.SolveURL == "" {
		errs = append(errs, "arcgis.solve_url is required")
	}
	if c.ArcGIS.RateLimit < 0 {
		errs = append(errs, "arcgis.rate_limit must not be negative")
	}

	switch c.Store.Driver {
	case StoreDriverFile:
		if c.Store.Persist && c.Store.Path == "" {
			errs = append(errs, "store.path is required when store.persist is enabled")
		}
	case StoreDriverPostgres:
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be %q or %q, got %q", StoreDriverFile, StoreDriverPostgres, c.Store.Driver))
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Enabled && c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Valkey.RouteTTL < 0 {
		errs = append(errs, "valkey.route_ttl must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
