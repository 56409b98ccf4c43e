package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Ledger Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
	Security SecurityConfig `yaml:"security"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
}

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DatabaseConfig contains user directory storage settings.
type DatabaseConfig struct {
	// Driver selects the backend: "sqlite" (default) or "postgres".
	Driver string `yaml:"driver"`

	// Path is the SQLite database file. Ignored for postgres.
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// DSN is the PostgreSQL connection string. Ignored for sqlite.
	DSN string `yaml:"dsn"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains credential and session settings.
type SecurityConfig struct {
	JWT           JWTConfig           `yaml:"jwt"`
	RefreshCookie RefreshCookieConfig `yaml:"refresh_cookie"`
	Password      PasswordConfig      `yaml:"password"`

	// DirectoryTimeout bounds each user directory lookup (seconds).
	// A lookup exceeding it is reported as directory unavailable.
	DirectoryTimeout int `yaml:"directory_timeout"`

	// SeedAdmin creates an administrator account on first boot when
	// the directory is empty.
	SeedAdmin bool `yaml:"seed_admin"`
}

// JWTConfig contains token signing settings.
// None of these have defaults: the process refuses to start without them.
type JWTConfig struct {
	Secret    string `yaml:"secret"`
	Algorithm string `yaml:"algorithm"`

	// AccessTokenTTL is the access token lifetime in minutes.
	AccessTokenTTL int `yaml:"access_token_ttl"`

	// RefreshTokenTTL is the refresh token lifetime in hours.
	RefreshTokenTTL int `yaml:"refresh_token_ttl"`
}

// RefreshCookieConfig controls the cookie carrying the refresh token.
type RefreshCookieConfig struct {
	Name     string `yaml:"name"`
	Path     string `yaml:"path"`
	SameSite string `yaml:"same_site"`
	Secure   bool   `yaml:"secure"`
}

// PasswordConfig contains password hashing settings.
type PasswordConfig struct {
	// Algorithm is "argon2id" (default) or "bcrypt".
	Algorithm  string `yaml:"algorithm"`
	BcryptCost int    `yaml:"bcrypt_cost"`

	// HashWorkers bounds concurrent hash/verify operations.
	HashWorkers int `yaml:"hash_workers"`
}

// MQTTConfig contains settings for publishing authentication events.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: LEDGER_SECTION_KEY
// For example: LEDGER_DATABASE_PATH, LEDGER_JWT_SECRET
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
// The JWT section is deliberately left empty.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:      DriverSQLite,
			Path:        "./data/ledger.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			RefreshCookie: RefreshCookieConfig{
				Name:     "refreshToken",
				Path:     RefreshEndpointPath,
				SameSite: "none",
				Secure:   true,
			},
			Password: PasswordConfig{
				Algorithm:   "argon2id",
				BcryptCost:  12,
				HashWorkers: 4,
			},
			DirectoryTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "ledger-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix: "ledger",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("LEDGER_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("LEDGER_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("LEDGER_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// API
	if v := os.Getenv("LEDGER_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// Security - signing material belongs in the environment, not the file
	if v := os.Getenv("LEDGER_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("LEDGER_JWT_ALGORITHM"); v != "" {
		cfg.Security.JWT.Algorithm = v
	}

	// MQTT
	if v := os.Getenv("LEDGER_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("LEDGER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("LEDGER_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
}

// RefreshEndpointPath is the route serving token refresh. The refresh
// cookie must be scoped to exactly this path: broader leaks the refresh
// token to every request, anything else means it is never sent.
const RefreshEndpointPath = "/auth/refresh"

// minJWTSecretLength is the shortest accepted HMAC secret.
const minJWTSecretLength = 32

// signingAlgorithms lists the accepted symmetric JWT algorithms.
var signingAlgorithms = []string{"HS256", "HS384", "HS512"}

// Validate checks the configuration for errors and security issues.
// Every problem is reported, not just the first.
func (c *Config) Validate() error { //nolint:gocognit,gocyclo // flat list of independent checks
	var errs []string

	// Database validation
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, "database.dsn is required for the postgres driver (set LEDGER_DATABASE_DSN)")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver must be %q or %q", DriverSQLite, DriverPostgres))
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// JWT validation - the signing configuration has no defaults
	jwt := c.Security.JWT
	if jwt.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set LEDGER_JWT_SECRET environment variable)")
	} else if len(jwt.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}
	if jwt.Algorithm == "" {
		errs = append(errs, "security.jwt.algorithm is required")
	} else if !isSigningAlgorithm(jwt.Algorithm) {
		errs = append(errs, fmt.Sprintf("security.jwt.algorithm must be one of %s", strings.Join(signingAlgorithms, ", ")))
	}
	if jwt.AccessTokenTTL <= 0 {
		errs = append(errs, "security.jwt.access_token_ttl is required (minutes, > 0)")
	}
	if jwt.RefreshTokenTTL <= 0 {
		errs = append(errs, "security.jwt.refresh_token_ttl is required (hours, > 0)")
	}
	if jwt.AccessTokenTTL > 0 && jwt.RefreshTokenTTL > 0 && c.AccessTokenTTL() >= c.RefreshTokenTTL() {
		errs = append(errs, "security.jwt.access_token_ttl must be shorter than refresh_token_ttl")
	}

	// Refresh cookie validation
	rc := c.Security.RefreshCookie
	if rc.Name == "" {
		errs = append(errs, "security.refresh_cookie.name is required")
	}
	if rc.Path != RefreshEndpointPath {
		errs = append(errs, fmt.Sprintf("security.refresh_cookie.path must be %q", RefreshEndpointPath))
	}
	if _, ok := parseSameSite(rc.SameSite); !ok {
		errs = append(errs, "security.refresh_cookie.same_site must be strict, lax, or none")
	} else if strings.EqualFold(rc.SameSite, "none") && !rc.Secure {
		errs = append(errs, "security.refresh_cookie.secure must be true when same_site is none")
	}

	// Password validation
	switch c.Security.Password.Algorithm {
	case "argon2id", "bcrypt":
	default:
		errs = append(errs, "security.password.algorithm must be argon2id or bcrypt")
	}
	if c.Security.Password.HashWorkers < 1 {
		errs = append(errs, "security.password.hash_workers must be at least 1")
	}

	if c.Security.DirectoryTimeout < 1 {
		errs = append(errs, "security.directory_timeout must be at least 1 second")
	}

	// MQTT validation (only when enabled)
	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func isSigningAlgorithm(alg string) bool {
	for _, a := range signingAlgorithms {
		if a == alg {
			return true
		}
	}
	return false
}

// parseSameSite maps the configured SameSite value to its http constant.
func parseSameSite(v string) (http.SameSite, bool) {
	switch strings.ToLower(v) {
	case "strict":
		return http.SameSiteStrictMode, true
	case "lax":
		return http.SameSiteLaxMode, true
	case "none":
		return http.SameSiteNoneMode, true
	default:
		return http.SameSiteDefaultMode, false
	}
}

// AccessTokenTTL returns the access token lifetime as a Duration.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.AccessTokenTTL) * time.Minute
}

// RefreshTokenTTL returns the refresh token lifetime as a Duration.
func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.RefreshTokenTTL) * time.Hour
}

// RefreshCookieSameSite returns the validated SameSite mode for the refresh cookie.
func (c *Config) RefreshCookieSameSite() http.SameSite {
	mode, _ := parseSameSite(c.Security.RefreshCookie.SameSite)
	return mode
}

// DirectoryTimeout returns the directory lookup timeout as a Duration.
func (c *Config) DirectoryTimeout() time.Duration {
	return time.Duration(c.Security.DirectoryTimeout) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
