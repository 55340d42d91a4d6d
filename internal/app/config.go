package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. LGU_DATABASE_DRIVER.
const EnvPrefix = "LGU"

// Config represents the runtime configuration for the LGU portal backend.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Email       EmailConfig       `mapstructure:"email"`
	GIS         GISConfig         `mapstructure:"gis"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int             `mapstructure:"port"`
	LogLevel        string          `mapstructure:"log_level"`
	PublicURL       string          `mapstructure:"public_url"`
	TrustedProxies  []string        `mapstructure:"trusted_proxies"`
	ReadTimeout     time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration   `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig      `mapstructure:"cors"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// CORSConfig lists origins allowed to read the public GIS feed. Empty allows any origin.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimitConfig throttles the login and registration endpoints per client.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	Postgres        DBAuthConfig  `mapstructure:"postgres"`
	MySQL           DBAuthConfig  `mapstructure:"mysql"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SlowThreshold   time.Duration `mapstructure:"slow_threshold"`
	LogQueries      bool          `mapstructure:"log_queries"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string            `mapstructure:"host"`
	Port     int               `mapstructure:"port"`
	Database string            `mapstructure:"database"`
	Username string            `mapstructure:"username"`
	Password string            `mapstructure:"password"`
	Options  map[string]string `mapstructure:"options"`
}

// CacheConfig describes cache backends.
type CacheConfig struct {
	Redis RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Prefix   string        `mapstructure:"prefix"`
}

// AuthConfig captures all authentication-related settings.
type AuthConfig struct {
	JWT            JWTSettings          `mapstructure:"jwt"`
	Session        SessionSettings      `mapstructure:"session"`
	Lockout        LockoutSettings      `mapstructure:"lockout"`
	Verification   VerificationSettings `mapstructure:"verification"`
	BootstrapAdmin BootstrapAdmin       `mapstructure:"bootstrap_admin"`
}

// JWTSettings configures bearer access tokens issued to API clients.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl"`
}

// SessionSettings configures browser sessions and their cookie.
type SessionSettings struct {
	TTL          time.Duration `mapstructure:"ttl"`
	TokenLength  int           `mapstructure:"token_length"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	CookieName   string        `mapstructure:"cookie_name"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
	SameSite     string        `mapstructure:"same_site"`
}

// LockoutSettings configures failed-login lockout.
type LockoutSettings struct {
	Threshold        int           `mapstructure:"threshold"`
	Window           time.Duration `mapstructure:"window"`
	SuspiciousIPs    int           `mapstructure:"suspicious_ips"`
	SuspiciousWindow time.Duration `mapstructure:"suspicious_window"`
	FailClosed       bool          `mapstructure:"fail_closed"`
}

// VerificationSettings configures registration email verification.
type VerificationSettings struct {
	BaseURL string        `mapstructure:"base_url"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// BootstrapAdmin seeds the first administrator when none exists.
type BootstrapAdmin struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// EmailConfig captures outbound email settings.
type EmailConfig struct {
	SMTP SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig defines SMTP dialer settings for sending email.
type SMTPConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// GISConfig positions the placeholder geocoder.
type GISConfig struct {
	CenterLat float64 `mapstructure:"center_lat"`
	CenterLng float64 `mapstructure:"center_lng"`
	Spread    float64 `mapstructure:"spread"`
}

// MaintenanceConfig schedules background cleanup.
type MaintenanceConfig struct {
	Enabled               bool          `mapstructure:"enabled"`
	SessionSchedule       string        `mapstructure:"session_schedule"`
	RetentionSchedule     string        `mapstructure:"retention_schedule"`
	AuditRetentionDays    int           `mapstructure:"audit_retention_days"`
	LoginAttemptRetention time.Duration `mapstructure:"login_attempt_retention"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles the metrics endpoint.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles the health endpoint.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig reads config.yaml from ./config and any extra paths, then
// applies LGU_* environment overrides on top of the defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects configurations that cannot start the server.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Database.Driver)) {
	case "sqlite", "":
	case "postgres", "postgresql":
		if c.Database.DSN == "" && c.Database.Postgres.Host == "" {
			return errors.New("config: database.postgres.host or database.dsn is required")
		}
	case "mysql", "mariadb":
		if c.Database.DSN == "" && c.Database.MySQL.Host == "" {
			return errors.New("config: database.mysql.host or database.dsn is required")
		}
	default:
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}

	if c.Cache.Redis.Enabled && strings.TrimSpace(c.Cache.Redis.Address) == "" {
		return errors.New("config: cache.redis.address is required when redis is enabled")
	}
	if c.Email.SMTP.Enabled && strings.TrimSpace(c.Email.SMTP.Host) == "" {
		return errors.New("config: email.smtp.host is required when smtp is enabled")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.public_url", "http://localhost:8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.rate_limit.requests", 20)
	v.SetDefault("server.rate_limit.window", "1m")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/lgu_portal.sqlite")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.slow_threshold", "200ms")

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.timeout", "5s")
	v.SetDefault("cache.redis.prefix", "lgu:")

	v.SetDefault("auth.jwt.issuer", "lgu-portal")
	v.SetDefault("auth.jwt.access_token_ttl", "1h")
	v.SetDefault("auth.session.ttl", "24h")
	v.SetDefault("auth.session.token_length", 48)
	v.SetDefault("auth.session.cache_ttl", "5m")
	v.SetDefault("auth.session.cookie_name", "lgu_session")
	v.SetDefault("auth.session.cookie_secure", false)
	v.SetDefault("auth.session.same_site", "lax")
	v.SetDefault("auth.lockout.threshold", 5)
	v.SetDefault("auth.lockout.window", "15m")
	v.SetDefault("auth.lockout.suspicious_ips", 3)
	v.SetDefault("auth.lockout.suspicious_window", "1h")
	v.SetDefault("auth.lockout.fail_closed", false)
	v.SetDefault("auth.verification.ttl", "24h")

	v.SetDefault("email.smtp.enabled", false)
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.use_tls", true)
	v.SetDefault("email.smtp.timeout", "10s")

	v.SetDefault("gis.center_lat", 14.5995)
	v.SetDefault("gis.center_lng", 120.9842)
	v.SetDefault("gis.spread", 0.05)

	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.session_schedule", "@hourly")
	v.SetDefault("maintenance.retention_schedule", "@daily")
	v.SetDefault("maintenance.audit_retention_days", 90)
	v.SetDefault("maintenance.login_attempt_retention", "720h")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
