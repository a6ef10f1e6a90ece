// Package config handles application configuration loading and validation using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Mattermost  MattermostConfig  `mapstructure:"mattermost"`
	Database    DatabaseConfig    `mapstructure:"database"`
	CheckIn     CheckInConfig     `mapstructure:"checkin"`
	Fraud       FraudConfig       `mapstructure:"fraud"`
	Leaderboard LeaderboardConfig `mapstructure:"leaderboard"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Badges      []BadgeConfig     `mapstructure:"badges"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// MattermostConfig contains Mattermost webhook notification settings.
type MattermostConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Channel    string `mapstructure:"channel"`
	Enabled    bool   `mapstructure:"enabled"`
}

// DatabaseConfig contains database connection settings for PostgreSQL and Redis.
type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains PostgreSQL database connection and pool settings.
type PostgresConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Database        string `mapstructure:"database"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool   `mapstructure:"auto_migrate"`

	SlowQueryThreshold time.Duration `mapstructure:"slow_query_threshold"`
}

// DSN returns the PostgreSQL connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// URL returns the connection string in URL form, as expected by golang-migrate.
func (p PostgresConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode,
	)
}

// RedisConfig contains Redis cache connection and pool settings.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// CheckInConfig contains check-in verification and locking settings.
type CheckInConfig struct {
	Timezone         string        `mapstructure:"timezone"`
	GPSRadiusMeters  float64       `mapstructure:"gps_radius_meters"`
	PointsPerCheckIn int           `mapstructure:"points_per_check_in"`
	LockTTL          time.Duration `mapstructure:"lock_ttl"`
	LockWait         time.Duration `mapstructure:"lock_wait"`
	MaxDeviceInfo    int           `mapstructure:"max_device_info"`
}

// Location returns the timezone used to derive check-in calendar days.
func (c CheckInConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// FraudConfig contains fraud scoring rule parameters.
type FraudConfig struct {
	BurstWindow          time.Duration `mapstructure:"burst_window"`
	BurstThreshold       int           `mapstructure:"burst_threshold"`
	BurstPenalty         float64       `mapstructure:"burst_penalty"`
	TravelDistanceMeters float64       `mapstructure:"travel_distance_meters"`
	TravelWindowMinutes  int           `mapstructure:"travel_window_minutes"`
	TravelPenalty        float64       `mapstructure:"travel_penalty"`
	MismatchPenalty      float64       `mapstructure:"mismatch_penalty"`
	FlagThreshold        float64       `mapstructure:"flag_threshold"`
}

// LeaderboardConfig contains leaderboard ranking and caching settings.
type LeaderboardConfig struct {
	Limit    int           `mapstructure:"limit"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// SchedulerConfig contains background job scheduler settings.
type SchedulerConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	Time               string `mapstructure:"time"`                // HH:MM of the daily integrity report
	LeaderboardRefresh string `mapstructure:"leaderboard_refresh"` // Cron expression for leaderboard warm-up
	Timezone           string `mapstructure:"timezone"`
	SkipWeekends       bool   `mapstructure:"skip_weekends"`
}

// MetricsConfig contains metrics exporter settings.
type MetricsConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig contains Prometheus metrics exporter settings.
type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig contains application logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// BadgeConfig represents an additional milestone badge appended to the built-in catalog.
type BadgeConfig struct {
	Kind        string         `mapstructure:"kind"`
	Name        string         `mapstructure:"name"`
	Description string         `mapstructure:"description"`
	Icon        string         `mapstructure:"icon"`
	Points      int            `mapstructure:"points"`
	Criteria    CriteriaConfig `mapstructure:"criteria"`
}

// CriteriaConfig is a single metric comparison, e.g. total_check_ins >= 50.
type CriteriaConfig struct {
	Metric   string `mapstructure:"metric"`
	Operator string `mapstructure:"operator"`
	Value    int    `mapstructure:"value"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.ssl_mode", "disable")
	v.SetDefault("database.postgres.max_open_conns", 25)
	v.SetDefault("database.postgres.max_idle_conns", 5)
	v.SetDefault("database.postgres.conn_max_lifetime", 300)
	v.SetDefault("database.postgres.auto_migrate", true)
	v.SetDefault("database.postgres.slow_query_threshold", 200*time.Millisecond)
	v.SetDefault("database.redis.port", 6379)
	v.SetDefault("database.redis.pool_size", 10)

	v.SetDefault("checkin.timezone", "UTC")
	v.SetDefault("checkin.gps_radius_meters", 100.0)
	v.SetDefault("checkin.points_per_check_in", 10)
	v.SetDefault("checkin.lock_ttl", 10*time.Second)
	v.SetDefault("checkin.lock_wait", 3*time.Second)
	v.SetDefault("checkin.max_device_info", 512)

	v.SetDefault("fraud.burst_window", time.Hour)
	v.SetDefault("fraud.burst_threshold", 3)
	v.SetDefault("fraud.burst_penalty", 30.0)
	v.SetDefault("fraud.travel_distance_meters", 100000.0)
	v.SetDefault("fraud.travel_window_minutes", 60)
	v.SetDefault("fraud.travel_penalty", 40.0)
	v.SetDefault("fraud.mismatch_penalty", 20.0)
	v.SetDefault("fraud.flag_threshold", 70.0)

	v.SetDefault("leaderboard.limit", 100)
	v.SetDefault("leaderboard.cache_ttl", 5*time.Minute)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.time", "09:00")
	v.SetDefault("scheduler.leaderboard_refresh", "*/10 * * * *")
	v.SetDefault("scheduler.timezone", "UTC")

	v.SetDefault("metrics.prometheus.enabled", true)
	v.SetDefault("metrics.prometheus.path", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// Load reads configuration from file and environment variables.
// An explicit configPath must exist; otherwise a missing config file falls back to defaults and env.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/checkin-service/")
	}

	// Server configuration
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.environment", "SERVER_ENVIRONMENT")

	// Mattermost configuration
	_ = v.BindEnv("mattermost.webhook_url", "MATTERMOST_WEBHOOK_URL")
	_ = v.BindEnv("mattermost.channel", "MATTERMOST_CHANNEL")
	_ = v.BindEnv("mattermost.enabled", "MATTERMOST_ENABLED")

	// PostgreSQL configuration
	_ = v.BindEnv("database.postgres.host", "POSTGRES_HOST")
	_ = v.BindEnv("database.postgres.port", "POSTGRES_PORT")
	_ = v.BindEnv("database.postgres.database", "POSTGRES_DB")
	_ = v.BindEnv("database.postgres.user", "POSTGRES_USER")
	_ = v.BindEnv("database.postgres.password", "POSTGRES_PASSWORD")
	_ = v.BindEnv("database.postgres.ssl_mode", "POSTGRES_SSL_MODE")
	_ = v.BindEnv("database.postgres.max_open_conns", "POSTGRES_MAX_OPEN_CONNS")
	_ = v.BindEnv("database.postgres.max_idle_conns", "POSTGRES_MAX_IDLE_CONNS")
	_ = v.BindEnv("database.postgres.conn_max_lifetime", "POSTGRES_CONN_MAX_LIFETIME")
	_ = v.BindEnv("database.postgres.auto_migrate", "POSTGRES_AUTO_MIGRATE")
	_ = v.BindEnv("database.postgres.slow_query_threshold", "POSTGRES_SLOW_QUERY_THRESHOLD")

	// Redis configuration
	_ = v.BindEnv("database.redis.host", "REDIS_HOST")
	_ = v.BindEnv("database.redis.port", "REDIS_PORT")
	_ = v.BindEnv("database.redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("database.redis.db", "REDIS_DB")
	_ = v.BindEnv("database.redis.pool_size", "REDIS_POOL_SIZE")

	// Check-in configuration
	_ = v.BindEnv("checkin.timezone", "CHECKIN_TIMEZONE")
	_ = v.BindEnv("checkin.gps_radius_meters", "CHECKIN_GPS_RADIUS_METERS")
	_ = v.BindEnv("checkin.points_per_check_in", "CHECKIN_POINTS_PER_CHECK_IN")
	_ = v.BindEnv("checkin.lock_ttl", "CHECKIN_LOCK_TTL")
	_ = v.BindEnv("checkin.lock_wait", "CHECKIN_LOCK_WAIT")

	// Fraud configuration
	_ = v.BindEnv("fraud.flag_threshold", "FRAUD_FLAG_THRESHOLD")
	_ = v.BindEnv("fraud.burst_threshold", "FRAUD_BURST_THRESHOLD")
	_ = v.BindEnv("fraud.travel_distance_meters", "FRAUD_TRAVEL_DISTANCE_METERS")

	// Leaderboard configuration
	_ = v.BindEnv("leaderboard.limit", "LEADERBOARD_LIMIT")
	_ = v.BindEnv("leaderboard.cache_ttl", "LEADERBOARD_CACHE_TTL")

	// Logging configuration
	_ = v.BindEnv("logging.level", "LOG_LEVEL")
	_ = v.BindEnv("logging.format", "LOG_FORMAT")
	_ = v.BindEnv("logging.output", "LOG_OUTPUT")

	// Scheduler configuration
	_ = v.BindEnv("scheduler.enabled", "SCHEDULER_ENABLED")
	_ = v.BindEnv("scheduler.time", "SCHEDULER_TIME")
	_ = v.BindEnv("scheduler.leaderboard_refresh", "SCHEDULER_LEADERBOARD_REFRESH")
	_ = v.BindEnv("scheduler.timezone", "SCHEDULER_TIMEZONE")
	_ = v.BindEnv("scheduler.skip_weekends", "SCHEDULER_SKIP_WEEKENDS")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if c.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if c.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}
	if c.Database.Redis.Host == "" {
		return fmt.Errorf("database.redis.host is required")
	}
	if c.CheckIn.GPSRadiusMeters <= 0 {
		return fmt.Errorf("checkin.gps_radius_meters must be positive")
	}
	if c.CheckIn.LockTTL <= 0 || c.CheckIn.LockWait <= 0 {
		return fmt.Errorf("checkin.lock_ttl and checkin.lock_wait must be positive")
	}
	if _, err := c.CheckIn.Location(); err != nil {
		return fmt.Errorf("checkin.timezone is invalid: %w", err)
	}
	if c.Fraud.FlagThreshold < 0 || c.Fraud.FlagThreshold > 100 {
		return fmt.Errorf("fraud.flag_threshold must be within [0, 100]")
	}
	if c.Leaderboard.Limit <= 0 {
		return fmt.Errorf("leaderboard.limit must be positive")
	}
	if c.Mattermost.Enabled && c.Mattermost.WebhookURL == "" {
		return fmt.Errorf("mattermost.webhook_url is required when mattermost is enabled")
	}

	seen := make(map[string]bool, len(c.Badges))
	for i, b := range c.Badges {
		if strings.TrimSpace(b.Kind) == "" {
			return fmt.Errorf("badges[%d].kind is required", i)
		}
		if seen[b.Kind] {
			return fmt.Errorf("badges[%d].kind %q is duplicated", i, b.Kind)
		}
		seen[b.Kind] = true
		if b.Criteria.Metric == "" || b.Criteria.Operator == "" {
			return fmt.Errorf("badges[%d] (%s) needs criteria.metric and criteria.operator", i, b.Kind)
		}
	}

	return nil
}

// GetLocation returns the timezone location.
func (c *SchedulerConfig) GetLocation() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}
