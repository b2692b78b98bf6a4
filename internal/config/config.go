package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

type Config struct {
	AppEnv       string          `mapstructure:"app_env"`
	TimeZone     string          `mapstructure:"app_timezone"`
	Server       ServerConfig    `mapstructure:"server"`
	Database     DatabaseConfig  `mapstructure:"db"`
	Redis        RedisConfig     `mapstructure:"redis"`
	Kafka        KafkaConfig     `mapstructure:"kafka"`
	Schedule     ScheduleConfig  `mapstructure:"schedule"`
	Notification NotifyConfig    `mapstructure:"notify"`
	Telemetry    TelemetryConfig `mapstructure:"otel"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	// requests per second per client IP on the automation endpoints
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	Port            string        `mapstructure:"port"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MaxRetries      int           `mapstructure:"max_retries"`
	// apply the embedded schema on startup
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// RedisConfig is optional; an empty Addr disables the job run lock.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
}

type KafkaConfig struct {
	Broker             string        `mapstructure:"broker"`
	ConsumerGroup      string        `mapstructure:"consumer_group"`
	OutboxPollInterval time.Duration `mapstructure:"outbox_poll_interval"`
}

// ScheduleConfig holds robfig/cron specs per job.
type ScheduleConfig struct {
	ShiftStatus string `mapstructure:"shift_status"`
	Escalation  string `mapstructure:"escalation"`
	Closure     string `mapstructure:"closure"`
	Timesheets  string `mapstructure:"timesheets"`
}

type NotifyConfig struct {
	// base URL of the send-email / send-sms / send-whatsapp functions
	FunctionsURL     string        `mapstructure:"functions_url"`
	FunctionsToken   string        `mapstructure:"functions_token"`
	Timeout          time.Duration `mapstructure:"timeout"`
	AdminAlertEmail  string        `mapstructure:"admin_alert_email"`
	ApprovalLinkBase string        `mapstructure:"approval_link_base"`
}

type TelemetryConfig struct {
	Endpoint    string `mapstructure:"exporter_otlp_endpoint"`
	Insecure    bool   `mapstructure:"exporter_otlp_insecure"`
	ServiceName string `mapstructure:"service_name"`
}

// Load reads configuration from the environment. Nested keys map to
// upper-case env names with underscores: db.host -> DB_HOST,
// schedule.shift_status -> SCHEDULE_SHIFT_STATUS.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it during
// Unmarshal; viper only consults the environment for keys it knows.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", "development")
	v.SetDefault("app_timezone", "UTC")

	v.SetDefault("server.port", "3000")
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.rate_limit", 1.0)
	v.SetDefault("server.rate_burst", 5)

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "stafflink")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", time.Hour)
	v.SetDefault("db.max_retries", 5)
	v.SetDefault("db.auto_migrate", false)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")

	v.SetDefault("kafka.broker", "")
	v.SetDefault("kafka.consumer_group", "stafflink-notifications")
	v.SetDefault("kafka.outbox_poll_interval", 3*time.Second)

	v.SetDefault("schedule.shift_status", "@every 5m")
	v.SetDefault("schedule.escalation", "@every 5m")
	v.SetDefault("schedule.closure", "0 9 * * *")
	v.SetDefault("schedule.timesheets", "@every 15m")

	v.SetDefault("notify.functions_url", "")
	v.SetDefault("notify.functions_token", "")
	v.SetDefault("notify.timeout", 10*time.Second)
	v.SetDefault("notify.admin_alert_email", "")
	v.SetDefault("notify.approval_link_base", "")

	v.SetDefault("otel.exporter_otlp_endpoint", "")
	v.SetDefault("otel.exporter_otlp_insecure", false)
	v.SetDefault("otel.service_name", "stafflink")
}

func (c *Config) Validate() error {
	if c.Database.Host == "" || c.Database.Name == "" {
		return errors.New("db host and name are required")
	}
	if c.Database.MaxRetries < 1 {
		return errors.New("db max_retries must be at least 1")
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("app_timezone %q: %w", c.TimeZone, err)
	}
	if c.Server.RateLimit <= 0 || c.Server.RateBurst < 1 {
		return errors.New("server rate_limit and rate_burst must be positive")
	}
	return nil
}

// Location returns the zone shift wall-clock times are interpreted in.
// Validate has already checked the name.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
