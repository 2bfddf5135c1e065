package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	pkgredis "github.com/pawdose/medtrack-api/pkg/messaging/redis"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

// SchedulerConfig drives the three periodic sweeps and the dose engine
// constants.
type SchedulerConfig struct {
	ReminderInterval    time.Duration `mapstructure:"reminder_interval"`
	OverdueInterval     time.Duration `mapstructure:"overdue_interval"`
	MaterializeInterval time.Duration `mapstructure:"materialize_interval"`
	MaterializeHorizon  time.Duration `mapstructure:"materialize_horizon"`
	ReminderLeadTime    time.Duration `mapstructure:"reminder_lead_time"`
	OverdueGrace        time.Duration `mapstructure:"overdue_grace"`
	SnoozeDelay         time.Duration `mapstructure:"snooze_delay"`
	LogMatchTolerance   time.Duration `mapstructure:"log_match_tolerance"`
	MedicationCacheTTL  time.Duration `mapstructure:"medication_cache_ttl"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("MEDTRACK")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 15*time.Second)
	viper.SetDefault("server.write_timeout", 15*time.Second)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")

	viper.SetDefault("redis.url", "redis://localhost:6379/0")
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 2)

	viper.SetDefault("scheduler.reminder_interval", time.Minute)
	viper.SetDefault("scheduler.overdue_interval", 5*time.Minute)
	viper.SetDefault("scheduler.materialize_interval", 24*time.Hour)
	viper.SetDefault("scheduler.materialize_horizon", 30*24*time.Hour)
	viper.SetDefault("scheduler.reminder_lead_time", 15*time.Minute)
	viper.SetDefault("scheduler.overdue_grace", 30*time.Minute)
	viper.SetDefault("scheduler.snooze_delay", 15*time.Minute)
	viper.SetDefault("scheduler.log_match_tolerance", 6*time.Hour)
	viper.SetDefault("scheduler.medication_cache_ttl", 5*time.Minute)

	viper.SetDefault("rate_limit.rps", 50.0)
	viper.SetDefault("rate_limit.burst", 100)
}

func (c *RedisConfig) ToBrokerConfig() pkgredis.Config {
	return pkgredis.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}
