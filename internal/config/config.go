package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the process configuration, loaded once at startup.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Business BusinessConfig `mapstructure:"business"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	Notification string `mapstructure:"notification"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type BusinessConfig struct {
	StatsWindowMonths        int `mapstructure:"stats_window_months"`
	StatsCacheTTLSeconds     int `mapstructure:"stats_cache_ttl_seconds"`
	PlanLockTTLSeconds       int `mapstructure:"plan_lock_ttl_seconds"`
	MaxRetryCount            int `mapstructure:"max_retry_count"`
	OutboxIntervalMillis     int `mapstructure:"outbox_interval_millis"`
	ReconcileIntervalSeconds int `mapstructure:"reconcile_interval_seconds"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("mysql.max_open_conns", 20)
	v.SetDefault("mysql.max_idle_conns", 5)
	v.SetDefault("redis.port", 6379)
	v.SetDefault("kafka.topic.notification", "ledger.notification")
	v.SetDefault("business.stats_window_months", 6)
	v.SetDefault("business.stats_cache_ttl_seconds", 300)
	v.SetDefault("business.plan_lock_ttl_seconds", 30)
	v.SetDefault("business.max_retry_count", 5)
	v.SetDefault("business.outbox_interval_millis", 500)
	v.SetDefault("business.reconcile_interval_seconds", 3600)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// LoadConfig reads the YAML file at configPath. Any key can be overridden by an
// environment variable with the LEDGER_ prefix, e.g. LEDGER_MYSQL_PASSWORD.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", configPath, err)
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if m := c.Business.StatsWindowMonths; m < 1 || m > 24 {
		return fmt.Errorf("business.stats_window_months must be within 1..24, got %d", m)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	return nil
}
