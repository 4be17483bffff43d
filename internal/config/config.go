package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	PlatformDiscord  = "discord"
	PlatformTelegram = "telegram"

	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"

	SpamBackendMemory = "memory"
	SpamBackendRedis  = "redis"
)

// global configuration structure
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Automod   AutomodConfig   `mapstructure:"automod"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	API       APIConfig       `mapstructure:"api"`
}

// chat platform bot configuration
type BotConfig struct {
	Platform              string        `mapstructure:"platform" validate:"oneof=discord telegram"`
	Token                 string        `mapstructure:"token" validate:"required"`
	Prefix                string        `mapstructure:"prefix" validate:"required"`
	MaxConcurrentMessages int           `mapstructure:"max_concurrent_messages" validate:"min=1"`
	MessageTimeout        time.Duration `mapstructure:"message_timeout" validate:"gt=0"`
	Webhook               WebhookConfig `mapstructure:"webhook"`
}

// Telegram webhook settings. Long polling is used when Endpoint is empty.
type WebhookConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Path     string `mapstructure:"path"`
	Secret   string `mapstructure:"secret"`
}

// logging configuration
type LoggerConfig struct {
	Directory   string            `mapstructure:"directory"`
	Rotation    LogRotationConfig `mapstructure:"rotation"`
	Level       string            `mapstructure:"level" validate:"oneof=DEBUG INFO WARNING ERROR FATAL"`
	Console     bool              `mapstructure:"console"`
	RecentLines int               `mapstructure:"recent_lines" validate:"min=0"`
}

// log rotation settings
type LogRotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver" validate:"oneof=sqlite mysql"`
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Charset  string `mapstructure:"charset"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// defaults applied to a community the first time it is seen
type AutomodDefaults struct {
	Enabled         bool    `mapstructure:"enabled"`
	AntiInvite      bool    `mapstructure:"anti_invite"`
	AntiLink        bool    `mapstructure:"anti_link"`
	AntiCaps        bool    `mapstructure:"anti_caps"`
	CapsThreshold   int     `mapstructure:"caps_threshold" validate:"min=0,max=100"`
	SpamIntervalSec float64 `mapstructure:"spam_interval_sec" validate:"gt=0,lte=3600"`
	SpamBurst       int     `mapstructure:"spam_burst" validate:"min=1"`
	SpamTimeoutMin  int     `mapstructure:"spam_timeout_min" validate:"min=1,max=40320"`
	Language        string  `mapstructure:"language" validate:"oneof=en fr"`
}

type AutomodConfig struct {
	Defaults      AutomodDefaults `mapstructure:"defaults"`
	ActionTimeout time.Duration   `mapstructure:"action_timeout" validate:"gt=0"`
	SpamBackend   string          `mapstructure:"spam_backend" validate:"oneof=memory redis"`
	SweepInterval time.Duration   `mapstructure:"sweep_interval" validate:"gt=0"`
}

type SchedulerConfig struct {
	ReminderInterval time.Duration `mapstructure:"reminder_interval" validate:"gt=0"`
	ReminderBatch    int           `mapstructure:"reminder_batch" validate:"min=1"`
	GiveawayInterval time.Duration `mapstructure:"giveaway_interval" validate:"gt=0"`
	GiveawayBatch    int           `mapstructure:"giveaway_batch" validate:"min=1"`
}

// admin HTTP API
type APIConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Listen   string `mapstructure:"listen"`
	AdminKey string `mapstructure:"admin_key"`
}

var cfg *Config

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetEnvPrefix("LEVIATHAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	log.Printf("Using config file: %s", v.ConfigFileUsed())

	c, err := decode(v)
	if err != nil {
		return nil, err
	}
	cfg = c
	return cfg, nil
}

// Defaults returns a configuration populated only from defaults. Tests and the
// migrate command use it when no file is given.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)
	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		panic(err)
	}
	return c
}

func decode(v *viper.Viper) (*Config, error) {
	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := Validate(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks struct tags plus the cross-field rules tags cannot express.
func Validate(c *Config) error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Database.Driver == DriverMySQL && c.Database.Host == "" {
		return fmt.Errorf("invalid config: database.host is required for mysql")
	}
	if c.Automod.SpamBackend == SpamBackendRedis && c.Redis.URL == "" {
		return fmt.Errorf("invalid config: redis.url is required for the redis spam backend")
	}
	if c.API.Enabled && c.API.AdminKey == "" {
		return fmt.Errorf("invalid config: api.admin_key is required when the api is enabled")
	}
	return nil
}

func Get() *Config {
	if cfg == nil {
		log.Fatal("Configuration not initialized, call Load() first")
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.platform", PlatformDiscord)
	v.SetDefault("bot.token", "")
	v.SetDefault("bot.prefix", "!")
	v.SetDefault("bot.max_concurrent_messages", 100)
	v.SetDefault("bot.message_timeout", "10s")
	v.SetDefault("bot.webhook.endpoint", "")
	v.SetDefault("bot.webhook.path", "/telegram")
	v.SetDefault("bot.webhook.secret", "")

	v.SetDefault("logger.directory", "logs")
	v.SetDefault("logger.rotation.max_size", 10)
	v.SetDefault("logger.rotation.max_backups", 30)
	v.SetDefault("logger.rotation.max_age", 90)
	v.SetDefault("logger.rotation.compress", true)
	v.SetDefault("logger.level", "INFO")
	v.SetDefault("logger.console", true)
	v.SetDefault("logger.recent_lines", 400)

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "leviathan.db")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.charset", "utf8mb4")

	v.SetDefault("redis.url", "")

	v.SetDefault("automod.defaults.enabled", true)
	v.SetDefault("automod.defaults.anti_invite", true)
	v.SetDefault("automod.defaults.anti_link", false)
	v.SetDefault("automod.defaults.anti_caps", false)
	v.SetDefault("automod.defaults.caps_threshold", 70)
	v.SetDefault("automod.defaults.spam_interval_sec", 2.0)
	v.SetDefault("automod.defaults.spam_burst", 5)
	v.SetDefault("automod.defaults.spam_timeout_min", 10)
	v.SetDefault("automod.defaults.language", "en")
	v.SetDefault("automod.action_timeout", "5s")
	v.SetDefault("automod.spam_backend", SpamBackendMemory)
	v.SetDefault("automod.sweep_interval", "10m")

	v.SetDefault("scheduler.reminder_interval", "10s")
	v.SetDefault("scheduler.reminder_batch", 20)
	v.SetDefault("scheduler.giveaway_interval", "15s")
	v.SetDefault("scheduler.giveaway_batch", 10)

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.listen", ":8080")
	v.SetDefault("api.admin_key", "")
}
