package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server        ServerConfig       `mapstructure:"server"`
	Storage       StorageConfig      `mapstructure:"storage"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	Engine        EngineConfig       `mapstructure:"engine"`
	Apps          []AppConfig        `mapstructure:"apps"`
	Notifications NotificationConfig `mapstructure:"notifications"`
}

// ServerConfig defines server ports and addresses
type ServerConfig struct {
	APIPort     int    `mapstructure:"api_port"`
	MetricsPort int    `mapstructure:"metrics_port"`
	BindAddress string `mapstructure:"bind_address"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"` // "memory", "bolt" or "redis"
	Path  string      `mapstructure:"path"` // bolt database file
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EngineConfig defines the usage simulation and reward policy
type EngineConfig struct {
	TickPeriod      string `mapstructure:"tick_period"`
	MaxIncrement    string `mapstructure:"max_increment"`
	RewardCooldown  string `mapstructure:"reward_cooldown"`
	BucketMinutes   int    `mapstructure:"bucket_minutes"`
	BonusPerBucket  int64  `mapstructure:"bonus_per_bucket"`
	PenaltyOnExceed int64  `mapstructure:"penalty_on_exceed"`
	LockDuration    string `mapstructure:"lock_duration"`
	LockReward      int64  `mapstructure:"lock_reward"`
	BreakReward     int64  `mapstructure:"break_reward"`
	StartingBalance int64  `mapstructure:"starting_balance"`
	DailyResetTime  string `mapstructure:"daily_reset_time"`
	Seed            int64  `mapstructure:"seed"` // zero picks a random seed
}

// AppConfig defines a tracked app and its default daily limit
type AppConfig struct {
	Name         string `mapstructure:"name"`
	Color        string `mapstructure:"color"`
	Icon         string `mapstructure:"icon"`
	LimitMinutes int    `mapstructure:"limit_minutes"`
}

// NotificationConfig defines notification delivery settings
type NotificationConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	MaxPendingActions int  `mapstructure:"max_pending_actions"`
	Log               bool `mapstructure:"log"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	SetDefaults(v)

	// Configure viper
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("TIMEGUARDIAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// DefaultApps are the apps tracked when the configuration names none.
var DefaultApps = []AppConfig{
	{Name: "Instagram", Color: "#E1306C", Icon: "instagram", LimitMinutes: 60},
	{Name: "Facebook", Color: "#4267B2", Icon: "facebook", LimitMinutes: 45},
	{Name: "TikTok", Color: "#000000", Icon: "video", LimitMinutes: 30},
}

// SetDefaults sets default configuration values
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.api_port", 8080)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.bind_address", "127.0.0.1")

	// Storage defaults
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", "/var/lib/timeguardian/timeguardian.bolt")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Engine defaults
	v.SetDefault("engine.tick_period", "1m")
	v.SetDefault("engine.max_increment", "10m")
	v.SetDefault("engine.reward_cooldown", "5m")
	v.SetDefault("engine.bucket_minutes", 30)
	v.SetDefault("engine.bonus_per_bucket", 10)
	v.SetDefault("engine.penalty_on_exceed", 5)
	v.SetDefault("engine.lock_duration", "1h")
	v.SetDefault("engine.lock_reward", 50)
	v.SetDefault("engine.break_reward", 15)
	v.SetDefault("engine.starting_balance", 0)
	v.SetDefault("engine.daily_reset_time", "00:00")
	v.SetDefault("engine.seed", 0)

	// Notification defaults
	v.SetDefault("notifications.enabled", true)
	v.SetDefault("notifications.max_pending_actions", 256)
	v.SetDefault("notifications.log", true)
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.APIPort <= 0 || cfg.Server.APIPort > 65535 {
		return fmt.Errorf("invalid API port: %d", cfg.Server.APIPort)
	}
	if cfg.Server.MetricsPort < 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	switch cfg.Storage.Type {
	case "memory", "redis":
	case "bolt":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required for bolt storage")
		}
		// Ensure storage directory exists
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	case "":
		cfg.Storage.Type = "bolt"
	default:
		return fmt.Errorf("unsupported storage type: %s (must be memory, bolt or redis)", cfg.Storage.Type)
	}

	for name, value := range map[string]string{
		"engine.tick_period":     cfg.Engine.TickPeriod,
		"engine.max_increment":   cfg.Engine.MaxIncrement,
		"engine.reward_cooldown": cfg.Engine.RewardCooldown,
		"engine.lock_duration":   cfg.Engine.LockDuration,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d < 0 || (name == "engine.tick_period" && d == 0) {
			return fmt.Errorf("invalid %s: %s", name, value)
		}
	}

	if _, err := time.Parse("15:04", cfg.Engine.DailyResetTime); err != nil {
		return fmt.Errorf("invalid engine.daily_reset_time %q (want HH:MM): %w", cfg.Engine.DailyResetTime, err)
	}
	if cfg.Engine.BucketMinutes <= 0 {
		return fmt.Errorf("engine.bucket_minutes must be positive, got %d", cfg.Engine.BucketMinutes)
	}
	if cfg.Engine.PenaltyOnExceed < 0 || cfg.Engine.BonusPerBucket < 0 {
		return fmt.Errorf("engine bonus and penalty must not be negative")
	}
	if cfg.Engine.StartingBalance < 0 {
		return fmt.Errorf("engine.starting_balance must not be negative")
	}

	if len(cfg.Apps) == 0 {
		cfg.Apps = append([]AppConfig(nil), DefaultApps...)
	}
	seen := make(map[string]bool, len(cfg.Apps))
	for i := range cfg.Apps {
		app := &cfg.Apps[i]
		if app.Name == "" {
			return fmt.Errorf("apps[%d]: name is required", i)
		}
		if seen[app.Name] {
			return fmt.Errorf("apps[%d]: duplicate app %q", i, app.Name)
		}
		seen[app.Name] = true
		if app.LimitMinutes < 0 {
			return fmt.Errorf("apps[%d]: limit_minutes must not be negative", i)
		}
	}

	if cfg.Notifications.MaxPendingActions <= 0 {
		cfg.Notifications.MaxPendingActions = 256
	}

	return nil
}

// ParseDuration parses a duration string with a fallback
func ParseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
