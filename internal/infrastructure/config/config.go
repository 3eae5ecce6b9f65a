package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"

	sharedConfig "github.com/civictrack/civictrack/internal/shared/config"
)

type Config struct {
	Server         sharedConfig.ServerConfig         `mapstructure:"server"`
	Database       sharedConfig.DatabaseConfig       `mapstructure:"database"`
	Logger         sharedConfig.LoggerConfig         `mapstructure:"logger"`
	Redis          sharedConfig.RedisConfig          `mapstructure:"redis"`
	Numbering      sharedConfig.NumberingConfig      `mapstructure:"numbering"`
	Classification sharedConfig.ClassificationConfig `mapstructure:"classification"`
	SLA            sharedConfig.SLAConfig            `mapstructure:"sla"`
	Worker         sharedConfig.WorkerConfig         `mapstructure:"worker"`
	Monitor        sharedConfig.MonitorConfig        `mapstructure:"monitor"`
	Probe          sharedConfig.ProbeConfig          `mapstructure:"probe"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load loads configuration from file and environment variables.
// A missing config file is tolerated; defaults and CIVICTRACK_* variables apply.
func Load(env string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../configs")
	v.AddConfigPath("../../configs")

	v.SetEnvPrefix("CIVICTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if env != "" && env != "default" {
		v.Set("server.mode", env)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	appConfigMu.Lock()
	appConfig = &config
	appConfigMu.Unlock()

	return &config, nil
}

// Get returns the loaded configuration
func Get() *Config {
	appConfigMu.RLock()
	defer appConfigMu.RUnlock()
	return appConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "development")
	v.SetDefault("server.timezone", "UTC")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.path", "civictrack.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.username", "root")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.database", "civictrack_dev")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output_path", "stdout")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("numbering.prefix", "CIV")
	v.SetDefault("numbering.city_code", "GEN")
	v.SetDefault("numbering.pad_width", 6)

	v.SetDefault("classification.enabled", true)
	v.SetDefault("classification.duplicate_detection", true)
	v.SetDefault("classification.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("classification.model_version", "civic-classifier-v1")
	v.SetDefault("classification.accept_threshold", 0.40)
	v.SetDefault("classification.auto_assign_threshold", 0.60)
	v.SetDefault("classification.auto_assign_officer_threshold", 0.80)
	v.SetDefault("classification.duplicate_threshold", 0.85)
	v.SetDefault("classification.duplicate_high_confidence", 0.95)
	v.SetDefault("classification.duplicate_window_days", 30)
	v.SetDefault("classification.embedding_dimensions", 256)
	v.SetDefault("classification.embedding_cache_size", 10000)
	v.SetDefault("classification.assignment_strategy", "balanced")

	v.SetDefault("sla.warning_fraction", 0.2)
	v.SetDefault("sla.min_warning", "2h")

	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.poll_timeout", "5s")
	v.SetDefault("worker.visibility_timeout", "10m")

	v.SetDefault("monitor.sla_interval", "1h")
	v.SetDefault("monitor.stale_interval", "6h")
	v.SetDefault("monitor.recovery_interval", "5m")

	v.SetDefault("probe.addr", ":9090")
}
