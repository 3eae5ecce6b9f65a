package config

import (
	"fmt"
	"time"
)

type ServerConfig struct {
	Mode     string `mapstructure:"mode"`
	Timezone string `mapstructure:"timezone"`
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Path            string `mapstructure:"path"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&collation=utf8mb4_general_ci&parseTime=true&loc=UTC",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// NumberingConfig controls the human readable report number
// {prefix}-{year}-{city_code}-{sequence}.
type NumberingConfig struct {
	Prefix   string `mapstructure:"prefix"`
	CityCode string `mapstructure:"city_code"`
	PadWidth int    `mapstructure:"pad_width"`
}

type ClassificationConfig struct {
	Enabled                    bool    `mapstructure:"enabled"`
	DuplicateDetection         bool    `mapstructure:"duplicate_detection"`
	AnthropicAPIKey            string  `mapstructure:"anthropic_api_key"`
	Model                      string  `mapstructure:"model"`
	ModelVersion               string  `mapstructure:"model_version"`
	AcceptThreshold            float64 `mapstructure:"accept_threshold"`
	AutoAssignThreshold        float64 `mapstructure:"auto_assign_threshold"`
	AutoAssignOfficerThreshold float64 `mapstructure:"auto_assign_officer_threshold"`
	DuplicateThreshold         float64 `mapstructure:"duplicate_threshold"`
	DuplicateHighConfidence    float64 `mapstructure:"duplicate_high_confidence"`
	DuplicateWindowDays        int     `mapstructure:"duplicate_window_days"`
	EmbeddingDimensions        int     `mapstructure:"embedding_dimensions"`
	EmbeddingCacheSize         int     `mapstructure:"embedding_cache_size"`
	AssignmentStrategy         string  `mapstructure:"assignment_strategy"`
}

type SLAConfig struct {
	WarningFraction float64       `mapstructure:"warning_fraction"`
	MinWarning      time.Duration `mapstructure:"min_warning"`
}

type WorkerConfig struct {
	Concurrency       int           `mapstructure:"concurrency"`
	PollTimeout       time.Duration `mapstructure:"poll_timeout"`
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout"`
}

type MonitorConfig struct {
	SLAInterval      time.Duration `mapstructure:"sla_interval"`
	StaleInterval    time.Duration `mapstructure:"stale_interval"`
	RecoveryInterval time.Duration `mapstructure:"recovery_interval"`
}

type ProbeConfig struct {
	Addr string `mapstructure:"addr"`
}
