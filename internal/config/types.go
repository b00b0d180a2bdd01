package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	AI       AIConfig       `mapstructure:"ai"`
	Triage   TriageConfig   `mapstructure:"triage"`
	Doctors  DoctorsConfig  `mapstructure:"doctors"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Port           int    `mapstructure:"port"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	Environment    string `mapstructure:"environment"`
	// AllowOrigin is echoed in Access-Control-Allow-Origin.
	AllowOrigin string `mapstructure:"allow_origin"`
}

type DatabaseConfig struct {
	URL            string `mapstructure:"url"`
	MigrationsPath string `mapstructure:"migrations_path"`
	ConnectRetries int    `mapstructure:"connect_retries"`
	MaxOpenConns   int    `mapstructure:"max_open_conns"`
	MaxIdleConns   int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Addr           string `mapstructure:"addr"`
	Password       string `mapstructure:"password"`
	DB             int    `mapstructure:"db"`
	FlowTTLMinutes int    `mapstructure:"flow_ttl_minutes"`
}

func (r RedisConfig) FlowTTL() time.Duration {
	return time.Duration(r.FlowTTLMinutes) * time.Minute
}

type AIConfig struct {
	APIKey          string `mapstructure:"api_key"`
	Model           string `mapstructure:"model"`
	BaseURL         string `mapstructure:"base_url"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	Retries         int    `mapstructure:"retries"`
	RetryDelayMs    int    `mapstructure:"retry_delay_ms"`
	CooldownSeconds int    `mapstructure:"cooldown_seconds"`
}

func (a AIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

func (a AIConfig) RetryDelay() time.Duration {
	return time.Duration(a.RetryDelayMs) * time.Millisecond
}

func (a AIConfig) Cooldown() time.Duration {
	return time.Duration(a.CooldownSeconds) * time.Second
}

type TriageConfig struct {
	MaxQuestions        int     `mapstructure:"max_questions"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	ActiveConditions    int     `mapstructure:"active_conditions"`
}

type DoctorsConfig struct {
	NominatimURL       string `mapstructure:"nominatim_url"`
	OverpassURL        string `mapstructure:"overpass_url"`
	UserAgent          string `mapstructure:"user_agent"`
	CountryCode        string `mapstructure:"country_code"`
	CountryName        string `mapstructure:"country_name"`
	SearchRadiusMeters int    `mapstructure:"search_radius_meters"`
	KeywordsFile       string `mapstructure:"keywords_file"`
}

type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
	APIURL string `mapstructure:"api_url"`
}

type LoggingConfig struct {
	Level  string        `mapstructure:"level"`  // debug, info, warn, error
	Format string        `mapstructure:"format"` // json, console
	File   FileLogConfig `mapstructure:"file"`
}

type FileLogConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Triage.MaxQuestions <= 0 {
		return fmt.Errorf("triage.max_questions must be positive")
	}
	if c.Triage.ConfidenceThreshold <= 0 || c.Triage.ConfidenceThreshold > 1 {
		return fmt.Errorf("triage.confidence_threshold must be in (0,1], got %v", c.Triage.ConfidenceThreshold)
	}
	if c.Triage.ActiveConditions <= 0 {
		return fmt.Errorf("triage.active_conditions must be positive")
	}
	if c.AI.Retries < 0 {
		return fmt.Errorf("ai.retries must not be negative")
	}
	if c.Redis.FlowTTLMinutes <= 0 {
		return fmt.Errorf("redis.flow_ttl_minutes must be positive")
	}
	return nil
}
