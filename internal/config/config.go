// Package config loads application configuration from config.yaml and
// APPRAISAL_-prefixed environment variables.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Roster    RosterConfig    `yaml:"roster" mapstructure:"roster"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	MarketBay MarketBayConfig `yaml:"marketbay" mapstructure:"marketbay"`
	Dedupe    DedupeConfig    `yaml:"dedupe" mapstructure:"dedupe"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// CacheConfig configures the evaluation cache backend.
type CacheConfig struct {
	// Backend is one of memory, sqlite, postgres, redis.
	Backend     string `yaml:"backend" mapstructure:"backend"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	RedisAddr   string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisDB     int    `yaml:"redis_db" mapstructure:"redis_db"`
}

// RosterConfig points at the expert/price-source roster file.
type RosterConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// AnthropicConfig holds Anthropic API settings for the Claude experts.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
	// Models is the ordered fallback chain for each Claude expert.
	Models []string `yaml:"models" mapstructure:"models"`
}

// MarketBayConfig holds MarketBay sold-listings API settings.
type MarketBayConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// DedupeConfig configures near-duplicate detection.
type DedupeConfig struct {
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`
}

// PipelineConfig configures evaluation orchestration.
type PipelineConfig struct {
	TimeoutSecs      int  `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	PartialOnTimeout bool `yaml:"partial_on_timeout" mapstructure:"partial_on_timeout"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("APPRAISAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secrets default empty so AutomaticEnv can see the keys.
	v.SetDefault("cache.backend", "sqlite")
	v.SetDefault("cache.path", "appraisal-cache.db")
	v.SetDefault("cache.database_url", "")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("marketbay.key", "")
	v.SetDefault("roster.path", "sources.yaml")
	v.SetDefault("anthropic.models", []string{
		"claude-sonnet-4-5-20250929",
		"claude-haiku-4-5-20251001",
	})
	v.SetDefault("marketbay.base_url", "https://api.marketbay.example.com/v1")
	v.SetDefault("marketbay.rate_limit", 5.0)
	v.SetDefault("dedupe.threshold", 0.85)
	v.SetDefault("pipeline.timeout_secs", 120)
	v.SetDefault("pipeline.partial_on_timeout", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
