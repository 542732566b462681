package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds runtime configuration for the receiver service. Field names
// map one-to-one onto flat environment variables; a .env file in the
// working directory supplies defaults for local runs.
type Config struct {
	HTTPPort                 string        `mapstructure:"HTTP_PORT" validate:"required"`
	LogLevel                 string        `mapstructure:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn error"`
	LogFilePath              string        `mapstructure:"LOG_FILE_PATH" validate:"required"`
	StudentSecret            string        `mapstructure:"STUDENT_SECRET"`
	MaxConcurrentTasks       int           `mapstructure:"MAX_CONCURRENT_TASKS" validate:"min=1"`
	KeepAliveIntervalSeconds int           `mapstructure:"KEEP_ALIVE_INTERVAL_SECONDS" validate:"min=1"`
	ShutdownGracePeriod      time.Duration `mapstructure:"SHUTDOWN_GRACE_PERIOD"`
	GeminiAPIKey             string        `mapstructure:"GEMINI_API_KEY"`
	GeminiModel              string        `mapstructure:"GEMINI_MODEL" validate:"required"`
	GithubToken              string        `mapstructure:"GITHUB_TOKEN"`
	GithubUsername           string        `mapstructure:"GITHUB_USERNAME"`
	GithubAPIBase            string        `mapstructure:"GITHUB_API_BASE" validate:"required,url"`
	GithubPagesBase          string        `mapstructure:"GITHUB_PAGES_BASE" validate:"omitempty,url"`
}

// KeepAlive returns the heartbeat period.
func (c Config) KeepAlive() time.Duration {
	return time.Duration(c.KeepAliveIntervalSeconds) * time.Second
}

// keys lists every binding so real environment variables override both the
// defaults and the .env file. Viper needs the explicit BindEnv calls: with
// AutomaticEnv alone, Unmarshal misses variables that have no default.
var keys = []string{
	"HTTP_PORT",
	"LOG_LEVEL",
	"LOG_FILE_PATH",
	"STUDENT_SECRET",
	"MAX_CONCURRENT_TASKS",
	"KEEP_ALIVE_INTERVAL_SECONDS",
	"SHUTDOWN_GRACE_PERIOD",
	"GEMINI_API_KEY",
	"GEMINI_MODEL",
	"GITHUB_TOKEN",
	"GITHUB_USERNAME",
	"GITHUB_API_BASE",
	"GITHUB_PAGES_BASE",
}

// Load reads configuration from the environment plus an optional .env file
// in the working directory.
func Load() (Config, error) {
	return LoadFrom(".env")
}

// LoadFrom reads configuration using the given env file path. A missing
// file is fine; an unreadable or malformed one is not.
func LoadFrom(envFile string) (Config, error) {
	v := viper.New()

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FILE_PATH", "logs/app.log")
	v.SetDefault("STUDENT_SECRET", "")
	v.SetDefault("MAX_CONCURRENT_TASKS", 2)
	v.SetDefault("KEEP_ALIVE_INTERVAL_SECONDS", 30)
	v.SetDefault("SHUTDOWN_GRACE_PERIOD", "500ms")
	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("GEMINI_MODEL", "gemini-2.5-flash-preview-05-20")
	v.SetDefault("GITHUB_TOKEN", "")
	v.SetDefault("GITHUB_USERNAME", "")
	v.SetDefault("GITHUB_API_BASE", "https://api.github.com")
	v.SetDefault("GITHUB_PAGES_BASE", "")

	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read %s: %w", envFile, err)
		}
	}

	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if cfg.GithubPagesBase == "" && cfg.GithubUsername != "" {
		cfg.GithubPagesBase = fmt.Sprintf("https://%s.github.io", strings.ToLower(cfg.GithubUsername))
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
