// Package config handles configuration management for pushbridge.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the daemon.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Watcher WatcherConfig `mapstructure:"watcher"`
	Journal JournalConfig `mapstructure:"journal"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds the WebSocket fan-out server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// WatcherConfig holds the file-source configuration.
type WatcherConfig struct {
	Path           string   `mapstructure:"path"`
	DebounceMS     int      `mapstructure:"debounce_ms"`
	IgnorePatterns []string `mapstructure:"ignore_patterns"`
}

// JournalConfig holds the SQLite journal configuration.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultIgnorePatterns are path components that never produce events.
var DefaultIgnorePatterns = []string{
	".git",
	"node_modules",
	"*.swp",
	"*.tmp",
	".DS_Store",
}

// Load loads configuration from files and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.pushbridge")
		v.AddConfigPath("/etc/pushbridge")
	}

	v.SetEnvPrefix("PUSHBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := postProcess(&cfg); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8875)

	v.SetDefault("watcher.path", "")
	v.SetDefault("watcher.debounce_ms", 100)
	v.SetDefault("watcher.ignore_patterns", DefaultIgnorePatterns)

	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.path", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// postProcess applies post-processing to configuration.
func postProcess(cfg *Config) error {
	if cfg.Watcher.Path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		cfg.Watcher.Path = cwd
	}

	absPath, err := filepath.Abs(cfg.Watcher.Path)
	if err != nil {
		return fmt.Errorf("failed to resolve watch path: %w", err)
	}
	cfg.Watcher.Path = absPath

	if cfg.Journal.Enabled && cfg.Journal.Path == "" {
		cfg.Journal.Path = filepath.Join(cfg.Watcher.Path, ".pushbridge", "journal.db")
	}

	return nil
}

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Watcher.DebounceMS < 0 {
		return fmt.Errorf("invalid debounce: %d ms", cfg.Watcher.DebounceMS)
	}

	info, err := os.Stat(cfg.Watcher.Path)
	if err != nil {
		return fmt.Errorf("watch path %s: %w", cfg.Watcher.Path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch path %s is not a directory", cfg.Watcher.Path)
	}

	return nil
}
