package config

import (
	"encoding/json"
	"fmt"
)

// Config represents the main telsh configuration
type Config struct {
	// Telegram
	Telegram TelegramConfig `json:"telegram" mapstructure:"telegram"`

	// Shell session behavior
	Shell ShellConfig `json:"shell" mapstructure:"shell"`

	// Transfer (remote copy) behavior
	Transfer TransferConfig `json:"transfer" mapstructure:"transfer"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics endpoint
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken  string  `json:"bot_token" mapstructure:"bot_token"`
	Allowlist []int64 `json:"allowlist" mapstructure:"allowlist"`
}

// ShellConfig holds per-session shell settings
type ShellConfig struct {
	Command        string `json:"command" mapstructure:"command"`                 // interactive shell binary
	FlushInterval  int    `json:"flush_interval" mapstructure:"flush_interval"`   // seconds between periodic flushes
	IdleTimeout    int    `json:"idle_timeout" mapstructure:"idle_timeout"`       // minutes before the reaper ends a session, 0 disables
	HistoryEnabled bool   `json:"history_enabled" mapstructure:"history_enabled"` // record dispatched commands
}

// TransferConfig holds /rc progress reporting settings
type TransferConfig struct {
	Binary       string `json:"binary" mapstructure:"binary"`               // remote copy binary, default rclone
	EditInterval int    `json:"edit_interval" mapstructure:"edit_interval"` // seconds between progress edits
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// MetricsConfig holds the Prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Host    string `json:"host" mapstructure:"host"`
	Port    int    `json:"port" mapstructure:"port"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			Allowlist: []int64{},
		},
		Shell: ShellConfig{
			Command:        "bash",
			FlushInterval:  30,
			IdleTimeout:    0,
			HistoryEnabled: true,
		},
		Transfer: TransferConfig{
			Binary:       "rclone",
			EditInterval: 1,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   50,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    9090,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram bot token is required")
	}
	if err := ValidateTelegramToken(c.Telegram.BotToken); err != nil {
		return err
	}

	if len(c.Telegram.Allowlist) == 0 {
		return fmt.Errorf("at least one authorized user ID is required")
	}
	for i, id := range c.Telegram.Allowlist {
		if id <= 0 {
			return fmt.Errorf("allowlist entry %d: invalid user ID %d", i, id)
		}
	}

	if c.Shell.Command == "" {
		return fmt.Errorf("shell command is required")
	}
	if c.Shell.FlushInterval <= 0 {
		return fmt.Errorf("shell flush_interval must be positive")
	}
	if c.Shell.IdleTimeout < 0 {
		return fmt.Errorf("shell idle_timeout cannot be negative")
	}

	if c.Transfer.EditInterval <= 0 {
		return fmt.Errorf("transfer edit_interval must be positive")
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
	}

	return nil
}

// Authorized reports whether the user ID is in the allowlist
func (c *Config) Authorized(userID int64) bool {
	for _, id := range c.Telegram.Allowlist {
		if id == userID {
			return true
		}
	}
	return false
}
