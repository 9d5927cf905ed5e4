package config

import (
	"fmt"
	"strings"
)

// Config is the daemon configuration. JSON and YAML files are both
// accepted; YAML is converted to JSON before strict decoding, so
// unknown keys are rejected in either format.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Reminder ReminderConfig `json:"reminder"`
	Notify   NotifyConfig   `json:"notify"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig selects and parameterizes the persistence backend.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./birthdayd.db" }
type StorageConfig struct {
	Driver      string `json:"driver,omitempty"` // default: "sqlite"
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// ReminderConfig controls the evaluation loop.
type ReminderConfig struct {
	// Cron is the 5-field tick schedule. Default: "0 * * * *".
	Cron string `json:"cron,omitempty"`
	// Tolerance is the half-width of the band around the configured
	// reminder time-of-day inside which a tick evaluates. Default: "30m".
	Tolerance string `json:"tolerance,omitempty"`
	// RetainDays bounds the delivery ledger. Default: 30.
	RetainDays int `json:"retain_days,omitempty"`
}

// NotifyConfig controls the delivery channels.
type NotifyConfig struct {
	RatePerSec int            `json:"rate_per_sec,omitempty"`
	Desktop    DesktopConfig  `json:"desktop"`
	Telegram   TelegramConfig `json:"telegram,omitempty"`
}

type DesktopConfig struct {
	Enabled bool   `json:"enabled"`
	AppName string `json:"app_name,omitempty"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"` // never logged
	ChatID  int64  `json:"chat_id,omitempty"`
}

// Validate checks everything that can be checked without touching the
// subsystems. The cron spec is validated separately through the
// manager's validator hook, which the daemon wires to the scheduler.
func (c *Config) Validate() error {
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("reminder.tolerance", c.Reminder.Tolerance); err != nil {
		return err
	}
	if c.Reminder.RetainDays < 0 {
		return fmt.Errorf("reminder.retain_days: must be >= 0")
	}
	if c.Notify.RatePerSec < 0 {
		return fmt.Errorf("notify.rate_per_sec: must be >= 0")
	}
	if c.Notify.Telegram.Enabled {
		if strings.TrimSpace(c.Notify.Telegram.Token) == "" {
			return fmt.Errorf("notify.telegram: token is required when enabled")
		}
		if c.Notify.Telegram.ChatID == 0 {
			return fmt.Errorf("notify.telegram: chat_id is required when enabled")
		}
	}
	return nil
}
