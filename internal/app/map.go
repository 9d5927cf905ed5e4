package app

import (
	"time"

	"birthdayd/internal/config"
	"birthdayd/internal/notifier"
	"birthdayd/internal/reminder"
	"birthdayd/internal/storage"
	"birthdayd/pkg/logx"
)

// The config package stays free of subsystem imports; these helpers
// translate its file-level sections into the subsystems' own configs.

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, nil
}

func mapReminderConfig(cfg *config.Config) (reminder.Config, error) {
	tol, err := config.ParseDurationOrDefault("reminder.tolerance", cfg.Reminder.Tolerance, 30*time.Minute)
	if err != nil {
		return reminder.Config{}, err
	}
	return reminder.Config{
		CronSpec:   cfg.Reminder.Cron,
		Tolerance:  tol,
		RetainDays: cfg.Reminder.RetainDays,
	}, nil
}

func mapNotifyConfig(cfg *config.Config) notifier.Config {
	return notifier.Config{
		RatePerSec: cfg.Notify.RatePerSec,
		Desktop: notifier.DesktopConfig{
			Enabled: cfg.Notify.Desktop.Enabled,
			AppName: cfg.Notify.Desktop.AppName,
		},
		Telegram: notifier.TelegramConfig{
			Enabled: cfg.Notify.Telegram.Enabled,
			Token:   cfg.Notify.Telegram.Token,
			ChatID:  cfg.Notify.Telegram.ChatID,
		},
	}
}
