package notifier

import (
	"context"
	"errors"
)

var ErrNoChannels = errors.New("no notification channels enabled")

// Config controls the dispatch pipeline.
type Config struct {
	RatePerSec int // dispatch rate limit; 0 means a small default
	Desktop    DesktopConfig
	Telegram   TelegramConfig
}

type DesktopConfig struct {
	Enabled bool
	AppName string // shown by the desktop notification server
}

type TelegramConfig struct {
	Enabled bool
	Token   string
	ChatID  int64
}

// Notification is the rendered message handed to channels.
type Notification struct {
	Title string
	Body  string
	Sound bool
}

// Channel is one delivery transport.
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}
