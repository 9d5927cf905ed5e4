package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"
)

// telegramChannel sends reminders to a fixed chat. Send-only: no poller,
// no handlers.
type telegramChannel struct {
	token  string
	chatID int64

	once sync.Once
	bot  *tele.Bot
	err  error
}

func newTelegram(cfg TelegramConfig) (*telegramChannel, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is empty")
	}
	return &telegramChannel{token: cfg.Token, chatID: cfg.ChatID}, nil
}

func (t *telegramChannel) Name() string { return "telegram" }

// init connects on first use so a network hiccup at startup doesn't take
// the daemon down.
func (t *telegramChannel) init() (*tele.Bot, error) {
	t.once.Do(func() {
		t.bot, t.err = tele.NewBot(tele.Settings{
			Token: t.token,
			// No Poller: this bot only ever sends.
		})
	})
	return t.bot, t.err
}

func (t *telegramChannel) Send(ctx context.Context, n Notification) error {
	bot, err := t.init()
	if err != nil {
		return fmt.Errorf("telegram init: %w", err)
	}

	text := n.Title
	if n.Body != "" {
		text += "\n" + n.Body
	}

	// telebot's Send has no context form; bound it with a goroutine.
	done := make(chan error, 1)
	go func() {
		_, err := bot.Send(tele.ChatID(t.chatID), text)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(30 * time.Second):
		return errors.New("telegram send timed out")
	}
}
