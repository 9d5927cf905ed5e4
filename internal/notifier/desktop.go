package notifier

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	notifyDest   = "org.freedesktop.Notifications"
	notifyPath   = "/org/freedesktop/Notifications"
	notifyMethod = "org.freedesktop.Notifications.Notify"
)

// desktopChannel posts reminders to the freedesktop notification server
// on the session bus.
type desktopChannel struct {
	appName string

	mu   sync.Mutex
	conn *dbus.Conn
}

func newDesktop(cfg DesktopConfig) *desktopChannel {
	name := cfg.AppName
	if name == "" {
		name = "birthdayd"
	}
	return &desktopChannel{appName: name}
}

func (d *desktopChannel) Name() string { return "desktop" }

// bus connects lazily so the daemon can start before the session bus is
// up; a dead connection is dropped and redialed on the next send.
func (d *desktopChannel) bus() (*dbus.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != nil {
		return d.conn, nil
	}
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("session bus: %w", err)
	}
	d.conn = conn
	return conn, nil
}

func (d *desktopChannel) Send(ctx context.Context, n Notification) error {
	conn, err := d.bus()
	if err != nil {
		return err
	}

	hints := map[string]dbus.Variant{}
	if !n.Sound {
		hints["suppress-sound"] = dbus.MakeVariant(true)
	}

	obj := conn.Object(notifyDest, notifyPath)
	call := obj.CallWithContext(ctx, notifyMethod, 0,
		d.appName,
		uint32(0), // replaces_id: never replace
		"",        // app_icon
		n.Title,
		n.Body,
		[]string{}, // actions
		hints,
		int32(-1), // expire_timeout: server default
	)
	if call.Err != nil {
		d.mu.Lock()
		d.conn = nil
		d.mu.Unlock()
		return fmt.Errorf("notify call: %w", call.Err)
	}
	return nil
}

func (d *desktopChannel) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}
