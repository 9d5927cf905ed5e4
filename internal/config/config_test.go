package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParseYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
logging:
  level: debug
  console: true
storage:
  driver: sqlite
  path: ./test.db
reminder:
  cron: "*/15 * * * *"
  tolerance: 45m
  retain_days: 14
notify:
  rate_per_sec: 2
  desktop:
    enabled: true
    app_name: birthdayd
`)
	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Reminder.Cron != "*/15 * * * *" || cfg.Reminder.RetainDays != 14 {
		t.Errorf("reminder = %+v", cfg.Reminder)
	}
	if !cfg.Notify.Desktop.Enabled || cfg.Notify.Desktop.AppName != "birthdayd" {
		t.Errorf("desktop = %+v", cfg.Notify.Desktop)
	}
	if got := m.Get(); got != cfg {
		t.Error("Get did not return the committed config")
	}
}

func TestParseJSON(t *testing.T) {
	path := writeFile(t, "config.json",
		`{"logging":{"level":"info"},"storage":{"path":"x.db"},"reminder":{},"notify":{"desktop":{"enabled":false}}}`)
	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Storage.Path != "x.db" {
		t.Errorf("storage.path = %q", cfg.Storage.Path)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "config.yaml", "logging:\n  level: info\nscheduler:\n  enabled: true\n")
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("unknown top-level key accepted")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	path := writeFile(t, "config.json", `{"logging":{"level":"info"}}{"extra":1}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("trailing document accepted")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
		ok   bool
	}{
		{"zero config", func(c *Config) {}, true},
		{"bad tolerance", func(c *Config) { c.Reminder.Tolerance = "soon" }, false},
		{"negative retain", func(c *Config) { c.Reminder.RetainDays = -1 }, false},
		{"telegram without token", func(c *Config) { c.Notify.Telegram.Enabled = true }, false},
		{"telegram complete", func(c *Config) {
			c.Notify.Telegram = TelegramConfig{Enabled: true, Token: "t", ChatID: 42}
		}, true},
	}
	for _, tc := range cases {
		var c Config
		tc.mut(&c)
		err := c.Validate()
		if (err == nil) != tc.ok {
			t.Errorf("%s: Validate() = %v, want ok=%v", tc.name, err, tc.ok)
		}
	}
}

func TestParseDurationField(t *testing.T) {
	if d, err := ParseDurationField("x", " 10s "); err != nil || d != 10*time.Second {
		t.Fatalf("got (%v, %v)", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty: got (%v, %v)", d, err)
	}
	if _, err := ParseDurationField("x", "-1s"); err == nil {
		t.Fatal("negative duration accepted")
	}
	if d, err := ParseDurationOrDefault("x", "", time.Minute); err != nil || d != time.Minute {
		t.Fatalf("default: got (%v, %v)", d, err)
	}
}

func TestSubscribePublish(t *testing.T) {
	m := NewManager("unused")
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	cfg := &Config{}
	m.publish(cfg)
	select {
	case got := <-ch:
		if got != cfg {
			t.Fatal("wrong config delivered")
		}
	default:
		t.Fatal("no config delivered")
	}

	// A full buffer keeps the newest update, not the oldest.
	oldCfg, newCfg := &Config{}, &Config{}
	m.publish(oldCfg)
	m.publish(newCfg)
	if got := <-ch; got != newCfg {
		t.Fatal("stale config delivered after overflow")
	}
}
