package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
bot:
  prefix: "."
  auto_mark_read: true
auth:
  owner_uids: [1111111111]
  admin_uids: "5555555555, 6666666666 5555555555"
storage:
  backend: sqlite
  sqlite_path: /tmp/perms.db
menu:
  ephemeral_ttl: 30s
  categories:
    - {key: "1", name: Tools, tag: utility}
telegram:
  bot_token: abc
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Bot.Prefix != "." || !cfg.Bot.AutoMarkRead || cfg.Bot.RequestTimeout != 5*time.Minute {
		t.Fatalf("bot = %+v", cfg.Bot)
	}
	if !reflect.DeepEqual(cfg.Auth.OwnerUIDs, []string{"1111111111"}) {
		t.Fatalf("owners = %v", cfg.Auth.OwnerUIDs)
	}
	if !reflect.DeepEqual(cfg.Auth.AdminUIDs, []string{"5555555555", "6666666666"}) {
		t.Fatalf("admins = %v", cfg.Auth.AdminUIDs)
	}
	if cfg.Storage.Backend != "sqlite" || cfg.Storage.SQLitePath != "/tmp/perms.db" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if cfg.Menu.EphemeralTTL != 30*time.Second || len(cfg.Menu.Categories) != 1 || cfg.Menu.Categories[0].Name != "Tools" {
		t.Fatalf("menu = %+v", cfg.Menu)
	}
	if cfg.Delivery.Retries != 2 || cfg.Delivery.RetryDelay != time.Second {
		t.Fatalf("delivery = %+v", cfg.Delivery)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "abc")
	t.Setenv("ADMIN_UIDS", "123456, 654321")
	t.Setenv("CONVOX_BOT_LOGGING_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, "bot:\n  name: Test\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cfg.Auth.OwnerUIDs, []string{"123456", "654321"}) {
		t.Fatalf("admins should double as owners, got %v", cfg.Auth.OwnerUIDs)
	}
	if cfg.Logging.Level != "debug" || cfg.Bot.Name != "Test" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.Menu.Categories, DefaultCategories()) {
		t.Fatalf("categories = %+v", cfg.Menu.Categories)
	}
	if !reflect.DeepEqual(cfg.Plugins.Enabled, []string{"admin", "ping", "info"}) {
		t.Fatalf("plugins = %v", cfg.Plugins.Enabled)
	}
}

func TestLoadRejectsBadInput(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "abc")

	t.Setenv("OWNER_UIDS", "12ab")
	if _, err := Load(writeConfig(t, "bot:\n  name: Test\n")); err == nil || !strings.Contains(err.Error(), "invalid user id") {
		t.Fatalf("err = %v", err)
	}

	t.Setenv("OWNER_UIDS", "")
	if _, err := Load(writeConfig(t, "bot:\n  name: Test\n")); err == nil || !strings.Contains(err.Error(), "owner") {
		t.Fatalf("err = %v", err)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("a named config file must exist")
	}
}

func TestParseUIDs(t *testing.T) {
	tests := []struct {
		raw  any
		want []string
	}{
		{nil, []string{}},
		{"", []string{}},
		{"1,2 3\t4", []string{"1", "2", "3", "4"}},
		{[]any{1111111111, "2222"}, []string{"1111111111", "2222"}},
		{[]string{"7", "7"}, []string{"7"}},
	}
	for _, tt := range tests {
		got, err := ParseUIDs(tt.raw)
		if err != nil {
			t.Fatalf("ParseUIDs(%v): %v", tt.raw, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseUIDs(%v) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Bot:      BotConfig{Prefix: "!"},
			Auth:     AuthConfig{OwnerUIDs: []string{"1"}},
			Storage:  StorageConfig{Backend: "json", Path: "p.json"},
			Menu:     MenuConfig{EphemeralTTL: time.Minute, Categories: DefaultCategories()},
			Telegram: TelegramConfig{BotToken: "abc"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing token", func(c *Config) { c.Telegram.BotToken = "" }},
		{"blank prefix", func(c *Config) { c.Bot.Prefix = " " }},
		{"no owners", func(c *Config) { c.Auth.OwnerUIDs = nil }},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "redis" }},
		{"negative retries", func(c *Config) { c.Delivery.Retries = -1 }},
		{"zero ttl", func(c *Config) { c.Menu.EphemeralTTL = 0 }},
		{"duplicate category", func(c *Config) {
			c.Menu.Categories = append(c.Menu.Categories, CategoryConfig{Key: "1", Tag: "x"})
		}},
	}

	base := valid()
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
