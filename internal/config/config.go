package config

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var uidPattern = regexp.MustCompile(`^\d+$`)

type Config struct {
	Bot      BotConfig      `mapstructure:"bot"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Menu     MenuConfig     `mapstructure:"menu"`
	Delivery DeliveryConfig `mapstructure:"delivery"`
	Plugins  PluginsConfig  `mapstructure:"plugins"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type BotConfig struct {
	Name           string        `mapstructure:"name"`
	Version        string        `mapstructure:"version"`
	Prefix         string        `mapstructure:"prefix"`
	AutoMarkRead   bool          `mapstructure:"auto_mark_read"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// AuthConfig holds the static role lists. They are filled from the raw
// comma or space separated values after unmarshalling.
type AuthConfig struct {
	OwnerUIDs []string `mapstructure:"-"`
	AdminUIDs []string `mapstructure:"-"`
}

type StorageConfig struct {
	Backend    string `mapstructure:"backend"`
	Path       string `mapstructure:"path"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

type CategoryConfig struct {
	Key  string `mapstructure:"key"`
	Name string `mapstructure:"name"`
	Tag  string `mapstructure:"tag"`
}

type MenuConfig struct {
	EphemeralTTL time.Duration    `mapstructure:"ephemeral_ttl"`
	Categories   []CategoryConfig `mapstructure:"categories"`
}

type DeliveryConfig struct {
	Retries     int           `mapstructure:"retries"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	LogInterval time.Duration `mapstructure:"log_interval"`
}

type PluginsConfig struct {
	Enabled []string `mapstructure:"enabled"`
}

type TelegramConfig struct {
	BotToken       string `mapstructure:"bot_token"`
	PollingTimeout int    `mapstructure:"polling_timeout"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	JSONFormat bool   `mapstructure:"json_format"`
}

// DefaultCategories is the main menu layout used when none is configured
func DefaultCategories() []CategoryConfig {
	return []CategoryConfig{
		{Key: "1", Name: "Admin", Tag: "admin"},
		{Key: "2", Name: "Info", Tag: "info"},
		{Key: "3", Name: "Utility", Tag: "utility"},
		{Key: "4", Name: "Moderation", Tag: "moderation"},
		{Key: "5", Name: "General", Tag: "general"},
	}
}

// Load reads and validates the configuration
func Load(configFile string) (*Config, error) {
	cfg, err := Read(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Read loads .env, then the config file, then the environment, without
// validating. An empty configFile searches the default locations.
func Read(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()

	// Set defaults
	v.SetDefault("bot.name", "ConvoX")
	v.SetDefault("bot.version", "1.0.0")
	v.SetDefault("bot.prefix", "!")
	v.SetDefault("bot.auto_mark_read", false)
	v.SetDefault("bot.request_timeout", "5m")
	v.SetDefault("storage.backend", "json")
	v.SetDefault("storage.path", "./config/permissions.json")
	v.SetDefault("storage.sqlite_path", "./data/permissions.db")
	v.SetDefault("menu.ephemeral_ttl", "60s")
	v.SetDefault("delivery.retries", 2)
	v.SetDefault("delivery.retry_delay", "1s")
	v.SetDefault("delivery.log_interval", "30s")
	v.SetDefault("plugins.enabled", []string{"admin", "ping", "info"})
	v.SetDefault("telegram.polling_timeout", 60)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json_format", false)

	// Config file locations
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/convox-bot")
	}

	// Environment variables
	v.SetEnvPrefix("CONVOX_BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("auth.owner_uids", "CONVOX_BOT_AUTH_OWNER_UIDS", "OWNER_UIDS")
	_ = v.BindEnv("auth.admin_uids", "CONVOX_BOT_AUTH_ADMIN_UIDS", "ADMIN_UIDS")
	_ = v.BindEnv("bot.prefix", "CONVOX_BOT_BOT_PREFIX", "BOT_PREFIX")
	_ = v.BindEnv("telegram.bot_token", "CONVOX_BOT_TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_TOKEN")

	// Read config file (optional unless named explicitly)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	owners, err := ParseUIDs(v.Get("auth.owner_uids"))
	if err != nil {
		return nil, fmt.Errorf("auth.owner_uids: %w", err)
	}
	admins, err := ParseUIDs(v.Get("auth.admin_uids"))
	if err != nil {
		return nil, fmt.Errorf("auth.admin_uids: %w", err)
	}
	cfg.Auth = AuthConfig{OwnerUIDs: owners, AdminUIDs: admins}
	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills values viper cannot default. Deployments that only
// list admins get them as owners too.
func (c *Config) applyDefaults() {
	if len(c.Auth.OwnerUIDs) == 0 {
		c.Auth.OwnerUIDs = append([]string(nil), c.Auth.AdminUIDs...)
	}
	if len(c.Menu.Categories) == 0 {
		c.Menu.Categories = DefaultCategories()
	}
}

// ParseUIDs accepts a comma or space separated string or a list and
// returns the identifiers in order without duplicates.
func ParseUIDs(raw any) ([]string, error) {
	var parts []string
	switch val := raw.(type) {
	case nil:
	case string:
		parts = strings.FieldsFunc(val, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n'
		})
	case []string:
		parts = val
	case []any:
		for _, item := range val {
			parts = append(parts, strings.TrimSpace(fmt.Sprint(item)))
		}
	default:
		parts = []string{fmt.Sprint(val)}
	}

	seen := make(map[string]bool, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		if !uidPattern.MatchString(p) {
			return nil, fmt.Errorf("invalid user id %q", p)
		}
		seen[p] = true
		out = append(out, p)
	}
	return out, nil
}

// StorageLabel describes where permissions are kept
func (c *Config) StorageLabel() string {
	if c.Storage.Backend == "sqlite" {
		return "sqlite:" + c.Storage.SQLitePath
	}
	return "json:" + c.Storage.Path
}

func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if strings.TrimSpace(c.Bot.Prefix) == "" {
		return fmt.Errorf("bot.prefix must not be empty")
	}
	if len(c.Auth.OwnerUIDs) == 0 {
		return fmt.Errorf("at least one owner or admin user ID is required")
	}
	switch c.Storage.Backend {
	case "json":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the json backend")
		}
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("storage.backend must be json or sqlite, got %q", c.Storage.Backend)
	}
	if c.Delivery.Retries < 0 {
		return fmt.Errorf("delivery.retries must not be negative")
	}
	if c.Menu.EphemeralTTL <= 0 {
		return fmt.Errorf("menu.ephemeral_ttl must be positive")
	}
	keys := make(map[string]bool, len(c.Menu.Categories))
	for _, cat := range c.Menu.Categories {
		if cat.Key == "" || cat.Tag == "" {
			return fmt.Errorf("menu categories need a key and a tag")
		}
		if keys[cat.Key] {
			return fmt.Errorf("duplicate menu category key %q", cat.Key)
		}
		keys[cat.Key] = true
	}
	return nil
}
