package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "America/Sao_Paulo"
	defaultCron     = "0 20 * * *"

	defaultTemperature = 0.3

	// ChannelEmail and ChannelTelegram select the notification channel.
	ChannelEmail    = "email"
	ChannelTelegram = "telegram"

	configPathEnv      = "TUXLETTER_CONFIG"
	cacheFileEnv       = "TUXLETTER_CACHE_FILE"
	recipientEnv       = "TUXLETTER_RECIPIENT"
	logLevelEnv        = "LOG_LEVEL"
	databaseDSNEnv     = "DATABASE_DSN"
	openRouterKeyEnv   = "OPENROUTER_API_KEY"
	openRouterModelEnv = "OPENROUTER_MODEL"
	gmailUserEnv       = "GMAIL_USER"
	gmailPasswordEnv   = "GMAIL_APP_PASSWORD"
	telegramTokenEnv   = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv  = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Cache         CacheConfig        `yaml:"cache"`
	Scraping      ScrapingConfig     `yaml:"scraping"`
	Sites         []SiteConfig       `yaml:"sites"`
	OpenRouter    OpenRouterConfig   `yaml:"openrouter"`
	Notifications NotificationConfig `yaml:"notifications"`
	Database      DatabaseConfig     `yaml:"database"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Metrics       MetricsConfig      `yaml:"metrics"`
}

// LoggingConfig selects level, format and an optional log file.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// CacheConfig points at the seen-link cache file.
type CacheConfig struct {
	File string `yaml:"file"`
}

// ScrapingConfig tunes the scanners as a group.
type ScrapingConfig struct {
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
}

// SiteConfig overrides one built-in source. Zero values keep the built-in setting.
type SiteConfig struct {
	Name       string        `yaml:"name"`
	Disabled   bool          `yaml:"disabled"`
	ListingURL string        `yaml:"listingUrl"`
	Listing    string        `yaml:"listing"`
	MaxItems   int           `yaml:"maxItems"`
	Delay      time.Duration `yaml:"delay"`
}

// OpenRouterConfig defines how to contact the chat-completion API.
type OpenRouterConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"apiKey"`
	Language    string        `yaml:"language"`
	Referer     string        `yaml:"referer"`
	Title       string        `yaml:"title"`
	MaxTokens   int           `yaml:"maxTokens"`
	Temperature *float64      `yaml:"temperature"`
	BodyLimit   int           `yaml:"bodyLimit"`
	Timeout     time.Duration `yaml:"timeout"`
}

// SamplingTemperature returns the configured temperature, or 0.3 when the
// key is absent. An explicit 0 is kept.
func (c OpenRouterConfig) SamplingTemperature() float64 {
	if c.Temperature == nil {
		return defaultTemperature
	}
	return *c.Temperature
}

// NotificationConfig picks the outbound channel and holds its settings.
type NotificationConfig struct {
	Channel  string         `yaml:"channel"`
	Email    EmailConfig    `yaml:"email"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// EmailConfig describes the SMTP submission account.
type EmailConfig struct {
	Host      string        `yaml:"host"`
	Port      int           `yaml:"port"`
	Username  string        `yaml:"username"`
	Password  string        `yaml:"password"`
	From      string        `yaml:"from"`
	Recipient string        `yaml:"recipient"`
	Timeout   time.Duration `yaml:"timeout"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	APIBase  string `yaml:"apiBase"`
}

// DatabaseConfig describes the optional Postgres archive. Empty DSN disables it.
type DatabaseConfig struct {
	DSN     string `yaml:"dsn"`
	Migrate bool   `yaml:"migrate"`
}

// SchedulerConfig defines when the pipeline should run.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	Heartbeat      time.Duration  `yaml:"heartbeat"`
	RunOnStart     bool           `yaml:"runOnStart"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	if loc, err := time.LoadLocation(defaultTimezone); err == nil {
		return loc
	}
	return time.UTC
}

// MetricsConfig sets where /metrics is served in schedule mode. Empty disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads the file named by TUXLETTER_CONFIG.
func Load() Config {
	return LoadFrom(os.Getenv(configPathEnv))
}

// LoadFrom loads .env, reads YAML configuration at path (if any) and applies
// environment overrides.
func LoadFrom(path string) Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: cannot load .env: %v", err)
	}

	cfg := defaultConfig()

	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

// Validate reports every missing credential for the selected channel.
func (c Config) Validate() error {
	var errs []error
	if c.OpenRouter.APIKey == "" {
		errs = append(errs, fmt.Errorf("%s is required", openRouterKeyEnv))
	}

	switch c.Notifications.Channel {
	case ChannelEmail:
		if c.Notifications.Email.Username == "" {
			errs = append(errs, fmt.Errorf("%s is required", gmailUserEnv))
		}
		if c.Notifications.Email.Password == "" {
			errs = append(errs, fmt.Errorf("%s is required", gmailPasswordEnv))
		}
		if c.Notifications.Email.Recipient == "" {
			errs = append(errs, fmt.Errorf("%s is required", recipientEnv))
		}
	case ChannelTelegram:
		if c.Notifications.Telegram.BotToken == "" {
			errs = append(errs, fmt.Errorf("%s is required", telegramTokenEnv))
		}
		if c.Notifications.Telegram.ChatID == "" {
			errs = append(errs, fmt.Errorf("%s is required", telegramChatIDEnv))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown notification channel %q", c.Notifications.Channel))
	}

	return errors.Join(errs...)
}

// Site returns the override for name, if configured.
func (c Config) Site(name string) (SiteConfig, bool) {
	for _, site := range c.Sites {
		if strings.EqualFold(site.Name, name) {
			return site, true
		}
	}
	return SiteConfig{}, false
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(cacheFileEnv); v != "" {
		c.Cache.File = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(openRouterKeyEnv); v != "" {
		c.OpenRouter.APIKey = v
	}

	if v := os.Getenv(openRouterModelEnv); v != "" {
		c.OpenRouter.Model = v
	}

	if v := os.Getenv(gmailUserEnv); v != "" {
		c.Notifications.Email.Username = v
	}

	if v := os.Getenv(gmailPasswordEnv); v != "" {
		c.Notifications.Email.Password = v
	}

	if v := os.Getenv(recipientEnv); v != "" {
		c.Notifications.Email.Recipient = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if c.Notifications.Email.From == "" {
		c.Notifications.Email.From = c.Notifications.Email.Username
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc = SchedulerConfig{}.Location()
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}
	if override.Logging.File != "" {
		base.Logging.File = override.Logging.File
	}

	if override.Cache.File != "" {
		base.Cache.File = override.Cache.File
	}

	if override.Scraping.Concurrency > 0 {
		base.Scraping.Concurrency = override.Scraping.Concurrency
	}
	if override.Scraping.Timeout > 0 {
		base.Scraping.Timeout = override.Scraping.Timeout
	}

	if len(override.Sites) > 0 {
		base.Sites = override.Sites
	}

	base.OpenRouter = mergeOpenRouter(base.OpenRouter, override.OpenRouter)
	base.Notifications = mergeNotifications(base.Notifications, override.Notifications)

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}
	if override.Scheduler.Heartbeat > 0 {
		base.Scheduler.Heartbeat = override.Scheduler.Heartbeat
	}
	if override.Scheduler.RunOnStart {
		base.Scheduler.RunOnStart = true
	}

	if override.Metrics.Addr != "" {
		base.Metrics.Addr = override.Metrics.Addr
	}

	return base
}

func mergeOpenRouter(base, override OpenRouterConfig) OpenRouterConfig {
	if override.Endpoint != "" {
		base.Endpoint = override.Endpoint
	}
	if override.Model != "" {
		base.Model = override.Model
	}
	if override.APIKey != "" {
		base.APIKey = override.APIKey
	}
	if override.Language != "" {
		base.Language = override.Language
	}
	if override.Referer != "" {
		base.Referer = override.Referer
	}
	if override.Title != "" {
		base.Title = override.Title
	}
	if override.MaxTokens > 0 {
		base.MaxTokens = override.MaxTokens
	}
	if override.Temperature != nil {
		base.Temperature = override.Temperature
	}
	if override.BodyLimit > 0 {
		base.BodyLimit = override.BodyLimit
	}
	if override.Timeout > 0 {
		base.Timeout = override.Timeout
	}
	return base
}

func mergeNotifications(base, override NotificationConfig) NotificationConfig {
	if override.Channel != "" {
		base.Channel = strings.ToLower(override.Channel)
	}

	email := override.Email
	if email.Host != "" {
		base.Email.Host = email.Host
	}
	if email.Port > 0 {
		base.Email.Port = email.Port
	}
	if email.Username != "" {
		base.Email.Username = email.Username
	}
	if email.Password != "" {
		base.Email.Password = email.Password
	}
	if email.From != "" {
		base.Email.From = email.From
	}
	if email.Recipient != "" {
		base.Email.Recipient = email.Recipient
	}
	if email.Timeout > 0 {
		base.Email.Timeout = email.Timeout
	}

	if override.Telegram.BotToken != "" {
		base.Telegram.BotToken = override.Telegram.BotToken
	}
	if override.Telegram.ChatID != "" {
		base.Telegram.ChatID = override.Telegram.ChatID
	}
	if override.Telegram.APIBase != "" {
		base.Telegram.APIBase = override.Telegram.APIBase
	}
	return base
}

// DefaultCacheFile is the cache location when none is configured.
func DefaultCacheFile() string {
	return filepath.Join(xdg.CacheHome, "tuxletter", "seen_links.json")
}

func defaultConfig() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Cache:    CacheConfig{File: DefaultCacheFile()},
		Scraping: ScrapingConfig{Concurrency: 1, Timeout: 30 * time.Second},
		OpenRouter: OpenRouterConfig{
			Endpoint:  "https://openrouter.ai/api/v1/chat/completions",
			Model:     "meta-llama/llama-3.1-8b-instruct:free",
			Language:  "Brazilian Portuguese",
			Referer:   "https://localhost:3000",
			Title:     "Tux Teller",
			MaxTokens: 2000,
			BodyLimit: 1500,
			Timeout:   30 * time.Second,
		},
		Notifications: NotificationConfig{
			Channel: ChannelEmail,
			Email: EmailConfig{
				Host:    "smtp.gmail.com",
				Port:    587,
				Timeout: 30 * time.Second,
			},
			Telegram: TelegramConfig{APIBase: "https://api.telegram.org"},
		},
		Scheduler: SchedulerConfig{
			CronExpression: defaultCron,
			Timezone:       defaultTimezone,
			Heartbeat:      time.Hour,
		},
	}
}
