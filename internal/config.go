package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/chasqui/internal/logging"
	"github.com/starford/chasqui/internal/manifest"
	"github.com/starford/chasqui/internal/watcher"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Content  ContentConfig     `yaml:"content"`
	Routes   RoutesConfig      `yaml:"routes"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Notifier NotifierConfig    `yaml:"notifier"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Content.Validate(); err != nil {
		return fmt.Errorf("content: %w", err)
	}
	if err := c.Routes.Validate(); err != nil {
		return fmt.Errorf("routes: %w", err)
	}
	if err := c.SQLite.Validate(); err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if err := c.Notifier.Validate(); err != nil {
		return fmt.Errorf("notifier: %w", err)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
	HTTP      HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(logging.FormatJSON, logging.FormatText)),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
	// Heartbeat is the idle interval between SSE keep-alive comments.
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.Heartbeat, validation.Min(time.Duration(0))),
	)
}

// ContentConfig describes the Markdown source tree and how it is synced.
type ContentConfig struct {
	Path string `yaml:"path"`
	// StripExtension drops ".md" from filename-derived identifiers.
	StripExtension bool          `yaml:"strip_extension"`
	Debounce       time.Duration `yaml:"debounce"`
	QueueSize      int           `yaml:"queue_size"`
	Workers        int           `yaml:"workers"`
	// StrictLinks fails a page that has an unresolved internal link.
	StrictLinks bool     `yaml:"strict_links"`
	Extensions  []string `yaml:"extensions"`
}

// Validate validates the content configuration.
func (c *ContentConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
		validation.Field(&c.QueueSize, validation.Required, validation.Min(1)),
		validation.Field(&c.Workers, validation.Required, validation.Min(1), validation.Max(64)),
	)
}

// RoutesConfig maps identifiers to public routes.
type RoutesConfig struct {
	Prefix         string `yaml:"prefix"`
	ServeHome      bool   `yaml:"serve_home"`
	HomeIdentifier string `yaml:"home_identifier"`
}

// Validate validates the routes configuration.
func (c *RoutesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Prefix, validation.Required, validation.By(func(any) error {
			if !strings.HasPrefix(c.Prefix, "/") {
				return errors.New("must start with /")
			}
			return nil
		})),
		validation.Field(&c.HomeIdentifier, validation.When(c.ServeHome, validation.Required)),
	)
}

// Manifest converts the section into link-resolution routes.
func (c *RoutesConfig) Manifest() manifest.Routes {
	return manifest.Routes{
		Prefix:         c.Prefix,
		HomeIdentifier: c.HomeIdentifier,
		ServeHome:      c.ServeHome,
	}
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// NotifierConfig configures the external build webhook. An empty URL
// disables it.
type NotifierConfig struct {
	WebhookURL    string        `yaml:"webhook_url"`
	WebhookSecret string        `yaml:"webhook_secret"`
	Timeout       time.Duration `yaml:"timeout"`
}

// Validate validates the notifier configuration.
func (c *NotifierConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.WebhookURL, validation.By(absoluteURL)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// Enabled reports whether a webhook is configured.
func (c *NotifierConfig) Enabled() bool {
	return c.WebhookURL != ""
}

func absoluteURL(v any) error {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an absolute http(s) URL")
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: logging.FormatJSON,
			HTTP: HTTPConfig{
				Port:      8080,
				Heartbeat: 30 * time.Second,
			},
		},
		Content: ContentConfig{
			Path:           "./content",
			StripExtension: true,
			Debounce:       watcher.DefaultDebounce,
			QueueSize:      8,
			Workers:        4,
		},
		Routes: RoutesConfig{
			Prefix:         "/",
			HomeIdentifier: "index",
		},
		SQLite: SQLiteConfig{
			Path: "./chasqui.db",
		},
		Notifier: NotifierConfig{
			Timeout: 5 * time.Second,
		},
	}
}
