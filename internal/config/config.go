package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/park285/cheese-arena/internal/obslog"
)

var (
	ErrInvalidPort      = errors.New("PORT must be between 1 and 65535")
	ErrInvalidOutbox    = errors.New("ARENA_OUTBOX_SIZE must be positive")
	ErrAnnounceNoRoom   = errors.New("IRIS_BASE_URL requires ANNOUNCE_ROOM")
	ErrAnnounceNoIris   = errors.New("ANNOUNCE_ROOM requires IRIS_BASE_URL")
	ErrEmptyFeedChannel = errors.New("ARENA_FEED_CHANNEL must not be empty when REDIS_URL is set")
)

type AppConfig struct {
	Port       int    `env:"PORT" envDefault:"3000"`
	BindAddr   string `env:"BIND_ADDR" envDefault:"0.0.0.0"`
	Title      string `env:"ARENA_TITLE" envDefault:"ChessKhelo"`
	OutboxSize int    `env:"ARENA_OUTBOX_SIZE" envDefault:"64"`

	// Empty means same-origin only.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	RedisURL    string `env:"REDIS_URL"`
	FeedChannel string `env:"ARENA_FEED_CHANNEL" envDefault:"arena:events"`

	IrisBaseURL  string `env:"IRIS_BASE_URL"`
	AnnounceRoom string `env:"ANNOUNCE_ROOM"`
	XUserID      string `env:"X_USER_ID"`
	XUserEmail   string `env:"X_USER_EMAIL"`
	XSessionID   string `env:"X_SESSION_ID"`
	MessagesDir  string `env:"MESSAGES_DIR"`

	Log LogConfig
}

type LogConfig struct {
	Level   string `env:"LOG_LEVEL" envDefault:"info"`
	Console bool   `env:"LOG_TO_CONSOLE" envDefault:"true"`
	ToFile  bool   `env:"LOG_TO_FILE" envDefault:"false"`
	File    string `env:"LOG_FILE" envDefault:"logs/arena.log"`
	Format  string `env:"LOG_FORMAT" envDefault:"legacy"`
	Caller  bool   `env:"LOG_CALLER" envDefault:"false"`
}

// Load parses the environment and validates the result.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) normalize() {
	c.BindAddr = strings.TrimSpace(c.BindAddr)
	c.Title = strings.TrimSpace(c.Title)
	c.RedisURL = strings.TrimSpace(c.RedisURL)
	c.FeedChannel = strings.TrimSpace(c.FeedChannel)
	c.IrisBaseURL = strings.TrimRight(strings.TrimSpace(c.IrisBaseURL), "/")
	c.AnnounceRoom = strings.TrimSpace(c.AnnounceRoom)
	c.XUserID = strings.TrimSpace(c.XUserID)
	c.XUserEmail = strings.TrimSpace(c.XUserEmail)
	c.XSessionID = strings.TrimSpace(c.XSessionID)
	c.MessagesDir = strings.TrimSpace(c.MessagesDir)

	origins := c.AllowedOrigins[:0]
	for _, o := range c.AllowedOrigins {
		if s := strings.TrimSpace(o); s != "" {
			origins = append(origins, s)
		}
	}
	c.AllowedOrigins = origins
}

// Validate checks ranges and settings that only make sense together.
func (c *AppConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if c.OutboxSize < 1 {
		return ErrInvalidOutbox
	}
	if c.IrisBaseURL != "" && c.AnnounceRoom == "" {
		return ErrAnnounceNoRoom
	}
	if c.AnnounceRoom != "" && c.IrisBaseURL == "" {
		return ErrAnnounceNoIris
	}
	if c.RedisURL != "" && c.FeedChannel == "" {
		return ErrEmptyFeedChannel
	}
	return nil
}

// Addr is the listen address.
func (c *AppConfig) Addr() string {
	return net.JoinHostPort(c.BindAddr, strconv.Itoa(c.Port))
}

func (c *AppConfig) FeedEnabled() bool     { return c.RedisURL != "" }
func (c *AppConfig) AnnounceEnabled() bool { return c.IrisBaseURL != "" && c.AnnounceRoom != "" }

// LogOptions maps the LOG_* settings onto obslog.
func (c *AppConfig) LogOptions() obslog.Options {
	return obslog.Options{
		Level:   c.Log.Level,
		Console: c.Log.Console,
		ToFile:  c.Log.ToFile,
		File:    c.Log.File,
		Format:  c.Log.Format,
		Caller:  c.Log.Caller,
	}
}
