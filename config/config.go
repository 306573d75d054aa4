// Package config reads the runtime configuration from the environment.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

// Config holds every setting of a posting run.
type Config struct {
	Token      string `envconfig:"VK_APP_TOKEN" required:"true"`
	GroupID    int64  `envconfig:"VK_GROUP_ID" required:"true"`
	APIVersion string `envconfig:"VK_API_VERSION" default:"5.81"`
	FromGroup  bool   `envconfig:"VK_FROM_GROUP" default:"false"`
	VKBaseURL  string `envconfig:"VK_BASE_URL" default:"https://api.vk.com/method"`

	XKCDBaseURL string `envconfig:"XKCD_BASE_URL" default:"https://xkcd.com"`
	WorkDir     string `envconfig:"WORK_DIR" default:"Files"`

	ArchiveBucket string `envconfig:"ARCHIVE_BUCKET"`
	ArchivePrefix string `envconfig:"ARCHIVE_PREFIX" default:"strips/"`

	HeartbeatEndpoint string `envconfig:"HEARTBEAT_ENDPOINT"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`
}

// Load reads the configuration and fails on missing or invalid settings.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return &cfg, nil
}

// Validate checks settings envconfig cannot check on its own.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Token) == "" {
		return fmt.Errorf("VK_APP_TOKEN is empty")
	}
	// VK_GROUP_ID is the positive community id; the wall owner id is
	// derived from it.
	if c.GroupID <= 0 {
		return fmt.Errorf("VK_GROUP_ID must be a positive community id, got %d", c.GroupID)
	}
	if c.WorkDir == "" {
		return fmt.Errorf("WORK_DIR is empty")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be console or json, got %q", c.LogFormat)
	}
	return nil
}

// MarshalZerologObject logs the configuration without the access token.
func (c *Config) MarshalZerologObject(e *zerolog.Event) {
	e.Int64("group_id", c.GroupID).
		Str("api_version", c.APIVersion).
		Bool("from_group", c.FromGroup).
		Str("work_dir", c.WorkDir).
		Str("archive_bucket", c.ArchiveBucket).
		Bool("heartbeat", c.HeartbeatEndpoint != "")
}

// Logger builds the process-wide logger writing to w, or stderr if w is nil.
func (c *Config) Logger(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if c.LogFormat != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
