// Package config provides YAML-based configuration loading for Mission Control.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Mission Control configuration, loaded from
// mission-control.yaml.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	DB       DBConfig       `yaml:"db"`
	Openclaw OpenclawConfig `yaml:"openclaw"`
	Limits   LimitsConfig   `yaml:"limits"`
	Notify   NotifyConfig   `yaml:"notify"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int      `yaml:"port"`
	AllowOrigins []string `yaml:"allow_origins"`
}

// DBConfig holds entity store connection settings. When SQLitePath is set
// the MySQL fields are ignored.
type DBConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	Database   string `yaml:"database"`
}

// OpenclawConfig holds connection settings for the OpenClaw gateway, the
// external runtime that hosts agent sessions.
type OpenclawConfig struct {
	GatewayURL string `yaml:"gateway_url"`
	Token      string `yaml:"token"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// LimitsConfig holds settings for the external limits service and the
// capacity poll schedule (cron expression).
type LimitsConfig struct {
	URL          string `yaml:"url"`
	TimeoutSec   int    `yaml:"timeout_sec"`
	PollSchedule string `yaml:"poll_schedule"`
}

// NotifyConfig holds optional chat push settings for urgent events.
type NotifyConfig struct {
	SlackBotToken  string `yaml:"slack_bot_token"`
	SlackChannelID string `yaml:"slack_channel_id"`
	DiscordToken   string `yaml:"discord_token"`
	DiscordChannel string `yaml:"discord_channel"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.DB.SQLitePath == "" {
		if c.DB.Host == "" {
			c.DB.Host = "127.0.0.1"
		}
		if c.DB.Port == 0 {
			c.DB.Port = 3306
		}
		if c.DB.User == "" {
			c.DB.User = "root"
		}
		if c.DB.Database == "" {
			c.DB.Database = "mission_control"
		}
	}
	if c.Openclaw.TimeoutSec == 0 {
		c.Openclaw.TimeoutSec = 30
	}
	if c.Limits.TimeoutSec == 0 {
		c.Limits.TimeoutSec = 5
	}
	if c.Limits.PollSchedule == "" {
		c.Limits.PollSchedule = "@every 5m"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Openclaw.GatewayURL == "" {
		errs = append(errs, "openclaw.gateway_url is required")
	}
	if c.Limits.URL == "" {
		errs = append(errs, "limits.url is required")
	}
	if c.Notify.SlackBotToken != "" && c.Notify.SlackChannelID == "" {
		errs = append(errs, "notify.slack_channel_id is required when slack_bot_token is set")
	}
	if c.Notify.DiscordToken != "" && c.Notify.DiscordChannel == "" {
		errs = append(errs, "notify.discord_channel is required when discord_token is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
