package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const minimalYAML = `
openclaw:
  gateway_url: http://localhost:18789
limits:
  url: http://localhost:9100
`

func TestParse_Minimal(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Openclaw.GatewayURL != "http://localhost:18789" {
		t.Errorf("gateway_url = %q", cfg.Openclaw.GatewayURL)
	}
	if cfg.Limits.URL != "http://localhost:9100" {
		t.Errorf("limits.url = %q", cfg.Limits.URL)
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.DB.Host != "127.0.0.1" || cfg.DB.Port != 3306 {
		t.Errorf("db defaults = %s:%d, want 127.0.0.1:3306", cfg.DB.Host, cfg.DB.Port)
	}
	if cfg.DB.User != "root" {
		t.Errorf("db.user = %q, want root", cfg.DB.User)
	}
	if cfg.DB.Database != "mission_control" {
		t.Errorf("db.database = %q", cfg.DB.Database)
	}
	if cfg.Openclaw.TimeoutSec != 30 {
		t.Errorf("openclaw.timeout_sec = %d, want 30", cfg.Openclaw.TimeoutSec)
	}
	if cfg.Limits.TimeoutSec != 5 {
		t.Errorf("limits.timeout_sec = %d, want 5", cfg.Limits.TimeoutSec)
	}
	if cfg.Limits.PollSchedule != "@every 5m" {
		t.Errorf("limits.poll_schedule = %q", cfg.Limits.PollSchedule)
	}
}

func TestParse_SQLitePathSkipsMySQLDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML + `
db:
  sqlite_path: /tmp/mc.db
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DB.SQLitePath != "/tmp/mc.db" {
		t.Errorf("sqlite_path = %q", cfg.DB.SQLitePath)
	}
	if cfg.DB.Host != "" {
		t.Errorf("db.host should stay empty when sqlite_path is set, got %q", cfg.DB.Host)
	}
}

func TestParse_MissingGatewayURL(t *testing.T) {
	_, err := Parse([]byte(`
limits:
  url: http://localhost:9100
`))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "openclaw.gateway_url is required") {
		t.Errorf("error = %q", err)
	}
}

func TestParse_MissingLimitsURL(t *testing.T) {
	_, err := Parse([]byte(`
openclaw:
  gateway_url: http://localhost:18789
`))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "limits.url is required") {
		t.Errorf("error = %q", err)
	}
}

func TestParse_SlackTokenWithoutChannel(t *testing.T) {
	_, err := Parse([]byte(minimalYAML + `
notify:
  slack_bot_token: xoxb-test
`))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "slack_channel_id") {
		t.Errorf("error = %q", err)
	}
}

func TestParse_DiscordTokenWithoutChannel(t *testing.T) {
	_, err := Parse([]byte(minimalYAML + `
notify:
  discord_token: token
`))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "discord_channel") {
		t.Errorf("error = %q", err)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("server: [not a map"))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "config: parse") {
		t.Errorf("error = %q", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mission-control.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d", cfg.Server.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
