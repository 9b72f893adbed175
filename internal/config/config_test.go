package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
export:
  base_url: https://export.example.com
  username: meters
  password: hunter2
  poll_interval: 5s
store:
  driver: postgres
  postgres:
    host: localhost
    port: 5432
    name: water_model
    user: testuser
    password: testpass
pipeline:
  routes: ["21", "26"]
  reset_month: 4
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Export.BaseURL != "https://export.example.com" {
		t.Errorf("Export.BaseURL = %q, want %q", cfg.Export.BaseURL, "https://export.example.com")
	}
	if cfg.Export.PollInterval != 5*time.Second {
		t.Errorf("Export.PollInterval = %v, want %v", cfg.Export.PollInterval, 5*time.Second)
	}
	if cfg.Store.Postgres.Host != "localhost" {
		t.Errorf("Store.Postgres.Host = %q, want %q", cfg.Store.Postgres.Host, "localhost")
	}
	if len(cfg.Pipeline.Routes) != 2 || cfg.Pipeline.Routes[1] != "26" {
		t.Errorf("Pipeline.Routes = %v, want [21 26]", cfg.Pipeline.Routes)
	}
	if cfg.Pipeline.ResetMonth != 4 {
		t.Errorf("Pipeline.ResetMonth = %d, want 4", cfg.Pipeline.ResetMonth)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_EXPORT_PASSWORD", "secret123")
	t.Setenv("TEST_DB_PASSWORD", "dbsecret")

	yaml := `
export:
  username: meters
  password: ${TEST_EXPORT_PASSWORD}
store:
  driver: postgres
  postgres:
    host: localhost
    name: water_model
    user: testuser
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Export.Password != "secret123" {
		t.Errorf("Export.Password = %q, want %q", cfg.Export.Password, "secret123")
	}
	if cfg.Store.Postgres.Password != "dbsecret" {
		t.Errorf("Store.Postgres.Password = %q, want %q", cfg.Store.Postgres.Password, "dbsecret")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
export:
  username: meters
  password: hunter2
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Export.BaseURL != DefaultBaseURL {
		t.Errorf("Export.BaseURL = %q, want default %q", cfg.Export.BaseURL, DefaultBaseURL)
	}
	if cfg.Export.PollInterval != DefaultPollInterval {
		t.Errorf("Export.PollInterval = %v, want default %v", cfg.Export.PollInterval, DefaultPollInterval)
	}
	if cfg.Export.SubmitInterval != DefaultSubmitInterval {
		t.Errorf("Export.SubmitInterval = %v, want default %v", cfg.Export.SubmitInterval, DefaultSubmitInterval)
	}
	if cfg.Export.ResubmitDelay != DefaultResubmitDelay {
		t.Errorf("Export.ResubmitDelay = %v, want default %v", cfg.Export.ResubmitDelay, DefaultResubmitDelay)
	}
	if cfg.Export.MaxPolls != 0 {
		t.Errorf("Export.MaxPolls = %d, want 0 (unbounded)", cfg.Export.MaxPolls)
	}
	if cfg.Store.Driver != DefaultStoreDriver {
		t.Errorf("Store.Driver = %q, want default %q", cfg.Store.Driver, DefaultStoreDriver)
	}
	if cfg.Store.Postgres.Port != DefaultDBPort {
		t.Errorf("Store.Postgres.Port = %d, want default %d", cfg.Store.Postgres.Port, DefaultDBPort)
	}
	if cfg.Pipeline.ResetMonth != DefaultResetMonth {
		t.Errorf("Pipeline.ResetMonth = %d, want default %d", cfg.Pipeline.ResetMonth, DefaultResetMonth)
	}
	if cfg.Schedule.MonthlyDay != DefaultMonthlyDay {
		t.Errorf("Schedule.MonthlyDay = %d, want default %d", cfg.Schedule.MonthlyDay, DefaultMonthlyDay)
	}
	if len(cfg.Pipeline.Routes) != len(DefaultRoutes) {
		t.Errorf("Pipeline.Routes = %v, want default %v", cfg.Pipeline.Routes, DefaultRoutes)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("error %q does not name %s", err, path)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error %v does not wrap os.ErrNotExist", err)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unknown key", "export:\n  usrname: meters\n", "field usrname not found"},
		{"malformed", "export: [\n", "parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempFile(t, tt.yaml)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) || !strings.Contains(err.Error(), path) {
				t.Errorf("error = %q, want it to contain %q and %s", err, tt.wantErr, path)
			}
		})
	}
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := LoadWithDefaults(writeTempFile(t, ""))
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}
	if cfg.Export.BaseURL != DefaultBaseURL {
		t.Errorf("Export.BaseURL = %q, want default %q", cfg.Export.BaseURL, DefaultBaseURL)
	}
}

func TestLoadAndValidateNamesFile(t *testing.T) {
	path := writeTempFile(t, "export:\n  username: meters\n")
	_, err := LoadAndValidate(path)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if want := "config " + path + ": export.password is required"; err.Error() != want {
		t.Errorf("error = %q, want %q", err, want)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Config{
			Export: ExportConfig{Username: "meters", Password: "hunter2"},
		}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing username",
			mutate:  func(c *Config) { c.Export.Username = "" },
			wantErr: "export.username is required",
		},
		{
			name:    "missing password",
			mutate:  func(c *Config) { c.Export.Password = "" },
			wantErr: "export.password is required",
		},
		{
			name:    "negative max polls",
			mutate:  func(c *Config) { c.Export.MaxPolls = -1 },
			wantErr: "export.max_polls must be >= 0",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Store.Driver = "mysql" },
			wantErr: `store.driver must be postgres or sqlite, got "mysql"`,
		},
		{
			name:    "missing postgres host",
			mutate:  func(c *Config) { c.Store.Driver = "postgres" },
			wantErr: "store.postgres.host is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *Config) {
				c.Store.Driver = "postgres"
				c.Store.Postgres = DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 5, MinConns: 10}
			},
			wantErr: "store.postgres.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name:    "reset month out of range",
			mutate:  func(c *Config) { c.Pipeline.ResetMonth = 13 },
			wantErr: "pipeline.reset_month must be between 1 and 12, got 13",
		},
		{
			name:    "empty route",
			mutate:  func(c *Config) { c.Pipeline.Routes = []string{"21", " "} },
			wantErr: "pipeline.routes[1] is empty",
		},
		{
			name:    "monthly day past the 28th",
			mutate:  func(c *Config) { c.Schedule.MonthlyDay = 31 },
			wantErr: "schedule.monthly_day must be between 1 and 28, got 31",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: `log.level must be debug, info, warn or error, got "loud"`,
		},
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil {
			t.Errorf("ParseLevel(%q) unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
