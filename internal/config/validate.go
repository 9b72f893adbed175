package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Export.BaseURL == "" {
		return errors.New("export.base_url is required")
	}
	if c.Export.Username == "" {
		return errors.New("export.username is required")
	}
	if c.Export.Password == "" {
		return errors.New("export.password is required")
	}
	if c.Export.PollInterval < 0 {
		return errors.New("export.poll_interval must be >= 0")
	}
	if c.Export.MaxPolls < 0 {
		return errors.New("export.max_polls must be >= 0")
	}
	if c.Export.MaxSubmitAttempts < 0 {
		return errors.New("export.max_submit_attempts must be >= 0")
	}

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path is required")
		}
	case "postgres":
		if err := c.Store.Postgres.validate("store.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("store.driver must be postgres or sqlite, got %q", c.Store.Driver)
	}

	if c.Pipeline.ResetMonth < 1 || c.Pipeline.ResetMonth > 12 {
		return fmt.Errorf("pipeline.reset_month must be between 1 and 12, got %d", c.Pipeline.ResetMonth)
	}
	if c.Pipeline.Concurrency < 1 {
		return errors.New("pipeline.concurrency must be >= 1")
	}
	if c.Pipeline.DayStartHour < 0 || c.Pipeline.DayStartHour > 23 {
		return fmt.Errorf("pipeline.day_start_hour must be between 0 and 23, got %d", c.Pipeline.DayStartHour)
	}
	for i, r := range c.Pipeline.Routes {
		if strings.TrimSpace(r) == "" {
			return fmt.Errorf("pipeline.routes[%d] is empty", i)
		}
	}

	if c.Schedule.HourlyHour < 0 || c.Schedule.HourlyHour > 23 {
		return fmt.Errorf("schedule.hourly_hour must be between 0 and 23, got %d", c.Schedule.HourlyHour)
	}
	if c.Schedule.MonthlyHour < 0 || c.Schedule.MonthlyHour > 23 {
		return fmt.Errorf("schedule.monthly_hour must be between 0 and 23, got %d", c.Schedule.MonthlyHour)
	}
	if c.Schedule.MonthlyDay < 1 || c.Schedule.MonthlyDay > 28 {
		return fmt.Errorf("schedule.monthly_day must be between 1 and 28, got %d", c.Schedule.MonthlyDay)
	}

	if c.ErrorLog.Path == "" {
		return errors.New("error_log.path is required")
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

// ParseLevel maps a log.level value to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log.level must be debug, info, warn or error, got %q", level)
	}
}
