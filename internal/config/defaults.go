package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultBaseURL           = "https://api.beaconama.net"
	DefaultContentType       = "application/x-www-form-urlencoded"
	DefaultExportTimeout     = 60 * time.Second
	DefaultMaxRetries        = 3
	DefaultPollInterval      = 15 * time.Second
	DefaultSubmitInterval    = 10 * time.Second
	DefaultResubmitDelay     = 10 * time.Second
	DefaultStoreDriver       = "sqlite"
	DefaultSQLitePath        = "flowsync.db"
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 4
	DefaultMinConns          = 1
	DefaultResetMonth        = 3
	DefaultConcurrency       = 1
	DefaultDayStartHour      = 6
	DefaultHourlyHour        = 7
	DefaultMonthlyDay        = 1
	DefaultMonthlyHour       = 8
	DefaultErrorLogPath      = "flowsync_export_errors.txt"
	DefaultErrorLogMaxSizeMB = 10
	DefaultErrorLogBackups   = 5
	DefaultLogLevel          = "info"
)

// DefaultRoutes are the routes collected by the hourly feed when none are configured.
var DefaultRoutes = []string{"21", "26", "27", "29"}

func (c *Config) applyDefaults() {
	// Export defaults
	if c.Export.BaseURL == "" {
		c.Export.BaseURL = DefaultBaseURL
	}
	if c.Export.ContentType == "" {
		c.Export.ContentType = DefaultContentType
	}
	if c.Export.Timeout == 0 {
		c.Export.Timeout = DefaultExportTimeout
	}
	if c.Export.MaxRetries == 0 {
		c.Export.MaxRetries = DefaultMaxRetries
	}
	if c.Export.PollInterval == 0 {
		c.Export.PollInterval = DefaultPollInterval
	}
	if c.Export.SubmitInterval == 0 {
		c.Export.SubmitInterval = DefaultSubmitInterval
	}
	if c.Export.ResubmitDelay == 0 {
		c.Export.ResubmitDelay = DefaultResubmitDelay
	}

	// Store defaults
	if c.Store.Driver == "" {
		c.Store.Driver = DefaultStoreDriver
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = DefaultSQLitePath
	}
	applyDBDefaults(&c.Store.Postgres)

	// Pipeline defaults
	if len(c.Pipeline.Routes) == 0 {
		c.Pipeline.Routes = append([]string(nil), DefaultRoutes...)
	}
	if c.Pipeline.ResetMonth == 0 {
		c.Pipeline.ResetMonth = DefaultResetMonth
	}
	if c.Pipeline.Concurrency == 0 {
		c.Pipeline.Concurrency = DefaultConcurrency
	}
	if c.Pipeline.DayStartHour == 0 {
		c.Pipeline.DayStartHour = DefaultDayStartHour
	}

	// Schedule defaults
	if c.Schedule.HourlyHour == 0 {
		c.Schedule.HourlyHour = DefaultHourlyHour
	}
	if c.Schedule.MonthlyDay == 0 {
		c.Schedule.MonthlyDay = DefaultMonthlyDay
	}
	if c.Schedule.MonthlyHour == 0 {
		c.Schedule.MonthlyHour = DefaultMonthlyHour
	}

	// Error log defaults
	if c.ErrorLog.Path == "" {
		c.ErrorLog.Path = DefaultErrorLogPath
	}
	if c.ErrorLog.MaxSizeMB == 0 {
		c.ErrorLog.MaxSizeMB = DefaultErrorLogMaxSizeMB
	}
	if c.ErrorLog.MaxBackups == 0 {
		c.ErrorLog.MaxBackups = DefaultErrorLogBackups
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
