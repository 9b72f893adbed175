package config

import "time"

// Config is the root configuration for a flowsync run.
type Config struct {
	Export   ExportConfig   `yaml:"export"`
	Store    StoreConfig    `yaml:"store"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Schedule ScheduleConfig `yaml:"schedule"`
	ErrorLog ErrorLogConfig `yaml:"error_log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// ExportConfig holds export service settings.
type ExportConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	ContentType string        `yaml:"content_type"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`

	PollInterval   time.Duration `yaml:"poll_interval"`   // Wait between status checks
	SubmitInterval time.Duration `yaml:"submit_interval"` // Minimum spacing between submissions
	MaxPolls       int           `yaml:"max_polls"`       // 0 = wait for a terminal state indefinitely

	ResubmitDelay     time.Duration `yaml:"resubmit_delay"`      // Wait before resubmitting after a placeholder reply
	MaxSubmitAttempts int           `yaml:"max_submit_attempts"` // 0 = unbounded
}

// StoreConfig selects and configures the record store.
type StoreConfig struct {
	Driver     string   `yaml:"driver"` // "postgres" or "sqlite"
	SQLitePath string   `yaml:"sqlite_path"`
	Postgres   DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// PipelineConfig holds orchestration settings.
type PipelineConfig struct {
	Routes       []string `yaml:"routes"`         // Routes collected by the hourly feed
	ResetMonth   int      `yaml:"reset_month"`    // Month whose run archives and resets month slots
	Concurrency  int      `yaml:"concurrency"`    // Routes processed at once by the hourly feed
	DayStartHour int      `yaml:"day_start_hour"` // Hour at which a reporting day begins
}

// ScheduleConfig sets when the serve command starts each pipeline, in local time.
type ScheduleConfig struct {
	HourlyHour  int `yaml:"hourly_hour"`  // Daily start hour of the hourly feed
	MonthlyDay  int `yaml:"monthly_day"`  // Day of month for the monthly audit
	MonthlyHour int `yaml:"monthly_hour"` // Start hour of the monthly audit
}

// ErrorLogConfig configures the export failure log.
type ErrorLogConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// MetricsConfig configures the Prometheus textfile dump.
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path"` // Empty disables the dump
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `yaml:"level"`
}
