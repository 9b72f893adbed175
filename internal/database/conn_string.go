package database

import (
	"net"
	"net/url"
	"strconv"

	"github.com/wadc/flowsync/internal/config"
)

// ApplicationName identifies flowsync connections in pg_stat_activity.
const ApplicationName = "flowsync"

// ConnectTimeoutSeconds bounds each connection attempt.
const ConnectTimeoutSeconds = 10

// BuildConnString builds a PostgreSQL URL from config. Credentials are
// percent-encoded; an empty ssl mode becomes "prefer".
func BuildConnString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultDBSSLMode
	}

	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("application_name", ApplicationName)
	q.Set("connect_timeout", strconv.Itoa(ConnectTimeoutSeconds))

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}
