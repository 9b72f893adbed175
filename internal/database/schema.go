package database

import (
	"strings"

	"github.com/wadc/flowsync/internal/store"
)

// Schema returns the idempotent DDL statements for the postgres store.
func Schema() []string {
	monthDefs := make([]string, len(store.MonthColumns))
	for i, c := range store.MonthColumns {
		monthDefs[i] = c + " DOUBLE PRECISION"
	}
	months := strings.Join(monthDefs, ",\n\t\t\t")

	return []string{
		`CREATE TABLE IF NOT EXISTS entities (
			id BIGSERIAL PRIMARY KEY,
			serial BIGINT,
			address TEXT NOT NULL DEFAULT '',
			account_name TEXT NOT NULL DEFAULT '',
			account_id TEXT NOT NULL DEFAULT '',
			city TEXT NOT NULL DEFAULT '',
			service_start DATE,
			read_method TEXT NOT NULL DEFAULT '',
			longitude DOUBLE PRECISION,
			latitude DOUBLE PRECISION,
			` + months + `,
			annual_avg DOUBLE PRECISION,
			summer_flow DOUBLE PRECISION,
			peak_flow DOUBLE PRECISION,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS entities_serial_idx ON entities (serial)`,
		`CREATE INDEX IF NOT EXISTS entities_address_idx ON entities (address)`,
		`CREATE TABLE IF NOT EXISTS period_values (
			id UUID PRIMARY KEY,
			serial BIGINT,
			address TEXT NOT NULL DEFAULT '',
			flow DOUBLE PRECISION NOT NULL,
			flow_time TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS period_values_serial_idx ON period_values (serial)`,
		`CREATE TABLE IF NOT EXISTS readings (
			id UUID PRIMARY KEY,
			route TEXT NOT NULL,
			account_name TEXT NOT NULL DEFAULT '',
			serial BIGINT,
			endpoint_type TEXT NOT NULL DEFAULT '',
			flow DOUBLE PRECISION NOT NULL,
			flow_unit TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			leak_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
			leak_start TIMESTAMPTZ,
			backflow DOUBLE PRECISION NOT NULL DEFAULT 0,
			battery TEXT NOT NULL DEFAULT '',
			flow_time TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS readings_route_time_idx ON readings (route, flow_time)`,
		`CREATE TABLE IF NOT EXISTS entity_archive (
			year INTEGER NOT NULL,
			entity_id BIGINT NOT NULL,
			serial BIGINT,
			address TEXT NOT NULL DEFAULT '',
			` + months + `,
			annual_avg DOUBLE PRECISION,
			summer_flow DOUBLE PRECISION,
			peak_flow DOUBLE PRECISION,
			archived_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (year, entity_id)
		)`,
	}
}
