// Package database provides PostgreSQL connection pool management and the
// schema used by the postgres store.
package database
