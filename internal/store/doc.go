// Package store defines the persistence boundary for entities, their
// period-value history and hourly readings.
//
// Backends live in subpackages:
//   - postgres: pgx connection pool, used in production
//   - sqlite: single-file database, used for local runs and tests
package store
