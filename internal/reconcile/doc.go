// Package reconcile applies a batch of monthly flow records to the store.
//
// Each record is matched to an existing entity by serial OR address. An
// unmatched record creates an entity; a matched one overwrites its
// descriptive fields and the month slot for the observation month. Every
// record with a parseable observation month also appends a period value.
//
// In the reset month the engine archives the previous year (when the store
// supports it) and clears each matched entity's month slots before writing.
package reconcile
