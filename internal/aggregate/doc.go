// Package aggregate derives per-entity statistics from the month slots:
// annual average, summer (July to September) average and peak.
package aggregate
