// Package model defines shared data types used across flowsync.
//
// Conventions:
//   - Flow: gallons as reported by the export service; month slots hold
//     gallons-per-minute normalized over an average month (see NormalizeFlow)
//   - Timestamps: wall time as reported by the export service, parsed as UTC
//   - Keys: endpoint serial number when present, otherwise the location address
package model
