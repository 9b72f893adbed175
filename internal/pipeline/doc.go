// Package pipeline runs the scheduled flowsync jobs.
//
// Monthly: export the audit for the month two months back, reconcile it
// into the store, then recompute statistics.
//
// Hourly: for each configured route, export the previous reporting day's
// hourly readings from wireless endpoints and append them to the store.
// Routes are independent; a failed route does not stop the others.
package pipeline
