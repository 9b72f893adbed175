// Package scheduler runs jobs at wall-clock times for the long-running
// serve command.
//
// Each job runs in its own goroutine: it computes the next fire time from
// the clock, waits for it, then runs. A job that fails is logged and
// rescheduled. A job is never run concurrently with itself.
package scheduler
