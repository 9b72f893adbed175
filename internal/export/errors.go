package export

import (
	"errors"
	"fmt"
)

// ErrMalformedAcceptance is returned by Submit when the service accepted the
// request but replied with a placeholder instead of a job id. Resubmit.
var ErrMalformedAcceptance = errors.New("export service returned a placeholder instead of a job id")

// ErrPollLimit is returned by AwaitCompletion when a configured poll cap is
// reached before the job finished.
var ErrPollLimit = errors.New("export job did not finish within the poll limit")

// TransientSubmitError wraps a transport or HTTP failure during submission.
// The caller may retry the whole submission.
type TransientSubmitError struct {
	Scope string
	Err   error
}

func (e *TransientSubmitError) Error() string {
	if e.Scope == "" {
		return fmt.Sprintf("submit export: %v", e.Err)
	}
	return fmt.Sprintf("submit export for route %s: %v", e.Scope, e.Err)
}

func (e *TransientSubmitError) Unwrap() error { return e.Err }

// FatalExportError reports a job that reached the failed terminal state.
type FatalExportError struct {
	JobID   string
	EndTime string
	Message string
}

func (e *FatalExportError) Error() string {
	return fmt.Sprintf("export job %s failed at %s: %s", e.JobID, e.EndTime, e.Message)
}

// FetchError wraps a failure retrieving or decoding a finished report.
type FetchError struct {
	ReportURL string
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch report %q: %v", e.ReportURL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
