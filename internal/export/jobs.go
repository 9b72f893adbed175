package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/quartz"

	"github.com/wadc/flowsync/internal/model"
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// ClockSleeper returns a Sleeper driven by clock.
func ClockSleeper(clock quartz.Clock) Sleeper {
	return func(ctx context.Context, d time.Duration) error {
		if d <= 0 {
			return ctx.Err()
		}
		t := clock.NewTimer(d, "export", "poll")
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	}
}

// Filter selects records from a finished report.
type Filter func(model.FlowRecord) bool

// WirelessOnly keeps records from wireless endpoints.
func WirelessOnly(r model.FlowRecord) bool {
	return strings.TrimSpace(r.EndpointType.String()) == model.WirelessEndpoint
}

func (r Request) query() url.Values {
	q := url.Values{}
	if r.Scope != "" {
		q.Set("Service_Point_Route", r.Scope)
	}
	q.Set("Start_Date", r.Start.Format(dateLayout))
	q.Set("End_Date", r.End.Format(dateLayout))
	q.Set("Output_Format", "json")
	if r.HasEndpoint {
		q.Set("Has_Endpoint", "True")
	}
	q.Set("Header_Columns", strings.Join(r.Columns, ","))
	q.Set("Resolution", string(r.Resolution))
	return q
}

// Submit posts req and returns the handle of the accepted job.
//
// The service sometimes answers a valid submission with a bare JSON string
// instead of a job; that reply yields ErrMalformedAcceptance and the caller
// should submit again.
func (c *Client) Submit(ctx context.Context, req Request) (JobHandle, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/v2/eds/range", req.query())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return JobHandle{}, ctxErr
		}
		return JobHandle{}, &TransientSubmitError{Scope: req.Scope, Err: err}
	}

	var resp acceptanceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return JobHandle{}, fmt.Errorf("decode acceptance: %w", ErrMalformedAcceptance)
	}
	if resp.EdsUUID == "" {
		return JobHandle{}, ErrMalformedAcceptance
	}

	c.metrics.ExportSubmitted(string(req.Resolution))
	c.logger.Debug("export submitted",
		"job_id", resp.EdsUUID,
		"route", req.Scope,
		"resolution", req.Resolution,
	)
	return JobHandle{ID: resp.EdsUUID}, nil
}

// SubmitUntilAccepted repeats Submit while the service answers with a
// placeholder. Transport failures are returned unchanged.
func (c *Client) SubmitUntilAccepted(ctx context.Context, req Request) (JobHandle, error) {
	var b backoff.BackOff = backoff.NewConstantBackOff(c.resubmitDelay)
	if c.maxSubmitAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(c.maxSubmitAttempts-1))
	}
	b = backoff.WithContext(b, ctx)

	attempts := 0
	op := func() (JobHandle, error) {
		attempts++
		h, err := c.Submit(ctx, req)
		if err == nil {
			return h, nil
		}
		if errors.Is(err, ErrMalformedAcceptance) {
			c.logger.Debug("placeholder acceptance, resubmitting",
				"route", req.Scope,
				"attempt", attempts,
			)
			return JobHandle{}, err
		}
		return JobHandle{}, backoff.Permanent(err)
	}

	h, err := backoff.RetryWithData(op, b)
	if err != nil {
		return JobHandle{}, err
	}
	return h, nil
}

// Poll checks the status of a job once.
// A reply that is not a status object is treated as still queued.
func (c *Client) Poll(ctx context.Context, h JobHandle) (JobStatus, error) {
	body, err := c.doWithRetry(ctx, http.MethodGet, "/v1/eds/status/"+url.PathEscape(h.ID), nil)
	if err != nil {
		return JobStatus{}, fmt.Errorf("poll job %s: %w", h.ID, err)
	}
	c.metrics.Poll()

	var resp statusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return JobStatus{State: StateQueued}, nil
	}
	return JobStatus{
		State:     parseState(resp.State),
		ReportURL: resp.ReportURL,
		EndTime:   resp.EndTime,
		Message:   resp.Message,
	}, nil
}

// AwaitCompletion polls h until it reaches a terminal state.
//
// Between non-terminal checks it sleeps for the poll interval. A failed job
// is written to the error sink and returned as *FatalExportError.
func (c *Client) AwaitCompletion(ctx context.Context, h JobHandle) (JobStatus, error) {
	for polls := 1; ; polls++ {
		status, err := c.Poll(ctx, h)
		if err != nil {
			return JobStatus{}, err
		}

		switch status.State {
		case StateDone:
			return status, nil
		case StateFailed:
			c.metrics.ExportFailed()
			c.logger.Error("export job failed",
				"job_id", h.ID,
				"end_time", status.EndTime,
				"message", status.Message,
			)
			if c.sink != nil {
				if err := c.sink.RecordFailure(h.ID, status.EndTime, status.Message); err != nil {
					c.logger.Warn("record export failure", "job_id", h.ID, "error", err)
				}
			}
			return status, &FatalExportError{
				JobID:   h.ID,
				EndTime: status.EndTime,
				Message: status.Message,
			}
		}

		if c.maxPolls > 0 && polls >= c.maxPolls {
			return status, fmt.Errorf("job %s after %d polls: %w", h.ID, polls, ErrPollLimit)
		}

		c.logger.Debug("export job pending", "job_id", h.ID, "state", status.State)
		if err := c.sleep(ctx, c.pollInterval); err != nil {
			return status, err
		}
	}
}

// Fetch downloads the report of a finished job.
func (c *Client) Fetch(ctx context.Context, status JobStatus) ([]model.FlowRecord, error) {
	if status.State != StateDone {
		return nil, &FetchError{
			ReportURL: status.ReportURL,
			Err:       fmt.Errorf("job is %s, not done", status.State),
		}
	}
	if status.ReportURL == "" {
		return nil, &FetchError{Err: errors.New("missing report url")}
	}

	body, err := c.doRequest(ctx, http.MethodGet, status.ReportURL, nil)
	if err != nil {
		return nil, &FetchError{ReportURL: status.ReportURL, Err: err}
	}

	var resp reportResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &FetchError{ReportURL: status.ReportURL, Err: fmt.Errorf("decode report: %w", err)}
	}
	return resp.Results, nil
}

// Export runs one request end to end: wait for a limiter turn, submit until
// accepted, wait for completion, fetch, and apply filter (nil keeps all).
func (c *Client) Export(ctx context.Context, req Request, filter Filter) ([]model.FlowRecord, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	h, err := c.SubmitUntilAccepted(ctx, req)
	if err != nil {
		return nil, err
	}

	status, err := c.AwaitCompletion(ctx, h)
	if err != nil {
		return nil, err
	}

	records, err := c.Fetch(ctx, status)
	if err != nil {
		return nil, err
	}

	if filter == nil {
		return records, nil
	}
	kept := records[:0]
	for _, r := range records {
		if filter(r) {
			kept = append(kept, r)
		}
	}

	c.logger.Info("export fetched",
		"job_id", h.ID,
		"route", req.Scope,
		"records", len(records),
		"kept", len(kept),
	)
	return kept, nil
}
