// Package export provides the client for the metering bulk-export service.
//
// The service answers asynchronously:
//   - POST /v2/eds/range submits a data request and returns a job id (edsUUID)
//   - GET /v1/eds/status/{id} reports queue, run, done or exception
//   - GET /{reportUrl} downloads the finished report as {"results": [...]}
//
// Submissions are throttled by a shared Limiter; the upstream rejects bursts.
package export
