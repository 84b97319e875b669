// Package metrics records per-request timing, routing, and size data.
//
// DESIGN: The orchestrator talks to the Tracker interface only; the
// sqlite-backed Store is the concrete implementation wired in at startup.
// A lightweight Collector of atomic counters sits alongside for cheap
// operational totals.
package metrics

import (
	"context"
	"time"
)

// Request outcomes recorded at Finish.
const (
	OutcomeCompleted          = "completed"
	OutcomeUpstreamError      = "upstream_error"
	OutcomeClientDisconnected = "client_disconnected"
)

// RequestMetrics is one request's metrics record, keyed by request id.
type RequestMetrics struct {
	RequestID string
	Provider  string
	Model     string
	StartedAt time.Time

	MessageCount     int
	ToolUseCount     int
	ToolResultCount  int
	RequestSizeBytes int
	TokenEstimate    int
}

// Tracker is the metrics lifecycle handle used by the orchestrator.
// Implementations must tolerate concurrent callers; every method may
// perform I/O and respects ctx.
type Tracker interface {
	// Start opens a record keyed by rec.RequestID.
	Start(ctx context.Context, rec *RequestMetrics) error

	// Annotate updates the resolved provider/model and counters of an
	// open record.
	Annotate(ctx context.Context, rec *RequestMetrics) error

	// Finish closes a record with an outcome. A record is never left in
	// the started state once the request has ended.
	Finish(ctx context.Context, requestID, outcome string) error

	// Touch refreshes the last-accessed marker for a provider/model pair.
	Touch(ctx context.Context, provider, model string) error
}
