package metrics

import (
	"sync/atomic"
	"time"
)

// Collector keeps cheap in-memory operational counters. For production
// dashboards, export these to Prometheus or similar.
type Collector struct {
	startedAt time.Time

	requests      atomic.Int64
	completed     atomic.Int64
	authFailures  atomic.Int64
	disconnects   atomic.Int64
	toolUses      atomic.Int64
	toolResults   atomic.Int64
	requestBytes  atomic.Int64
	messagesTotal atomic.Int64
}

// NewCollector creates a collector stamped with the current time.
func NewCollector() *Collector {
	return &Collector{startedAt: time.Now()}
}

// RecordRequest counts one orchestrated request and its size counters.
func (c *Collector) RecordRequest(rec *RequestMetrics) {
	c.requests.Add(1)
	c.toolUses.Add(int64(rec.ToolUseCount))
	c.toolResults.Add(int64(rec.ToolResultCount))
	c.requestBytes.Add(int64(rec.RequestSizeBytes))
	c.messagesTotal.Add(int64(rec.MessageCount))
}

// RecordOutcome counts a terminal request state.
func (c *Collector) RecordOutcome(outcome string) {
	switch outcome {
	case OutcomeCompleted:
		c.completed.Add(1)
	case OutcomeClientDisconnected:
		c.disconnects.Add(1)
	}
}

// RecordAuthFailure counts a rejected request missing credentials.
func (c *Collector) RecordAuthFailure() { c.authFailures.Add(1) }

// Snapshot returns current totals for the status endpoint.
func (c *Collector) Snapshot() map[string]int64 {
	return map[string]int64{
		"requests":      c.requests.Load(),
		"completed":     c.completed.Load(),
		"auth_failures": c.authFailures.Load(),
		"disconnects":   c.disconnects.Load(),
		"tool_uses":     c.toolUses.Load(),
		"tool_results":  c.toolResults.Load(),
		"request_bytes": c.requestBytes.Load(),
		"messages":      c.messagesTotal.Load(),
		"uptime_ms":     time.Since(c.startedAt).Milliseconds(),
	}
}
