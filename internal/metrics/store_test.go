package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec := &RequestMetrics{
		RequestID: "req-1",
		Provider:  "openai",
		Model:     "gpt-4o",
		StartedAt: time.Now(),
	}
	require.NoError(t, store.Start(ctx, rec))

	outcome, err := store.Outcome(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, "started", outcome)

	rec.MessageCount = 3
	rec.ToolUseCount = 1
	rec.TokenEstimate = 420
	require.NoError(t, store.Annotate(ctx, rec))

	require.NoError(t, store.Finish(ctx, "req-1", OutcomeCompleted))
	outcome, err = store.Outcome(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
}

func TestStoreStartIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec := &RequestMetrics{RequestID: "req-dup", StartedAt: time.Now()}
	require.NoError(t, store.Start(ctx, rec))
	require.NoError(t, store.Finish(ctx, "req-dup", OutcomeUpstreamError))

	// A replayed Start must not reset the record.
	require.NoError(t, store.Start(ctx, rec))
	outcome, err := store.Outcome(ctx, "req-dup")
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpstreamError, outcome)
}

func TestStoreTouchUpserts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	when, err := store.LastAccessed(ctx, "openai", "gpt-4o")
	require.NoError(t, err)
	assert.True(t, when.IsZero())

	require.NoError(t, store.Touch(ctx, "openai", "gpt-4o"))
	first, err := store.LastAccessed(ctx, "openai", "gpt-4o")
	require.NoError(t, err)
	assert.False(t, first.IsZero())

	require.NoError(t, store.Touch(ctx, "openai", "gpt-4o"))
	second, err := store.LastAccessed(ctx, "openai", "gpt-4o")
	require.NoError(t, err)
	assert.False(t, second.Before(first))
}

func TestCollectorTotals(t *testing.T) {
	c := NewCollector()
	c.RecordRequest(&RequestMetrics{MessageCount: 2, ToolUseCount: 1, ToolResultCount: 1, RequestSizeBytes: 512})
	c.RecordRequest(&RequestMetrics{MessageCount: 1, RequestSizeBytes: 100})
	c.RecordOutcome(OutcomeCompleted)
	c.RecordOutcome(OutcomeClientDisconnected)
	c.RecordAuthFailure()

	snap := c.Snapshot()
	assert.Equal(t, int64(2), snap["requests"])
	assert.Equal(t, int64(1), snap["completed"])
	assert.Equal(t, int64(1), snap["disconnects"])
	assert.Equal(t, int64(1), snap["auth_failures"])
	assert.Equal(t, int64(1), snap["tool_uses"])
	assert.Equal(t, int64(1), snap["tool_results"])
	assert.Equal(t, int64(612), snap["request_bytes"])
	assert.Equal(t, int64(3), snap["messages"])
}

func TestEstimateTokensNeverZeroForText(t *testing.T) {
	n := EstimateTokens([]byte("The quick brown fox jumps over the lazy dog."))
	assert.Greater(t, n, 0)
	assert.Equal(t, 0, EstimateTokens(nil))
}
