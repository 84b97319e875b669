package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMessages() []json.RawMessage {
	return []json.RawMessage{
		json.RawMessage(`{"role":"user","content":"hi"}`),
		json.RawMessage(`{"role":"assistant","content":"hello"}`),
	}
}

func TestChainRunsInOrder(t *testing.T) {
	var order []string
	chain := NewChain(
		func(_ context.Context, _ *Context) error { order = append(order, "first"); return nil },
		func(_ context.Context, _ *Context) error { order = append(order, "second"); return nil },
	)
	chain.Append(func(_ context.Context, _ *Context) error { order = append(order, "third"); return nil })

	mc := NewContext(testMessages(), "openai", "gpt-4o", "req-1", "")
	require.NoError(t, chain.Run(context.Background(), mc))
	assert.Equal(t, []string{"first", "second", "third"}, order)
	assert.Equal(t, 3, chain.Len())
}

func TestChainStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	reached := false
	chain := NewChain(
		func(_ context.Context, _ *Context) error { return boom },
		func(_ context.Context, _ *Context) error { reached = true; return nil },
	)

	err := chain.Run(context.Background(), NewContext(nil, "", "", "", ""))
	assert.ErrorIs(t, err, boom)
	assert.False(t, reached)
}

func TestNilChainIsNoop(t *testing.T) {
	var chain *Chain
	assert.Equal(t, 0, chain.Len())
	assert.NoError(t, chain.Run(context.Background(), NewContext(nil, "", "", "", "")))
}

func TestReplaceMarksModified(t *testing.T) {
	mc := NewContext(testMessages(), "openai", "gpt-4o", "req-1", "sk-client")
	assert.False(t, mc.Modified())
	assert.Len(t, mc.Messages(), 2)

	trimmed := mc.Messages()[1:]
	mc.Replace(trimmed)
	assert.True(t, mc.Modified())
	assert.Len(t, mc.Messages(), 1)
}

func TestReadOnlyMiddlewareLeavesUnmodified(t *testing.T) {
	chain := NewChain(func(_ context.Context, mc *Context) error {
		for range mc.Messages() {
		}
		return nil
	})
	mc := NewContext(testMessages(), "openai", "gpt-4o", "req-1", "")
	require.NoError(t, chain.Run(context.Background(), mc))
	assert.False(t, mc.Modified())
}
