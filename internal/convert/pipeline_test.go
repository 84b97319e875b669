package convert

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/relayforge/claude-gateway/internal/config"
	"github.com/relayforge/claude-gateway/internal/schema"
)

func testRuntime() *config.Runtime {
	return &config.Runtime{MinTokensLimit: 1, MaxTokensLimit: 4096}
}

func TestDefaultPipelineOrder(t *testing.T) {
	p := NewDefaultPipeline(testRuntime())
	var names []string
	for _, tr := range p.Transformers() {
		names = append(names, tr.Name())
	}
	assert.Equal(t, []string{
		"system_message",
		"message_content",
		"token_limit",
		"tool_schema",
		"tool_choice",
		"optional_fields",
		"metadata_injector",
	}, names)
}

func TestPipelineSimpleRequest(t *testing.T) {
	// Inbound {model, max_tokens:100, one user message} converts to the
	// same shape with the resolved model plus the provider echo key.
	req := &schema.MessagesRequest{
		Model:     "m",
		MaxTokens: 100,
		Messages:  []schema.Message{textMsg(schema.RoleUser, "Hello")},
	}
	p := NewDefaultPipeline(testRuntime())
	out, err := p.Execute(NewContext(req, "openai", "gpt-4o", nil, nil))
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", gjson.GetBytes(out, "model").String())
	assert.Equal(t, int64(100), gjson.GetBytes(out, "max_tokens").Int())
	msgs := gjson.GetBytes(out, "messages").Array()
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].Get("role").String())
	assert.Equal(t, "Hello", msgs[0].Get("content").String())
	assert.Equal(t, "openai", gjson.GetBytes(out, schema.ProviderKey).String())
	assert.False(t, gjson.GetBytes(out, "tools").Exists())
	assert.False(t, gjson.GetBytes(out, "tool_choice").Exists())
}

func TestPipelineClampsExcessiveMaxTokens(t *testing.T) {
	req := &schema.MessagesRequest{
		Model:     "m",
		MaxTokens: 999999,
		Messages:  []schema.Message{textMsg(schema.RoleUser, "Hello")},
	}
	p := NewDefaultPipeline(testRuntime())
	out, err := p.Execute(NewContext(req, "openai", "gpt-4o", nil, nil))
	require.NoError(t, err)
	assert.Equal(t, int64(4096), gjson.GetBytes(out, "max_tokens").Int())
}

type failingTransformer struct{ err error }

func (f failingTransformer) Name() string { return "failing" }
func (f failingTransformer) Transform(ctx Context) (Context, error) {
	return ctx, f.err
}

type markingTransformer struct{ key string }

func (m markingTransformer) Name() string { return "marking_" + m.key }
func (m markingTransformer) Transform(ctx Context) (Context, error) {
	return ctx.WithMetadata(m.key, "applied"), nil
}

func TestPipelineFailFast(t *testing.T) {
	boom := errors.New("boom")
	p := NewPipeline(
		markingTransformer{key: "first"},
		failingTransformer{err: boom},
		markingTransformer{key: "after"},
	)
	_, err := p.Execute(newTestContext(&schema.MessagesRequest{}))
	require.Error(t, err)

	var te *TransformerError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "failing", te.Transformer)
	assert.ErrorIs(t, err, boom)
}

func TestPipelineCustomOrder(t *testing.T) {
	// Custom orderings are supported for testing and extension.
	p := NewPipeline(TokenLimit{Min: 10, Max: 20}, MetadataInjector{})
	req := &schema.MessagesRequest{MaxTokens: 5}
	out, err := p.Execute(NewContext(req, "azure", "gpt", nil, nil))
	require.NoError(t, err)
	assert.Equal(t, int64(10), gjson.GetBytes(out, "max_tokens").Int())
	assert.Equal(t, "azure", gjson.GetBytes(out, schema.ProviderKey).String())
}

func TestContextWithMetadata(t *testing.T) {
	ctx := newTestContext(&schema.MessagesRequest{})
	next := ctx.WithMetadata("note", "value")

	v, ok := next.Metadata("note")
	assert.True(t, ok)
	assert.Equal(t, "value", v)

	_, ok = ctx.Metadata("note")
	assert.False(t, ok, "original context must not gain metadata")
}
