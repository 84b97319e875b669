// Package convert builds an OpenAI-style chat completion request from a
// Claude Messages request.
//
// DESIGN: A fixed-order chain of pure transformers over an immutable
// Context. The outbound request is a free-form JSON document patched with
// sjson, so every step produces a fresh buffer and no transformer ever
// mutates shared state.
//
// FLOW:
//  1. Orchestrator resolves provider/model and builds tool-name maps
//  2. NewContext seeds the outbound document with the resolved model
//  3. Pipeline.Execute runs the transformers in registration order
//  4. The final outbound document is the pipeline's only output
package convert

import (
	"encoding/json"

	"github.com/tidwall/sjson"

	"github.com/relayforge/claude-gateway/internal/schema"
)

// Context is the immutable value threaded through the pipeline. Only the
// outbound document changes between steps, and each change yields a new
// Context; the inbound request is never written to.
type Context struct {
	inbound  *schema.MessagesRequest
	provider string
	model    string

	toolNames        map[string]string // original -> sanitized
	toolNamesInverse map[string]string // sanitized -> original

	outbound json.RawMessage
	metadata map[string]string
}

// NewContext creates the initial pipeline context. The outbound document
// starts with the resolved model and an empty message list; names and
// inverse may be nil when tool-name sanitization is disabled.
func NewContext(req *schema.MessagesRequest, provider, model string, names, inverse map[string]string) Context {
	out, _ := sjson.SetBytes([]byte(`{"messages":[]}`), "model", model)
	return Context{
		inbound:          req,
		provider:         provider,
		model:            model,
		toolNames:        names,
		toolNamesInverse: inverse,
		outbound:         out,
	}
}

// Inbound returns the parsed source request. Read-only.
func (c Context) Inbound() *schema.MessagesRequest { return c.inbound }

// Provider returns the resolved provider name.
func (c Context) Provider() string { return c.provider }

// Model returns the resolved upstream model id.
func (c Context) Model() string { return c.model }

// Outbound returns the in-progress outbound document.
func (c Context) Outbound() json.RawMessage { return c.outbound }

// MappedToolName returns the sanitized form of name, or name itself when
// sanitization is disabled or the name is unknown.
func (c Context) MappedToolName(name string) string {
	if s, ok := c.toolNames[name]; ok {
		return s
	}
	return name
}

// ToolNamesInverse returns the sanitized -> original map. Callers must
// treat it as read-only.
func (c Context) ToolNamesInverse() map[string]string { return c.toolNamesInverse }

// Metadata returns the diagnostic annotation for key, if any.
func (c Context) Metadata(key string) (string, bool) {
	v, ok := c.metadata[key]
	return v, ok
}

// WithOutbound returns a copy of the context carrying a new outbound
// document. The receiver is unchanged.
func (c Context) WithOutbound(doc json.RawMessage) Context {
	c.outbound = doc
	return c
}

// WithMetadata returns a copy of the context with one annotation added.
// Annotations are diagnostic only and never drive control flow.
func (c Context) WithMetadata(key, value string) Context {
	md := make(map[string]string, len(c.metadata)+1)
	for k, v := range c.metadata {
		md[k] = v
	}
	md[key] = value
	c.metadata = md
	return c
}
