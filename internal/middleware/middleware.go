// Package middleware runs provider-manager middleware over the outbound
// message list before dispatch.
//
// DESIGN: Middleware sees a lightweight view of the request, not the full
// request context: the message list, routing identifiers, and the client
// credential. A middleware that wants to rewrite the conversation calls
// Replace; the orchestrator splices the replacement back into the payload
// only when something actually changed.
package middleware

import (
	"context"
	"encoding/json"
)

// Context is the middleware-facing view of one request.
type Context struct {
	Provider       string
	Model          string
	RequestID      string
	ConversationID string // unset today; reserved for session-aware middleware
	ClientKey      string

	messages []json.RawMessage
	modified bool
}

// NewContext builds a middleware context over the outbound message list.
func NewContext(messages []json.RawMessage, provider, model, requestID, clientKey string) *Context {
	return &Context{
		Provider:  provider,
		Model:     model,
		RequestID: requestID,
		ClientKey: clientKey,
		messages:  messages,
	}
}

// Messages returns the current message list.
func (c *Context) Messages() []json.RawMessage { return c.messages }

// Replace swaps in a new message list and marks the context modified.
func (c *Context) Replace(messages []json.RawMessage) {
	c.messages = messages
	c.modified = true
}

// Modified reports whether any middleware replaced the message list.
func (c *Context) Modified() bool { return c.modified }

// Func is one middleware step. It may suspend (I/O) and may fail; a
// failure aborts the chain and the request.
type Func func(ctx context.Context, mc *Context) error

// Chain applies middleware in registration order.
type Chain struct {
	funcs []Func
}

// NewChain builds a chain; a nil or empty chain is valid and does nothing.
func NewChain(funcs ...Func) *Chain {
	return &Chain{funcs: funcs}
}

// Append adds middleware to the end of the chain.
func (c *Chain) Append(funcs ...Func) {
	c.funcs = append(c.funcs, funcs...)
}

// Len returns the number of registered middleware funcs.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.funcs)
}

// Run executes the chain over mc. The first error stops execution.
func (c *Chain) Run(ctx context.Context, mc *Context) error {
	if c == nil {
		return nil
	}
	for _, fn := range c.funcs {
		if err := fn(ctx, mc); err != nil {
			return err
		}
	}
	return nil
}
