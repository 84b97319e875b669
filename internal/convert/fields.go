package convert

import (
	"github.com/tidwall/sjson"

	"github.com/relayforge/claude-gateway/internal/schema"
)

// TokenLimit clamps the requested max_tokens into [Min, Max]. Values
// outside the bounds are corrected silently, never rejected.
type TokenLimit struct {
	Min int
	Max int
}

func (TokenLimit) Name() string { return "token_limit" }

func (t TokenLimit) Transform(ctx Context) (Context, error) {
	doc, err := sjson.SetBytes(ctx.Outbound(), "max_tokens", t.Clamp(ctx.Inbound().MaxTokens))
	if err != nil {
		return ctx, err
	}
	return ctx.WithOutbound(doc), nil
}

// Clamp returns n forced into [Min, Max]. Idempotent.
func (t TokenLimit) Clamp(n int) int {
	if n < t.Min {
		return t.Min
	}
	if n > t.Max {
		return t.Max
	}
	return n
}

// ToolChoice maps the inbound tool-choice directive onto the OpenAI
// shape. Anything unrecognized degrades to "auto"; absence leaves the
// outbound request unchanged.
type ToolChoice struct{}

func (ToolChoice) Name() string { return "tool_choice" }

func (ToolChoice) Transform(ctx Context) (Context, error) {
	tc := ctx.Inbound().ToolChoice
	if tc == nil {
		return ctx, nil
	}
	var choice any
	switch {
	case tc.Type == schema.ToolChoiceTool && tc.Name != "":
		choice = map[string]any{
			"type":     "function",
			"function": map[string]string{"name": ctx.MappedToolName(tc.Name)},
		}
	default:
		// Covers "auto", "any", and malformed directives alike.
		choice = "auto"
	}
	doc, err := sjson.SetBytes(ctx.Outbound(), "tool_choice", choice)
	if err != nil {
		return ctx, err
	}
	return ctx.WithOutbound(doc), nil
}

// OptionalFields copies the optional passthrough parameters 1:1 when
// present: stop_sequences (as "stop"), top_p, temperature, stream.
type OptionalFields struct{}

func (OptionalFields) Name() string { return "optional_fields" }

func (OptionalFields) Transform(ctx Context) (Context, error) {
	req := ctx.Inbound()
	doc := ctx.Outbound()
	var err error
	if len(req.StopSequences) > 0 {
		if doc, err = sjson.SetBytes(doc, "stop", req.StopSequences); err != nil {
			return ctx, err
		}
	}
	if req.TopP != nil {
		if doc, err = sjson.SetBytes(doc, "top_p", *req.TopP); err != nil {
			return ctx, err
		}
	}
	if req.Temperature != nil {
		if doc, err = sjson.SetBytes(doc, "temperature", *req.Temperature); err != nil {
			return ctx, err
		}
	}
	if req.Stream != nil {
		if doc, err = sjson.SetBytes(doc, "stream", *req.Stream); err != nil {
			return ctx, err
		}
	}
	return ctx.WithOutbound(doc), nil
}
