package convert

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/sjson"

	"github.com/relayforge/claude-gateway/internal/schema"
	"github.com/relayforge/claude-gateway/internal/utils"
)

// outTool is one entry of the outbound function-calling tool list.
type outTool struct {
	Type     string         `json:"type"`
	Function outToolFunction `json:"function"`
}

type outToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ToolSchema maps inbound tool definitions into the function-calling
// shape, applying the tool-name map. Tools with blank names are dropped;
// an empty result leaves the outbound request untouched so no empty
// array leaks through.
type ToolSchema struct{}

func (ToolSchema) Name() string { return "tool_schema" }

func (ToolSchema) Transform(ctx Context) (Context, error) {
	inbound := ctx.Inbound().Tools
	if len(inbound) == 0 {
		return ctx, nil
	}
	tools := make([]outTool, 0, len(inbound))
	for _, t := range inbound {
		if strings.TrimSpace(t.Name) == "" {
			continue
		}
		entry := outTool{
			Type: "function",
			Function: outToolFunction{
				Name:        ctx.MappedToolName(t.Name),
				Description: t.Description,
			},
		}
		if len(t.InputSchema) > 0 {
			entry.Function.Parameters = t.InputSchema
		}
		tools = append(tools, entry)
	}
	if len(tools) == 0 {
		return ctx, nil
	}
	raw, err := utils.MarshalNoEscape(tools)
	if err != nil {
		return ctx, err
	}
	doc, err := sjson.SetRawBytes(ctx.Outbound(), "tools", raw)
	if err != nil {
		return ctx, err
	}
	return ctx.WithOutbound(doc), nil
}

// MetadataInjector stamps routing metadata into the outbound payload:
// the resolved provider name, and the tool-name inverse map when one
// exists. Both live under reserved keys that the orchestrator strips
// before the payload reaches any upstream.
type MetadataInjector struct{}

func (MetadataInjector) Name() string { return "metadata_injector" }

func (MetadataInjector) Transform(ctx Context) (Context, error) {
	doc, err := sjson.SetBytes(ctx.Outbound(), schema.ProviderKey, ctx.Provider())
	if err != nil {
		return ctx, err
	}
	if inv := ctx.ToolNamesInverse(); len(inv) > 0 {
		if doc, err = sjson.SetBytes(doc, schema.ToolNameMapInverseKey, inv); err != nil {
			return ctx, err
		}
	}
	return ctx.WithOutbound(doc), nil
}
