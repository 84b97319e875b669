package gateway

import (
	"encoding/json"

	"github.com/relayforge/claude-gateway/internal/schema"
	"github.com/relayforge/claude-gateway/internal/utils"
)

// EncodeResponse re-encodes an upstream chat completion as a Claude
// Messages response, un-mapping sanitized tool names via inverse.
func EncodeResponse(cc *schema.ChatCompletion, inverse map[string]string, model string) *schema.MessagesResponse {
	resp := &schema.MessagesResponse{
		ID:    cc.ID,
		Type:  "message",
		Role:  schema.RoleAssistant,
		Model: model,
	}
	if resp.ID == "" {
		resp.ID = "msg_unknown"
	}
	if len(cc.Choices) == 0 {
		resp.StopReason = "end_turn"
		resp.Content = []schema.ResponseBlock{}
		return resp
	}
	choice := cc.Choices[0]
	blocks := make([]schema.ResponseBlock, 0, 1+len(choice.Message.ToolCalls))
	if choice.Message.Content != nil && *choice.Message.Content != "" {
		blocks = append(blocks, schema.ResponseBlock{Type: schema.BlockText, Text: *choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		blocks = append(blocks, schema.ResponseBlock{
			Type:  schema.BlockToolUse,
			ID:    tc.ID,
			Name:  unmapToolName(tc.Function.Name, inverse),
			Input: parseArguments(tc.Function.Arguments),
		})
	}
	resp.Content = blocks
	resp.StopReason = schema.StopReasonFromFinish(choice.FinishReason)
	if cc.Usage != nil {
		resp.Usage = &schema.Usage{
			InputTokens:  cc.Usage.PromptTokens,
			OutputTokens: cc.Usage.CompletionTokens,
		}
	}
	return resp
}

// unmapToolName restores the original tool name the client sent.
func unmapToolName(name string, inverse map[string]string) string {
	if original, ok := inverse[name]; ok {
		return original
	}
	return name
}

// parseArguments turns an OpenAI arguments string into a tool_use input
// object. Invalid JSON is preserved under a "raw" wrapper rather than
// dropped.
func parseArguments(args string) json.RawMessage {
	if args == "" {
		return json.RawMessage(`{}`)
	}
	if json.Valid([]byte(args)) {
		return json.RawMessage(args)
	}
	wrapped, err := utils.MarshalNoEscape(map[string]string{"raw": args})
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return wrapped
}
