package convert

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/relayforge/claude-gateway/internal/schema"
	"github.com/relayforge/claude-gateway/internal/utils"
)

// noToolResultContent is emitted for tool_result blocks whose content is
// null or absent.
const noToolResultContent = "No content provided"

// outMessage is one outbound chat message. Content holds a string for
// plain text or a part list for multimodal user turns.
type outMessage struct {
	Role       string        `json:"role"`
	Content    any           `json:"content"`
	ToolCalls  []outToolCall `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

type outToolCall struct {
	ID       string      `json:"id"`
	Type     string      `json:"type"`
	Function outFunction `json:"function"`
}

type outFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type textPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type imagePart struct {
	Type     string   `json:"type"`
	ImageURL imageURL `json:"image_url"`
}

type imageURL struct {
	URL string `json:"url"`
}

// appendMessage marshals msg without HTML escaping and appends it to the
// outbound messages array, returning the new document.
func appendMessage(doc json.RawMessage, msg outMessage) (json.RawMessage, error) {
	raw, err := utils.MarshalNoEscape(msg)
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(doc, "messages.-1", raw)
}

// SystemMessage extracts the system prompt and prepends it to the
// outbound message list as a role "system" message. Absent or
// whitespace-only prompts leave the context unchanged.
type SystemMessage struct{}

func (SystemMessage) Name() string { return "system_message" }

func (SystemMessage) Transform(ctx Context) (Context, error) {
	sys := ctx.Inbound().System
	var text string
	switch {
	case sys.IsText:
		text = sys.Text
	case len(sys.Blocks) > 0:
		parts := make([]string, 0, len(sys.Blocks))
		for _, b := range sys.Blocks {
			if b.Type == schema.BlockText && b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
		text = strings.Join(parts, "\n\n")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ctx, nil
	}

	raw, err := utils.MarshalNoEscape(outMessage{Role: schema.RoleSystem, Content: text})
	if err != nil {
		return ctx, err
	}
	items := [][]byte{raw}
	for _, m := range gjson.GetBytes(ctx.Outbound(), "messages").Array() {
		items = append(items, []byte(m.Raw))
	}
	doc, err := sjson.SetRawBytes(ctx.Outbound(), "messages", joinArray(items))
	if err != nil {
		return ctx, err
	}
	return ctx.WithOutbound(doc), nil
}

func joinArray(items [][]byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, it := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(it)
	}
	buf.WriteByte(']')
	return buf.Bytes()
}

// MessageContent converts the inbound conversation into outbound chat
// messages. Assistant tool calls and the tool results that answer them
// arrive as separate Claude messages but must land adjacent in the
// outbound list, so the walk looks one message ahead: a user message made
// of tool_result blocks immediately after an assistant turn is consumed
// here and emitted as role "tool" messages.
type MessageContent struct{}

func (MessageContent) Name() string { return "message_content" }

func (MessageContent) Transform(ctx Context) (Context, error) {
	doc := ctx.Outbound()
	msgs := ctx.Inbound().Messages
	var err error
	for i := 0; i < len(msgs); i++ {
		m := msgs[i]
		switch m.Role {
		case schema.RoleUser:
			doc, err = appendMessage(doc, convertUserMessage(m))
			if err != nil {
				return ctx, err
			}
		case schema.RoleAssistant:
			doc, err = appendMessage(doc, convertAssistantMessage(m, ctx))
			if err != nil {
				return ctx, err
			}
			// Lookahead: absorb the paired tool results, if any.
			if i+1 < len(msgs) && isToolResultMessage(msgs[i+1]) {
				i++
				for _, b := range msgs[i].Content.Blocks {
					if b.Type != schema.BlockToolResult {
						continue
					}
					doc, err = appendMessage(doc, outMessage{
						Role:       schema.RoleTool,
						Content:    normalizeToolResult(b.Content),
						ToolCallID: b.ToolUseID,
					})
					if err != nil {
						return ctx, err
					}
				}
			}
		}
	}
	return ctx.WithOutbound(doc), nil
}

// isToolResultMessage reports whether m is a user message carrying at
// least one tool_result block.
func isToolResultMessage(m schema.Message) bool {
	if m.Role != schema.RoleUser || m.Content.IsText {
		return false
	}
	for _, b := range m.Content.Blocks {
		if b.Type == schema.BlockToolResult {
			return true
		}
	}
	return false
}

func convertUserMessage(m schema.Message) outMessage {
	if m.Content.IsText {
		return outMessage{Role: schema.RoleUser, Content: m.Content.Text}
	}
	parts := make([]any, 0, len(m.Content.Blocks))
	for _, b := range m.Content.Blocks {
		switch b.Type {
		case schema.BlockText:
			parts = append(parts, textPart{Type: "text", Text: b.Text})
		case schema.BlockImage:
			if b.Source != nil {
				parts = append(parts, imagePart{Type: "image_url", ImageURL: imageURL{URL: b.Source.DataURI()}})
			}
		}
	}
	// A single text part collapses to plain text for wire compactness.
	if len(parts) == 1 {
		if tp, ok := parts[0].(textPart); ok {
			return outMessage{Role: schema.RoleUser, Content: tp.Text}
		}
	}
	if len(parts) == 0 {
		return outMessage{Role: schema.RoleUser, Content: ""}
	}
	return outMessage{Role: schema.RoleUser, Content: parts}
}

func convertAssistantMessage(m schema.Message, ctx Context) outMessage {
	if m.Content.IsText {
		return outMessage{Role: schema.RoleAssistant, Content: m.Content.Text}
	}
	var texts []string
	var calls []outToolCall
	for _, b := range m.Content.Blocks {
		switch b.Type {
		case schema.BlockText:
			if b.Text != "" {
				texts = append(texts, b.Text)
			}
		case schema.BlockToolUse:
			calls = append(calls, outToolCall{
				ID:   b.ID,
				Type: "function",
				Function: outFunction{
					Name:      ctx.MappedToolName(b.Name),
					Arguments: compactJSON(b.Input),
				},
			})
		}
	}
	return outMessage{
		Role:      schema.RoleAssistant,
		Content:   strings.Join(texts, "\n\n"),
		ToolCalls: calls,
	}
}

// compactJSON renders raw as a compact JSON string, "{}" when absent.
// Non-ASCII stays unescaped; tool arguments are forwarded verbatim.
func compactJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// normalizeToolResult flattens a tool_result content value to a single
// string. Claude allows a string, a block list, or a lone block object;
// anything non-textual falls back to its JSON rendering.
func normalizeToolResult(raw json.RawMessage) string {
	if len(raw) == 0 {
		return noToolResultContent
	}
	v := gjson.ParseBytes(raw)
	switch v.Type {
	case gjson.Null:
		return noToolResultContent
	case gjson.String:
		return v.String()
	}
	if v.IsArray() {
		var parts []string
		for _, item := range v.Array() {
			if item.Get("type").String() == schema.BlockText {
				parts = append(parts, item.Get("text").String())
			} else {
				parts = append(parts, item.Raw)
			}
		}
		return strings.TrimSpace(strings.Join(parts, "\n"))
	}
	if v.IsObject() && v.Get("type").String() == schema.BlockText {
		return v.Get("text").String()
	}
	return v.Raw
}
