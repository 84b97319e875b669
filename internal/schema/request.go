// Package schema defines the wire formats crossing the gateway.
//
// DESIGN: The inbound side (Claude Messages) is fully typed because the
// conversion pipeline walks it structurally. The outbound side (OpenAI
// Chat Completions) stays a free-form JSON document patched with sjson,
// so transformers never fight a rigid struct over optional fields.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Message roles on the inbound (Claude) side.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message roles on the outbound (OpenAI) side.
const (
	RoleSystem = "system"
	RoleTool   = "tool"
)

// Content block types.
const (
	BlockText       = "text"
	BlockImage      = "image"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// Reserved keys stamped into the outbound payload by the pipeline and
// stripped again before dispatch. They never reach an upstream provider.
const (
	ProviderKey           = "_provider"
	ToolNameMapInverseKey = "_tool_name_map_inverse"
)

// MessagesRequest is a parsed Claude Messages API request.
// Validation of the wire schema happens before this type is constructed;
// the pipeline treats it as read-only.
type MessagesRequest struct {
	Model         string          `json:"model"`
	Messages      []Message       `json:"messages"`
	System        SystemPrompt    `json:"system,omitempty"`
	Tools         []Tool          `json:"tools,omitempty"`
	ToolChoice    *ToolChoice     `json:"tool_choice,omitempty"`
	MaxTokens     int             `json:"max_tokens"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	Temperature   *float64        `json:"temperature,omitempty"`
	Stream        *bool           `json:"stream,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// IsStreaming reports whether the client asked for an SSE response.
func (r *MessagesRequest) IsStreaming() bool {
	return r.Stream != nil && *r.Stream
}

// Message is one conversational turn.
type Message struct {
	Role    string         `json:"role"`
	Content MessageContent `json:"content"`
}

// MessageContent is the string-or-blocks union used by Claude messages.
// A plain string stays a plain string so that round-tripping does not
// rewrap simple requests.
type MessageContent struct {
	Text   string
	IsText bool
	Blocks []ContentBlock
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		c.IsText = true
		return json.Unmarshal(data, &c.Text)
	}
	return json.Unmarshal(data, &c.Blocks)
}

func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.IsText {
		return json.Marshal(c.Text)
	}
	return json.Marshal(c.Blocks)
}

// ContentBlock is one typed block inside a message's content list.
// Fields are a union over the block types; Type selects which are set.
type ContentBlock struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// image
	Source *ImageSource `json:"source,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// ImageSource carries a base64-embedded image.
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// DataURI renders the image as a data: URI for OpenAI image_url entries.
func (s *ImageSource) DataURI() string {
	return fmt.Sprintf("data:%s;base64,%s", s.MediaType, s.Data)
}

// SystemPrompt is the string-or-blocks union used by the top-level
// system field.
type SystemPrompt struct {
	Text   string
	IsText bool
	Blocks []ContentBlock
}

func (s *SystemPrompt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		s.IsText = true
		return json.Unmarshal(data, &s.Text)
	}
	return json.Unmarshal(data, &s.Blocks)
}

func (s SystemPrompt) MarshalJSON() ([]byte, error) {
	if s.IsText {
		return json.Marshal(s.Text)
	}
	if s.Blocks == nil {
		return []byte("null"), nil
	}
	return json.Marshal(s.Blocks)
}

// IsZero reports whether no system prompt was supplied.
func (s SystemPrompt) IsZero() bool {
	return !s.IsText && s.Blocks == nil
}

// Tool is a Claude tool definition.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// Tool choice directive types.
const (
	ToolChoiceAuto = "auto"
	ToolChoiceAny  = "any"
	ToolChoiceTool = "tool"
)

// ToolChoice is the inbound tool-choice directive.
type ToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}
