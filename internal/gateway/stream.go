package gateway

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/relayforge/claude-gateway/internal/schema"
	"github.com/relayforge/claude-gateway/internal/utils"
)

// streamTranslator converts an upstream OpenAI SSE stream into Claude
// Messages SSE events. One translator serves one response.
type streamTranslator struct {
	w       http.ResponseWriter
	flusher http.Flusher
	inverse map[string]string
	model   string

	started      bool
	messageID    string
	blockIndex   int
	blockOpen    bool
	blockIsTool  bool
	outputTokens int
	inputTokens  int
	stopReason   string
}

func newStreamTranslator(w http.ResponseWriter, inverse map[string]string, model string) (*streamTranslator, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	return &streamTranslator{w: w, flusher: flusher, inverse: inverse, model: model, blockIndex: -1}, nil
}

// Run consumes the upstream body until EOF or [DONE], emitting the Claude
// event sequence: message_start, content_block_* per block, message_delta,
// message_stop.
func (st *streamTranslator) Run(body io.Reader) error {
	st.w.Header().Set("Content-Type", "text/event-stream")
	st.w.Header().Set("Cache-Control", "no-cache")
	st.w.Header().Set("Connection", "keep-alive")

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		data := bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data:")))
		if bytes.Equal(data, []byte("[DONE]")) {
			break
		}
		if err := st.handleChunk(data); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read upstream stream: %w", err)
	}
	return st.finish()
}

func (st *streamTranslator) handleChunk(data []byte) error {
	chunk := gjson.ParseBytes(data)
	if !st.started {
		st.started = true
		st.messageID = chunk.Get("id").String()
		if st.messageID == "" {
			st.messageID = "msg_stream"
		}
		if err := st.emit("message_start", map[string]any{
			"type": "message_start",
			"message": map[string]any{
				"id":            st.messageID,
				"type":          "message",
				"role":          schema.RoleAssistant,
				"model":         st.model,
				"content":       []any{},
				"stop_reason":   nil,
				"stop_sequence": nil,
				"usage":         map[string]int{"input_tokens": 0, "output_tokens": 0},
			},
		}); err != nil {
			return err
		}
	}

	if usage := chunk.Get("usage"); usage.Exists() {
		st.inputTokens = int(usage.Get("prompt_tokens").Int())
		st.outputTokens = int(usage.Get("completion_tokens").Int())
	}

	choice := chunk.Get("choices.0")
	if !choice.Exists() {
		return nil
	}
	delta := choice.Get("delta")

	if text := delta.Get("content"); text.Exists() && text.String() != "" {
		if err := st.ensureBlock(false, "", ""); err != nil {
			return err
		}
		if err := st.emit("content_block_delta", map[string]any{
			"type":  "content_block_delta",
			"index": st.blockIndex,
			"delta": map[string]string{"type": "text_delta", "text": text.String()},
		}); err != nil {
			return err
		}
	}

	for _, tc := range delta.Get("tool_calls").Array() {
		if name := tc.Get("function.name"); name.Exists() && name.String() != "" {
			if err := st.ensureBlock(true, tc.Get("id").String(), unmapToolName(name.String(), st.inverse)); err != nil {
				return err
			}
		}
		if args := tc.Get("function.arguments"); args.Exists() && args.String() != "" {
			if !st.blockOpen || !st.blockIsTool {
				// Arguments without a preceding name chunk; open an
				// anonymous tool block so the fragment is not lost.
				if err := st.ensureBlock(true, tc.Get("id").String(), ""); err != nil {
					return err
				}
			}
			if err := st.emit("content_block_delta", map[string]any{
				"type":  "content_block_delta",
				"index": st.blockIndex,
				"delta": map[string]string{"type": "input_json_delta", "partial_json": args.String()},
			}); err != nil {
				return err
			}
		}
	}

	if reason := choice.Get("finish_reason"); reason.Exists() && reason.String() != "" {
		st.stopReason = schema.StopReasonFromFinish(reason.String())
	}
	return nil
}

// ensureBlock opens a content block of the requested kind, closing any
// open block of a different kind first.
func (st *streamTranslator) ensureBlock(tool bool, id, name string) error {
	if st.blockOpen && st.blockIsTool == tool && !tool {
		return nil
	}
	if st.blockOpen && tool && st.blockIsTool && name == "" {
		// Continuation of the current tool call.
		return nil
	}
	if st.blockOpen {
		if err := st.closeBlock(); err != nil {
			return err
		}
	}
	st.blockIndex++
	st.blockOpen = true
	st.blockIsTool = tool
	var block map[string]any
	if tool {
		if id == "" {
			id = fmt.Sprintf("toolu_%d", st.blockIndex)
		}
		block = map[string]any{"type": schema.BlockToolUse, "id": id, "name": name, "input": map[string]any{}}
	} else {
		block = map[string]any{"type": schema.BlockText, "text": ""}
	}
	return st.emit("content_block_start", map[string]any{
		"type":          "content_block_start",
		"index":         st.blockIndex,
		"content_block": block,
	})
}

func (st *streamTranslator) closeBlock() error {
	st.blockOpen = false
	return st.emit("content_block_stop", map[string]any{
		"type":  "content_block_stop",
		"index": st.blockIndex,
	})
}

func (st *streamTranslator) finish() error {
	if !st.started {
		return nil
	}
	if st.blockOpen {
		if err := st.closeBlock(); err != nil {
			return err
		}
	}
	if st.stopReason == "" {
		st.stopReason = "end_turn"
	}
	if err := st.emit("message_delta", map[string]any{
		"type":  "message_delta",
		"delta": map[string]any{"stop_reason": st.stopReason, "stop_sequence": nil},
		"usage": map[string]int{"output_tokens": st.outputTokens},
	}); err != nil {
		return err
	}
	return st.emit("message_stop", map[string]any{"type": "message_stop"})
}

func (st *streamTranslator) emit(event string, payload any) error {
	raw, err := utils.MarshalNoEscape(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(st.w, "event: %s\ndata: %s\n\n", event, raw); err != nil {
		return err
	}
	st.flusher.Flush()
	return nil
}
