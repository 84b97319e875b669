package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/relayforge/claude-gateway/internal/utils"
)

// Client is an upstream handle bound to one provider and one credential.
// The underlying transport is shared across clients for connection reuse.
type Client struct {
	provider *Config
	apiKey   string
	http     *http.Client
}

// Provider returns the provider this client dispatches to.
func (c *Client) Provider() *Config { return c.provider }

// Dispatch posts the converted payload to the provider's chat completions
// endpoint. The payload must already be stripped of reserved metadata
// keys. The caller owns the response body.
func (c *Client) Dispatch(ctx context.Context, payload json.RawMessage) (*http.Response, error) {
	url := c.provider.BaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		if c.provider.AnthropicFormat {
			req.Header.Set("x-api-key", c.apiKey)
		} else {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
	}
	if gjson.GetBytes(payload, "stream").Bool() {
		req.Header.Set("Accept", "text/event-stream")
	}
	for k, v := range c.provider.ExtraHeaders {
		req.Header.Set(k, v)
	}

	log.Debug().
		Str("provider", c.provider.Name).
		Str("url", url).
		Str("key", utils.MaskKey(c.apiKey)).
		Int("bytes", len(payload)).
		Msg("dispatching upstream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream %s: %w", c.provider.Name, err)
	}
	return resp, nil
}

// ReadError drains an upstream error response into a bounded string for
// logging and client echo.
func ReadError(resp *http.Response) string {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return string(body)
}
