// Package provider resolves models to upstream providers and manages
// their credentials and HTTP clients.
//
// DESIGN:
//   - Config:  immutable capability descriptor per provider
//   - KeyRing: concurrent round-robin over proxy-held API keys
//   - Manager: model resolution, client construction, middleware handle
//   - Client:  pooled upstream HTTP handle bound to provider + key
package provider

import (
	"errors"
	"fmt"
)

// ErrNoKeys is returned when a non-passthrough provider has no
// configured API keys.
var ErrNoKeys = errors.New("provider: no api keys configured")

// Config is the runtime capability descriptor for one provider. It is
// built once at startup and never mutated.
type Config struct {
	Name              string
	BaseURL           string
	Passthrough       bool
	AnthropicFormat   bool
	SanitizeToolNames bool
	DisableStreaming  bool

	// Models this provider serves; empty means the provider only matches
	// via explicit "name/model" prefixes or as default.
	Models []string

	// Aliases rewrite a requested model to the provider's real model id.
	Aliases map[string]string

	// ExtraHeaders are attached verbatim to every upstream request.
	ExtraHeaders map[string]string
}

// ResolveModel applies the provider's alias table to a requested model.
func (c *Config) ResolveModel(model string) string {
	if real, ok := c.Aliases[model]; ok {
		return real
	}
	return model
}

// ServesModel reports whether model is in the provider's model list.
func (c *Config) ServesModel(model string) bool {
	for _, m := range c.Models {
		if m == model {
			return true
		}
	}
	return false
}

func (c *Config) String() string {
	return fmt.Sprintf("provider %s (passthrough=%t anthropic=%t sanitize=%t)",
		c.Name, c.Passthrough, c.AnthropicFormat, c.SanitizeToolNames)
}
