package provider

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/relayforge/claude-gateway/internal/config"
	"github.com/relayforge/claude-gateway/internal/middleware"
)

// Manager owns the provider set, model routing, credential rotation, and
// upstream client pooling. All fields are fixed after construction except
// the middleware chain, which is registered during startup wiring.
type Manager struct {
	providers   map[string]*entry
	defaultName string
	httpClient  *http.Client
	chain       *middleware.Chain
}

type entry struct {
	cfg  *Config
	keys *KeyRing
}

// NewManager builds the runtime provider set from configuration.
func NewManager(cfg *config.Config) (*Manager, error) {
	m := &Manager{
		providers: make(map[string]*entry, len(cfg.Providers)),
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: config.DefaultDialTimeout}).DialContext,
				MaxIdleConnsPerHost: config.MaxIdleConnsPerProvider,
				ForceAttemptHTTP2:   true,
			},
		},
	}
	for name, pc := range cfg.Providers {
		m.providers[name] = &entry{
			cfg: &Config{
				Name:              name,
				BaseURL:           strings.TrimRight(pc.BaseURL, "/"),
				Passthrough:       pc.Passthrough,
				AnthropicFormat:   pc.AnthropicFormat,
				SanitizeToolNames: pc.SanitizeTools,
				DisableStreaming:  pc.DisableStreaming,
				Models:            pc.Models,
				Aliases:           pc.ModelAliases,
				ExtraHeaders:      pc.ExtraHeaders,
			},
			keys: NewKeyRing(pc.APIKeys),
		}
		if pc.Default {
			m.defaultName = name
		}
	}
	if m.defaultName == "" {
		// Deterministic fallback when no provider is marked default.
		names := make([]string, 0, len(m.providers))
		for name := range m.providers {
			names = append(names, name)
		}
		sort.Strings(names)
		m.defaultName = names[0]
	}
	log.Info().Int("providers", len(m.providers)).Str("default", m.defaultName).Msg("provider manager ready")
	return m, nil
}

// Resolve maps a requested model to (provider name, resolved model,
// capability descriptor). Resolution is pure over immutable state, so
// repeated calls with the same input always agree.
//
// Precedence: explicit "provider/model" prefix, then per-provider model
// lists, then the default provider.
func (m *Manager) Resolve(model string) (string, string, *Config, error) {
	if name, rest, ok := strings.Cut(model, "/"); ok {
		if e, exists := m.providers[name]; exists {
			return name, e.cfg.ResolveModel(rest), e.cfg, nil
		}
	}
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if m.providers[name].cfg.ServesModel(model) {
			return name, m.providers[name].cfg.ResolveModel(model), m.providers[name].cfg, nil
		}
	}
	e, ok := m.providers[m.defaultName]
	if !ok {
		return "", "", nil, fmt.Errorf("provider: no provider for model %q", model)
	}
	return m.defaultName, e.cfg.ResolveModel(model), e.cfg, nil
}

// NextKey obtains the next rotated credential for a provider. The ring is
// in-memory today; the context parameter keeps the call shape stable for
// external rotation backends.
func (m *Manager) NextKey(_ context.Context, name string) (string, error) {
	e, ok := m.providers[name]
	if !ok {
		return "", fmt.Errorf("provider: unknown provider %q", name)
	}
	return e.keys.Next()
}

// Client returns an upstream handle bound to the provider and credential.
func (m *Manager) Client(name, apiKey string) (*Client, error) {
	e, ok := m.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider: unknown provider %q", name)
	}
	return &Client{provider: e.cfg, apiKey: apiKey, http: m.httpClient}, nil
}

// Get returns the capability descriptor for a provider.
func (m *Manager) Get(name string) (*Config, bool) {
	e, ok := m.providers[name]
	if !ok {
		return nil, false
	}
	return e.cfg, true
}

// Use registers middleware run over every outbound message list.
func (m *Manager) Use(funcs ...middleware.Func) {
	if m.chain == nil {
		m.chain = middleware.NewChain()
	}
	m.chain.Append(funcs...)
}

// Middleware returns the configured chain, nil when none is registered.
func (m *Manager) Middleware() *middleware.Chain { return m.chain }
