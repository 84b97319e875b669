package gateway

import (
	"encoding/json"
	"time"

	"github.com/relayforge/claude-gateway/internal/metrics"
	"github.com/relayforge/claude-gateway/internal/provider"
	"github.com/relayforge/claude-gateway/internal/schema"
)

// RequestContext is the immutable, fully-populated result of orchestration,
// handed to the HTTP handlers. Updates produce a new instance sharing
// unchanged fields; nothing is ever mutated in place.
type RequestContext struct {
	requestID string
	startTime time.Time

	inbound  *schema.MessagesRequest
	outbound json.RawMessage

	providerName   string
	resolvedModel  string
	providerConfig *provider.Config

	clientAPIKey   string
	providerAPIKey string

	toolNamesInverse map[string]string

	metrics *metrics.RequestMetrics
	tracker metrics.Tracker
	client  *provider.Client
}

// RequestID returns the globally unique id minted at orchestration start.
func (rc *RequestContext) RequestID() string { return rc.requestID }

// StartTime returns when orchestration began.
func (rc *RequestContext) StartTime() time.Time { return rc.startTime }

// Inbound returns the original parsed request.
func (rc *RequestContext) Inbound() *schema.MessagesRequest { return rc.inbound }

// Outbound returns the converted request payload, already stripped of
// reserved metadata keys.
func (rc *RequestContext) Outbound() json.RawMessage { return rc.outbound }

// ProviderName returns the resolved provider.
func (rc *RequestContext) ProviderName() string { return rc.providerName }

// ResolvedModel returns the upstream model id.
func (rc *RequestContext) ResolvedModel() string { return rc.resolvedModel }

// ProviderConfig returns the provider capability descriptor.
func (rc *RequestContext) ProviderConfig() *provider.Config { return rc.providerConfig }

// ClientAPIKey returns the credential the caller presented, if any.
func (rc *RequestContext) ClientAPIKey() string { return rc.clientAPIKey }

// ProviderAPIKey returns the proxy-held upstream credential, empty under
// passthrough.
func (rc *RequestContext) ProviderAPIKey() string { return rc.providerAPIKey }

// ToolNamesInverse returns the sanitized -> original tool-name map used
// for response-side un-mapping.
func (rc *RequestContext) ToolNamesInverse() map[string]string { return rc.toolNamesInverse }

// Metrics returns the metrics record, nil when metrics are disabled.
func (rc *RequestContext) Metrics() *metrics.RequestMetrics { return rc.metrics }

// Tracker returns the handle used to finalize metrics, nil when disabled.
func (rc *RequestContext) Tracker() metrics.Tracker { return rc.tracker }

// Client returns the upstream handle bound to the chosen provider and
// credential.
func (rc *RequestContext) Client() *provider.Client { return rc.client }

// IsStreaming reports whether the client requested an SSE response.
func (rc *RequestContext) IsStreaming() bool { return rc.inbound.IsStreaming() }

// MetricsEnabled reports whether a metrics record exists for this request.
func (rc *RequestContext) MetricsEnabled() bool { return rc.metrics != nil }

// UsesPassthrough reports whether the caller's own credential goes
// upstream unchanged.
func (rc *RequestContext) UsesPassthrough() bool {
	return rc.providerConfig != nil && rc.providerConfig.Passthrough
}

// IsAnthropicFormat reports whether the upstream speaks the Anthropic
// wire format rather than OpenAI's.
func (rc *RequestContext) IsAnthropicFormat() bool {
	return rc.providerConfig != nil && rc.providerConfig.AnthropicFormat
}

// WithOutbound returns a copy carrying a replacement outbound payload.
func (rc *RequestContext) WithOutbound(out json.RawMessage) *RequestContext {
	next := *rc
	next.outbound = out
	return &next
}

// Builder stages a RequestContext during orchestration. One builder
// serves one in-flight request and is discarded after Build.
type Builder struct {
	rc RequestContext
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) RequestID(id string) *Builder           { b.rc.requestID = id; return b }
func (b *Builder) StartTime(t time.Time) *Builder         { b.rc.startTime = t; return b }
func (b *Builder) Inbound(r *schema.MessagesRequest) *Builder { b.rc.inbound = r; return b }
func (b *Builder) Outbound(out json.RawMessage) *Builder  { b.rc.outbound = out; return b }
func (b *Builder) Provider(name string) *Builder          { b.rc.providerName = name; return b }
func (b *Builder) ResolvedModel(model string) *Builder    { b.rc.resolvedModel = model; return b }
func (b *Builder) ProviderConfig(cfg *provider.Config) *Builder { b.rc.providerConfig = cfg; return b }
func (b *Builder) ClientAPIKey(key string) *Builder       { b.rc.clientAPIKey = key; return b }
func (b *Builder) ProviderAPIKey(key string) *Builder     { b.rc.providerAPIKey = key; return b }
func (b *Builder) ToolNamesInverse(m map[string]string) *Builder { b.rc.toolNamesInverse = m; return b }
func (b *Builder) Metrics(rec *metrics.RequestMetrics) *Builder  { b.rc.metrics = rec; return b }
func (b *Builder) Tracker(t metrics.Tracker) *Builder     { b.rc.tracker = t; return b }
func (b *Builder) Client(c *provider.Client) *Builder     { b.rc.client = c; return b }

// Build validates the required field set and returns the immutable
// context. On failure the error names every missing field.
func (b *Builder) Build() (*RequestContext, error) {
	var missing []string
	if b.rc.inbound == nil {
		missing = append(missing, "inboundRequest")
	}
	if len(b.rc.outbound) == 0 {
		missing = append(missing, "outboundRequest")
	}
	if b.rc.requestID == "" {
		missing = append(missing, "requestId")
	}
	if b.rc.providerName == "" {
		missing = append(missing, "providerName")
	}
	if b.rc.resolvedModel == "" {
		missing = append(missing, "resolvedModel")
	}
	if b.rc.providerConfig == nil {
		missing = append(missing, "providerConfig")
	}
	if len(missing) > 0 {
		return nil, &ConstructionError{Missing: missing}
	}
	rc := b.rc
	return &rc, nil
}
