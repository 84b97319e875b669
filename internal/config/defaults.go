// Package config - defaults.go centralizes magic numbers and default values.
//
// DESIGN: All default values that appear in multiple places should be defined
// here. This makes configuration more maintainable and auditable.
package config

import "time"

// =============================================================================
// TOKEN LIMITS
// =============================================================================

// DefaultMinTokensLimit is the floor applied to max_tokens on outbound
// requests when the config file does not set one.
const DefaultMinTokensLimit = 1

// DefaultMaxTokensLimit is the ceiling applied to max_tokens on outbound
// requests when the config file does not set one.
const DefaultMaxTokensLimit = 8192

// TokenEstimateRatio is the approximate number of characters per token.
// Used for rough token counting when the tokenizer is unavailable.
const TokenEstimateRatio = 4

// =============================================================================
// HTTP AND NETWORKING
// =============================================================================

// DefaultPort is the listen port for the gateway.
const DefaultPort = 8089

// DefaultDialTimeout is the TCP dial timeout for upstream connections.
const DefaultDialTimeout = 30 * time.Second

// DefaultRequestTimeout bounds one upstream round trip (safe for streaming).
const DefaultRequestTimeout = 10 * time.Minute

// DefaultServerReadTimeout for the HTTP server.
const DefaultServerReadTimeout = 1 * time.Minute

// DefaultServerWriteTimeout for the HTTP server (safe for streaming).
const DefaultServerWriteTimeout = 10 * time.Minute

// MaxRequestBodySize is the maximum allowed request body (50MB).
const MaxRequestBodySize = 50 * 1024 * 1024

// MaxIdleConnsPerProvider caps pooled upstream connections per provider.
const MaxIdleConnsPerProvider = 32

// =============================================================================
// METRICS
// =============================================================================

// DefaultMetricsPath is the sqlite database used for request metrics.
const DefaultMetricsPath = "claude-gateway-metrics.db"
