// Package config - defaults.go centralizes magic numbers and default values.
//
// All default values that appear in multiple places should be defined here.
// This makes configuration more maintainable and auditable.
package config

import "time"

// =============================================================================
// SERVER
// =============================================================================

// DefaultPort is the gateway listen port.
const DefaultPort = 18080

// DefaultReadTimeout for the HTTP server.
const DefaultReadTimeout = 60 * time.Second

// DefaultServerWriteTimeout for the HTTP server (safe for streaming).
const DefaultServerWriteTimeout = 10 * time.Minute

// MaxRequestBodySize is the maximum allowed request body (10MB).
const MaxRequestBodySize = 10 * 1024 * 1024

// =============================================================================
// ROUTING
// =============================================================================

// DefaultLoadThreshold is the load-ratio at which idle-eligible requests
// are promoted to the remote backend. Zero disables promotion.
const DefaultLoadThreshold = 0.85

// DefaultDeepReasoningTokens is the estimated prompt size above which a
// request is considered deep-reasoning work.
const DefaultDeepReasoningTokens = 600

// =============================================================================
// QUOTA
// =============================================================================

// DefaultDailyCeiling is the maximum remote calls admitted per day.
const DefaultDailyCeiling = 50

// DefaultMonthlyCeiling is the maximum remote calls admitted per month.
const DefaultMonthlyCeiling = 500

// DefaultQuotaPath is the SQLite database holding the call counters.
const DefaultQuotaPath = "quota.db"

// =============================================================================
// BACKENDS
// =============================================================================

// DefaultLocalURL is the local inference server address.
const DefaultLocalURL = "http://localhost:11434"

// DefaultLocalModel is the model substituted into forwarded local requests.
const DefaultLocalModel = "llama3.2"

// DefaultLocalTimeout for local backend calls.
const DefaultLocalTimeout = 5 * time.Minute

// DefaultRemoteTimeout for remote backend calls.
const DefaultRemoteTimeout = 2 * time.Minute

// =============================================================================
// STREAMING
// =============================================================================

// FallbackChunkSize is the byte size used when a full fallback response is
// replayed as a chunk sequence.
const FallbackChunkSize = 512
