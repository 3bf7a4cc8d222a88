package gateway

import "github.com/privrelay/offload-gateway/internal/backends"

// ChatRequest is the inbound request shape.
type ChatRequest struct {
	Model        string             `json:"model,omitempty"`
	Messages     []backends.Message `json:"messages"`
	Stream       bool               `json:"stream,omitempty"`
	Backend      string             `json:"backend,omitempty"`
	ResponseMode string             `json:"response_mode,omitempty"`
}

// StreamChunk is one canonical output chunk. Exactly one Final chunk
// terminates every stream; nothing follows it.
type StreamChunk struct {
	ID      string `json:"id"`
	Backend string `json:"backend"`
	Delta   string `json:"delta,omitempty"`
	Final   bool   `json:"final,omitempty"`
}

// ChatResponse is the non-streaming response shape.
type ChatResponse struct {
	ID      string `json:"id"`
	Backend string `json:"backend"`
	Reason  string `json:"reason"`
	Content string `json:"content"`
}
