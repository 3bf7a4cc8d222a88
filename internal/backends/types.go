// Package backends holds the HTTP clients for the two inference services:
// the always-available local backend and the policy-gated remote backend.
package backends

import "fmt"

// Message is one role-tagged chat message from the client.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// EventKind is the closed set of stream event variants. Incoming events are
// decoded into one of these; anything unrecognized becomes EventOther and
// is dropped by consumers without error.
type EventKind int

const (
	EventDelta EventKind = iota
	EventStop
	EventOther
)

// StreamEvent is one decoded event from a backend-native stream.
// A non-nil Err terminates the stream; no further events follow it.
type StreamEvent struct {
	Kind  EventKind
	Delta string
	Err   error
}

// StatusError reports a non-2xx backend response.
type StatusError struct {
	Backend string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s backend returned %d: %s", e.Backend, e.Code, e.Body)
}
