package backends

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/privrelay/offload-gateway/internal/envelope"
)

// Signer adds request authentication before a remote call is sent.
type Signer interface {
	Sign(ctx context.Context, req *http.Request, payload []byte) error
}

// RemoteClient talks to the cloud backend. The serialized envelope is the
// sole payload crossing the boundary; raw client messages never reach this
// client.
type RemoteClient struct {
	endpoint string
	apiKey   string
	signer   Signer
	client   *http.Client
}

func NewRemoteClient(endpoint, apiKey string, signer Signer, timeout time.Duration) *RemoteClient {
	return &RemoteClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		signer:   signer,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *RemoteClient) newRequest(ctx context.Context, env envelope.Envelope, stream bool) (*http.Request, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("serialize envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.signer != nil {
		if err := c.signer.Sign(ctx, req, payload); err != nil {
			return nil, fmt.Errorf("sign request: %w", err)
		}
	}
	return req, nil
}

// Complete sends the envelope and returns the full response text.
func (c *RemoteClient) Complete(ctx context.Context, env envelope.Envelope) (string, error) {
	req, err := c.newRequest(ctx, env, false)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("remote backend request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Backend: "remote", Code: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	if text := gjson.GetBytes(body, "text"); text.Exists() {
		return text.String(), nil
	}
	return string(body), nil
}

// Stream sends the envelope and decodes the event stream. Events carry a
// "type" discriminator; delta and stop map onto the closed variant set and
// everything else is dropped without aborting the stream.
func (c *RemoteClient) Stream(ctx context.Context, env envelope.Envelope) (<-chan StreamEvent, error) {
	req, err := c.newRequest(ctx, env, true)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote backend request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &StatusError{Backend: "remote", Code: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	events := make(chan StreamEvent, 64)
	go func() {
		defer close(events)
		defer resp.Body.Close()
		readRemoteSSE(ctx, resp.Body, events)
	}()
	return events, nil
}

func readRemoteSSE(ctx context.Context, body io.Reader, events chan<- StreamEvent) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			events <- StreamEvent{Kind: EventStop}
			return
		}

		ev := decodeRemoteEvent(data)
		if ev.Kind == EventOther {
			continue
		}
		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}
		if ev.Kind == EventStop {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		events <- StreamEvent{Err: fmt.Errorf("read stream: %w", err)}
		return
	}
	events <- StreamEvent{Err: fmt.Errorf("stream ended without stop event")}
}

// decodeRemoteEvent maps one tagged event onto the closed variant set.
func decodeRemoteEvent(data string) StreamEvent {
	if !gjson.Valid(data) {
		return StreamEvent{Kind: EventOther}
	}
	switch gjson.Get(data, "type").String() {
	case "delta":
		return StreamEvent{Kind: EventDelta, Delta: gjson.Get(data, "text").String()}
	case "stop":
		return StreamEvent{Kind: EventStop}
	default:
		return StreamEvent{Kind: EventOther}
	}
}
