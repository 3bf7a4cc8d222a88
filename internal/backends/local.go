package backends

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// LocalClient talks to the local inference server (Ollama or any server
// speaking the OpenAI chat-completions shape). Requests are forwarded as
// the client sent them, with only the model name and stream flag
// substituted, so the local path stays a passthrough.
type LocalClient struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewLocalClient(baseURL, model string, timeout time.Duration) *LocalClient {
	return &LocalClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *LocalClient) prepareBody(rawBody []byte, stream bool) ([]byte, error) {
	body, err := sjson.SetBytes(rawBody, "model", c.model)
	if err != nil {
		return nil, fmt.Errorf("substitute model: %w", err)
	}
	body, err = sjson.SetBytes(body, "stream", stream)
	if err != nil {
		return nil, fmt.Errorf("set stream flag: %w", err)
	}
	return body, nil
}

// Complete performs a non-streaming call and returns the full response text.
func (c *LocalClient) Complete(ctx context.Context, rawBody []byte) (string, error) {
	body, err := c.prepareBody(rawBody, false)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("local backend request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Backend: "local", Code: resp.StatusCode, Body: truncate(string(respBody), 512)}
	}
	return extractText(respBody), nil
}

// Stream performs a streaming call. Events arrive on the returned channel
// in upstream delivery order; the channel is closed after EventStop or an
// error event. Cancelling ctx closes the underlying connection.
func (c *LocalClient) Stream(ctx context.Context, rawBody []byte) (<-chan StreamEvent, error) {
	body, err := c.prepareBody(rawBody, true)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("local backend request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &StatusError{Backend: "local", Code: resp.StatusCode, Body: truncate(string(respBody), 512)}
	}

	events := make(chan StreamEvent, 64)
	go func() {
		defer close(events)
		defer resp.Body.Close()
		readSSE(ctx, resp.Body, events)
	}()
	return events, nil
}

// readSSE decodes data: lines into the closed event set. Malformed payloads
// are skipped, never fatal.
func readSSE(ctx context.Context, body io.Reader, events chan<- StreamEvent) {
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

		ev := decodeChatEvent(data)
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
	// Upstream closed without [DONE]; treat as a clean stop.
	events <- StreamEvent{Kind: EventStop}
}

// decodeChatEvent maps one chat-completions chunk onto the event variants.
// Both the OpenAI delta shape and the Ollama native shape are recognized.
func decodeChatEvent(data string) StreamEvent {
	if !gjson.Valid(data) {
		log.Debug().Str("data", truncate(data, 128)).Msg("skipping malformed stream chunk")
		return StreamEvent{Kind: EventOther}
	}
	if delta := gjson.Get(data, "choices.0.delta.content"); delta.Exists() && delta.String() != "" {
		return StreamEvent{Kind: EventDelta, Delta: delta.String()}
	}
	if fin := gjson.Get(data, "choices.0.finish_reason"); fin.Exists() && fin.String() != "" {
		return StreamEvent{Kind: EventStop}
	}
	// Ollama native chunk shape.
	if msg := gjson.Get(data, "message.content"); msg.Exists() && msg.String() != "" {
		return StreamEvent{Kind: EventDelta, Delta: msg.String()}
	}
	if done := gjson.Get(data, "done"); done.Exists() && done.Bool() {
		return StreamEvent{Kind: EventStop}
	}
	return StreamEvent{Kind: EventOther}
}

// extractText pulls the response text from a non-streaming completion body,
// trying the OpenAI shape first and the Ollama native shape second.
func extractText(body []byte) string {
	if text := gjson.GetBytes(body, "choices.0.message.content"); text.Exists() {
		return text.String()
	}
	return gjson.GetBytes(body, "message.content").String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
