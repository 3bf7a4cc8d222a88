package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/sjson"

	"github.com/privrelay/offload-gateway/internal/backends"
	"github.com/privrelay/offload-gateway/internal/config"
	"github.com/privrelay/offload-gateway/internal/envelope"
	"github.com/privrelay/offload-gateway/internal/monitoring"
	"github.com/privrelay/offload-gateway/internal/policy"
	"github.com/privrelay/offload-gateway/internal/quota"
	"github.com/privrelay/offload-gateway/internal/redact"
	"github.com/privrelay/offload-gateway/internal/router"
	"github.com/privrelay/offload-gateway/internal/utils"
)

// getRequestID returns the client-provided request ID or generates one.
func (g *Gateway) getRequestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return uuid.New().String()
}

// handleChat processes one chat request end to end: parse, gate, route,
// then serve from whichever backend the decision selected.
func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	requestID := g.getRequestID(r)

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, config.MaxRequestBodySize)
	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		g.writeError(w, "failed to read request", errTypeGateway, http.StatusBadRequest)
		return
	}

	var req ChatRequest
	if err := json.Unmarshal(rawBody, &req); err != nil {
		g.writeError(w, "unsupported request format", errTypeGateway, http.StatusBadRequest)
		return
	}
	if len(req.Messages) == 0 {
		g.writeError(w, "messages required", errTypeGateway, http.StatusBadRequest)
		return
	}

	override, rawBody := parseOverride(&req, rawBody)
	userText := joinUserText(req.Messages)

	verdict := policy.Evaluate(
		g.cfg.Policy.OfflineRequired,
		g.cfg.Policy.CloudAllowed,
		g.cfg.Policy.AllowSensitiveCloud,
		userText,
	)

	hints := router.Hints{
		TaskType:              req.ResponseMode,
		RequiresDeepReasoning: g.requiresDeepReasoning(req.ResponseMode, userText),
		ContainsSensitiveData: verdict.Sensitive,
		OfflineRequired:       g.cfg.Policy.OfflineRequired,
		CloudAllowed:          g.cfg.Policy.CloudAllowed,
	}
	decision := router.Decide(hints)
	decision = router.ApplyLoadAware(hints, decision, g.sampler.Ratio(), g.cfg.Routing.LoadThreshold)
	resolved := router.Resolve(decision, override, verdict, g.cfg.Policy.AllowUserOverride)

	// An explicit remote demand the policy gate denies is the one case a
	// policy denial surfaces as a hard error instead of a local route.
	if override == router.OverrideRemote && g.cfg.Policy.AllowUserOverride && !verdict.Allowed {
		g.metrics.RecordPolicyDenial()
		g.recordTelemetry(requestID, startTime, resolved, req.Stream, verdict.Sensitive, userText, http.StatusForbidden, verdict.Reason)
		g.writeError(w, "remote backend denied: "+verdict.Reason, errTypeAccessDenied, http.StatusForbidden)
		return
	}

	log.Debug().
		Str("request_id", requestID).
		Str("route", string(resolved.Route)).
		Str("reason", resolved.Reason).
		Bool("load_aware", resolved.LoadAware).
		Bool("sensitive", verdict.Sensitive).
		Msg("route decided")

	w.Header().Set("X-Route-Backend", string(resolved.Route))
	w.Header().Set("X-Route-Reason", resolved.Reason)
	g.metrics.RecordRoute(resolved.Route == router.RouteRemote, resolved.LoadAware)

	if resolved.Route == router.RouteRemote {
		g.serveRemote(w, r, requestID, startTime, &req, userText, resolved, verdict)
		return
	}
	g.serveLocal(w, r, requestID, startTime, &req, rawBody, userText, resolved, verdict)
}

// serveLocal forwards the request to the local backend unchanged apart
// from model substitution. A local failure is surfaced directly; there is
// no promotion to remote.
func (g *Gateway) serveLocal(w http.ResponseWriter, r *http.Request, requestID string, startTime time.Time, req *ChatRequest, rawBody []byte, userText string, d router.Decision, v policy.Verdict) {
	ctx := r.Context()

	if req.Stream {
		events, err := g.local.Stream(ctx, rawBody)
		if err != nil {
			g.metrics.RecordRequest(false)
			g.recordTelemetry(requestID, startTime, d, true, v.Sensitive, userText, http.StatusBadGateway, err.Error())
			g.writeError(w, "local backend failed: "+err.Error(), errTypeBackend, http.StatusBadGateway)
			return
		}
		g.streamChunks(w, g.translate(ctx, requestID, "local", events, nil))
		g.metrics.RecordRequest(true)
		g.recordTelemetry(requestID, startTime, d, true, v.Sensitive, userText, http.StatusOK, "")
		return
	}

	text, err := g.local.Complete(ctx, rawBody)
	if err != nil {
		g.metrics.RecordRequest(false)
		g.recordTelemetry(requestID, startTime, d, false, v.Sensitive, userText, http.StatusBadGateway, err.Error())
		g.writeError(w, "local backend failed: "+err.Error(), errTypeBackend, http.StatusBadGateway)
		return
	}
	g.writeChatResponse(w, ChatResponse{ID: requestID, Backend: "local", Reason: d.Reason, Content: text})
	g.metrics.RecordRequest(true)
	g.recordTelemetry(requestID, startTime, d, false, v.Sensitive, userText, http.StatusOK, "")
}

// serveRemote runs the offload pipeline: cost guard, redaction, envelope
// build and validation, then the remote call. The guard must pass before
// any network traffic; an admitted call stays counted even if the stream
// is later interrupted.
func (g *Gateway) serveRemote(w http.ResponseWriter, r *http.Request, requestID string, startTime time.Time, req *ChatRequest, userText string, d router.Decision, v policy.Verdict) {
	ctx := r.Context()

	if err := g.guard.AssertAllowed(ctx); err != nil {
		if errors.Is(err, quota.ErrQuotaExceeded) {
			g.metrics.RecordQuotaRejection()
			g.metrics.RecordRequest(false)
			g.recordTelemetry(requestID, startTime, d, req.Stream, v.Sensitive, userText, http.StatusTooManyRequests, err.Error())
			g.writeError(w, err.Error(), errTypeQuota, http.StatusTooManyRequests)
			return
		}
		g.metrics.RecordRequest(false)
		g.recordTelemetry(requestID, startTime, d, req.Stream, v.Sensitive, userText, http.StatusInternalServerError, err.Error())
		g.writeError(w, "cost guard unavailable: "+err.Error(), errTypeGateway, http.StatusInternalServerError)
		return
	}

	sanitized := redact.Redact(userText)
	env := envelope.Build(envelope.BuildParams{
		SanitizedText:     sanitized,
		ContextSummary:    summarizeContext(req.Messages),
		ResponseMode:      req.ResponseMode,
		RemovedCategories: removedCategories(sanitized),
	})
	if err := envelope.Validate(env); err != nil {
		// A build that fails its own validation is a programming error;
		// never send it, never retry it.
		log.Error().Err(err).Str("request_id", requestID).Msg("envelope rejected before send")
		g.metrics.RecordRequest(false)
		g.recordTelemetry(requestID, startTime, d, req.Stream, v.Sensitive, userText, http.StatusInternalServerError, err.Error())
		g.writeError(w, err.Error(), errTypeEnvelope, http.StatusInternalServerError)
		return
	}

	if req.Stream {
		fallback := func(ctx context.Context) (string, error) {
			return g.remote.Complete(ctx, env)
		}
		events, err := g.remote.Stream(ctx, env)
		if err != nil {
			// Failure to establish the stream takes the fallback path too.
			log.Warn().Err(err).Str("request_id", requestID).Msg("remote stream not established")
			events = nil
		}
		g.streamChunks(w, g.translate(ctx, requestID, "remote", events, fallback))
		g.metrics.RecordRequest(true)
		g.recordTelemetry(requestID, startTime, d, true, v.Sensitive, userText, http.StatusOK, "")
		return
	}

	text, err := g.remote.Complete(ctx, env)
	if err != nil {
		g.metrics.RecordRequest(false)
		g.recordTelemetry(requestID, startTime, d, false, v.Sensitive, userText, http.StatusBadGateway, err.Error())
		g.writeError(w, "remote backend failed: "+err.Error(), errTypeBackend, http.StatusBadGateway)
		return
	}
	g.writeChatResponse(w, ChatResponse{ID: requestID, Backend: "remote", Reason: d.Reason, Content: text})
	g.metrics.RecordRequest(true)
	g.recordTelemetry(requestID, startTime, d, false, v.Sensitive, userText, http.StatusOK, "")
}

func (g *Gateway) writeChatResponse(w http.ResponseWriter, resp ChatResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// requiresDeepReasoning is the routing heuristic for remote-worthy work:
// structured modes and large prompts go to the bigger model when policy
// allows it.
func (g *Gateway) requiresDeepReasoning(mode, userText string) bool {
	switch envelope.NormalizeMode(mode) {
	case envelope.ModeDesign, envelope.ModeCompare:
		return true
	}
	threshold := g.cfg.Routing.DeepReasoningTokens
	return threshold > 0 && monitoring.EstimateTokens(userText) >= threshold
}

// parseOverride extracts an explicit backend selection, either from the
// backend field or from a leading #local / #cloud directive on the last
// user message. The directive is stripped before the text is used
// anywhere downstream.
func parseOverride(req *ChatRequest, rawBody []byte) (router.Override, []byte) {
	switch strings.ToLower(req.Backend) {
	case "local":
		return router.OverrideLocal, rawBody
	case "remote", "cloud":
		return router.OverrideRemote, rawBody
	}

	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role != "user" {
			continue
		}
		content := req.Messages[i].Content
		var o router.Override
		var rest string
		switch {
		case hasDirective(content, "#local"):
			o, rest = router.OverrideLocal, strings.TrimSpace(content[len("#local"):])
		case hasDirective(content, "#cloud"):
			o, rest = router.OverrideRemote, strings.TrimSpace(content[len("#cloud"):])
		case hasDirective(content, "#remote"):
			o, rest = router.OverrideRemote, strings.TrimSpace(content[len("#remote"):])
		default:
			return router.OverrideNone, rawBody
		}
		req.Messages[i].Content = rest
		rawBody, _ = sjson.SetBytes(rawBody, fmt.Sprintf("messages.%d.content", i), rest)
		return o, rawBody
	}
	return router.OverrideNone, rawBody
}

// hasDirective matches the directive as a whole leading token, so text
// like "#localhost" is not treated as one.
func hasDirective(content, directive string) bool {
	if !strings.HasPrefix(content, directive) {
		return false
	}
	rest := content[len(directive):]
	return rest == "" || rest[0] == ' ' || rest[0] == '\n' || rest[0] == '\t'
}

// joinUserText concatenates all message content for classification and
// redaction. The whole conversation is considered, not just the last turn;
// a secret pasted three messages ago still forces conservative routing.
func joinUserText(msgs []backends.Message) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.Content)
	}
	return b.String()
}

// summarizeContext builds the envelope's ordered context summary from the
// conversation so far. Each entry is redacted independently; raw text
// never enters the envelope through this path either.
func summarizeContext(msgs []backends.Message) []string {
	if len(msgs) <= 1 {
		return nil
	}
	summary := make([]string, 0, len(msgs)-1)
	for _, m := range msgs[:len(msgs)-1] {
		entry := m.Role + ": " + redact.Redact(utils.TruncateString(m.Content, 160))
		summary = append(summary, entry)
	}
	return summary
}

// removedCategories reports which detector categories actually fired,
// derived from the placeholders present in the sanitized text.
func removedCategories(sanitized string) []string {
	var removed []string
	for _, cat := range redact.Categories() {
		if strings.Contains(sanitized, "[SANITIZED:"+cat+"]") {
			removed = append(removed, cat)
		}
	}
	return removed
}

func (g *Gateway) recordTelemetry(requestID string, startTime time.Time, d router.Decision, streaming, sensitive bool, userText string, status int, errMsg string) {
	if g.tracker == nil {
		return
	}
	g.tracker.RecordRequest(&monitoring.RequestEvent{
		Timestamp:   time.Now(),
		RequestID:   requestID,
		Route:       string(d.Route),
		Reason:      d.Reason,
		LoadAware:   d.LoadAware,
		Streaming:   streaming,
		Sensitive:   sensitive,
		InputTokens: monitoring.EstimateTokens(userText),
		StatusCode:  status,
		DurationMs:  time.Since(startTime).Milliseconds(),
		Error:       errMsg,
	})
}
