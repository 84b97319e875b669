package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/relayforge/claude-gateway/internal/config"
	"github.com/relayforge/claude-gateway/internal/metrics"
	"github.com/relayforge/claude-gateway/internal/provider"
	"github.com/relayforge/claude-gateway/internal/schema"
	"github.com/relayforge/claude-gateway/internal/utils"
)

// Handler serves the Claude Messages endpoint: it parses the inbound
// request, installs the request-scoped runtime, runs orchestration,
// dispatches upstream, and re-encodes the response.
type Handler struct {
	orch      *Orchestrator
	runtime   *config.Runtime
	collector *metrics.Collector
}

// NewHandler wires the messages endpoint handler.
func NewHandler(orch *Orchestrator, rt *config.Runtime, collector *metrics.Collector) *Handler {
	return &Handler{orch: orch, runtime: rt, collector: collector}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, config.MaxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read request body: "+err.Error())
		return
	}
	req := &schema.MessagesRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Model == "" || len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "model and messages are required")
		return
	}

	ctx := config.WithRuntime(r.Context(), h.runtime)
	rc, err := h.orch.Prepare(ctx, &PrepareInput{
		Request:      req,
		RawBody:      body,
		ClientAPIKey: clientKey(r),
	})
	if err != nil {
		h.writePrepareError(w, err)
		return
	}
	h.dispatch(ctx, w, rc)
}

// clientKey extracts the caller's credential from x-api-key or a bearer
// Authorization header.
func clientKey(r *http.Request) string {
	if k := r.Header.Get("x-api-key"); k != "" {
		return k
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func (h *Handler) writePrepareError(w http.ResponseWriter, err error) {
	var se *StatusError
	if errors.As(err, &se) {
		writeError(w, se.Code, se.Message)
		return
	}
	log.Error().Err(err).Msg("orchestration failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

// dispatch sends the prepared request upstream and re-encodes the answer.
func (h *Handler) dispatch(ctx context.Context, w http.ResponseWriter, rc *RequestContext) {
	resp, err := rc.Client().Dispatch(ctx, rc.Outbound())
	if err != nil {
		h.finish(ctx, rc, metrics.OutcomeUpstreamError)
		log.Error().Err(err).Str("request_id", rc.RequestID()).Msg("upstream dispatch failed")
		writeError(w, http.StatusBadGateway, "upstream request failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		h.finish(ctx, rc, metrics.OutcomeUpstreamError)
		detail := provider.ReadError(resp)
		log.Warn().
			Int("status", resp.StatusCode).
			Str("request_id", rc.RequestID()).
			Str("provider", rc.ProviderName()).
			Msg("upstream returned error")
		writeError(w, resp.StatusCode, detail)
		return
	}

	if rc.IsStreaming() {
		st, err := newStreamTranslator(w, rc.ToolNamesInverse(), rc.Inbound().Model)
		if err != nil {
			h.finish(ctx, rc, metrics.OutcomeUpstreamError)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if err := st.Run(resp.Body); err != nil {
			// Headers are gone; all we can do is log and account.
			log.Error().Err(err).Str("request_id", rc.RequestID()).Msg("stream translation failed")
			h.finish(ctx, rc, metrics.OutcomeUpstreamError)
			return
		}
		h.finish(ctx, rc, metrics.OutcomeCompleted)
		return
	}

	upstream, err := io.ReadAll(resp.Body)
	if err != nil {
		h.finish(ctx, rc, metrics.OutcomeUpstreamError)
		writeError(w, http.StatusBadGateway, "read upstream response: "+err.Error())
		return
	}
	cc := &schema.ChatCompletion{}
	if err := json.Unmarshal(upstream, cc); err != nil {
		h.finish(ctx, rc, metrics.OutcomeUpstreamError)
		writeError(w, http.StatusBadGateway, "decode upstream response: "+err.Error())
		return
	}
	out, err := utils.MarshalNoEscape(EncodeResponse(cc, rc.ToolNamesInverse(), rc.Inbound().Model))
	if err != nil {
		h.finish(ctx, rc, metrics.OutcomeUpstreamError)
		writeError(w, http.StatusInternalServerError, "encode response: "+err.Error())
		return
	}
	h.finish(ctx, rc, metrics.OutcomeCompleted)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)

	log.Info().
		Str("request_id", rc.RequestID()).
		Str("provider", rc.ProviderName()).
		Str("model", rc.ResolvedModel()).
		Dur("elapsed", time.Since(rc.StartTime())).
		Msg("request completed")
}

// finish closes the metrics record and counts the outcome.
func (h *Handler) finish(ctx context.Context, rc *RequestContext, outcome string) {
	if rc.MetricsEnabled() && rc.Tracker() != nil {
		if err := rc.Tracker().Finish(context.WithoutCancel(ctx), rc.RequestID(), outcome); err != nil {
			log.Error().Err(err).Str("request_id", rc.RequestID()).Msg("finalize metrics")
		}
	}
	if h.collector != nil {
		h.collector.RecordOutcome(outcome)
	}
}

// writeError writes a Claude-style JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type": "error",
		"error": map[string]string{
			"type":    errorTypeForStatus(status),
			"message": msg,
		},
	})
}

func errorTypeForStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return "authentication_error"
	case status == StatusCodeClientClosedRequest:
		return "request_cancelled"
	case status == http.StatusBadRequest:
		return "invalid_request_error"
	case status == http.StatusTooManyRequests:
		return "rate_limit_error"
	case status >= 500:
		return "api_error"
	default:
		return "invalid_request_error"
	}
}
