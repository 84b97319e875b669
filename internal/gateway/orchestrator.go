// Package gateway orchestrates one request end to end: routing, conversion,
// authentication, metrics, middleware, and the HTTP boundary.
//
// DESIGN: Orchestrator.Prepare is a strictly sequential per-request state
// machine. The conversion pipeline inside it is pure computation; the only
// suspension points are metrics I/O, credential rotation, middleware, and
// the final disconnect poll. Its output is one immutable RequestContext.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/relayforge/claude-gateway/internal/config"
	"github.com/relayforge/claude-gateway/internal/convert"
	"github.com/relayforge/claude-gateway/internal/metrics"
	"github.com/relayforge/claude-gateway/internal/middleware"
	"github.com/relayforge/claude-gateway/internal/provider"
	"github.com/relayforge/claude-gateway/internal/schema"
)

// PrepareInput carries the parsed request into orchestration. The raw
// body is kept only for size/token accounting.
type PrepareInput struct {
	Request      *schema.MessagesRequest
	RawBody      []byte
	ClientAPIKey string
}

// Orchestrator sequences provider resolution, conversion, auth, metrics,
// and middleware for every request.
type Orchestrator struct {
	providers *provider.Manager
	tracker   metrics.Tracker
	collector *metrics.Collector
}

// NewOrchestrator wires an orchestrator. tracker and collector may be nil
// when metrics are disabled process-wide.
func NewOrchestrator(providers *provider.Manager, tracker metrics.Tracker, collector *metrics.Collector) *Orchestrator {
	return &Orchestrator{providers: providers, tracker: tracker, collector: collector}
}

// Prepare runs the fixed per-request sequence and returns the immutable
// RequestContext. Failures propagate immediately with no retries; the
// disconnect path (last step) finalizes metrics before failing so no
// record is left dangling in the started state.
func (o *Orchestrator) Prepare(ctx context.Context, in *PrepareInput) (*RequestContext, error) {
	// Step 1: identity.
	requestID := uuid.NewString()
	start := time.Now()
	rt := config.RuntimeFrom(ctx)
	metricsOn := rt.LogRequestMetrics && o.tracker != nil

	// Step 2: open the metrics record before any other work so even
	// requests that fail mid-flight are accounted for.
	var rec *metrics.RequestMetrics
	if metricsOn {
		name, model, _, err := o.providers.Resolve(in.Request.Model)
		if err != nil {
			return nil, fmt.Errorf("resolve provider for metrics: %w", err)
		}
		rec = &metrics.RequestMetrics{RequestID: requestID, Provider: name, Model: model, StartedAt: start}
		if err := o.tracker.Start(ctx, rec); err != nil {
			return nil, fmt.Errorf("start metrics record: %w", err)
		}
		if err := o.tracker.Touch(ctx, name, model); err != nil {
			return nil, fmt.Errorf("touch model access: %w", err)
		}
	}

	// Step 3: resolve routing for the request itself. Resolve is pure
	// over immutable config, so this always agrees with step 2.
	providerName, resolvedModel, providerCfg, err := o.providers.Resolve(in.Request.Model)
	if err != nil {
		return nil, fmt.Errorf("resolve provider: %w", err)
	}

	// Step 4: conversion pipeline, then strip the transient metadata keys
	// so handlers only ever see a clean payload.
	var names, inverse map[string]string
	if providerCfg.SanitizeToolNames {
		names, inverse = convert.SanitizeToolNames(in.Request.Tools)
	}
	pipeline := convert.NewDefaultPipeline(rt)
	payload, err := pipeline.Execute(convert.NewContext(in.Request, providerName, resolvedModel, names, inverse))
	if err != nil {
		return nil, err
	}
	payload, inverse, err = stripReservedKeys(payload, inverse)
	if err != nil {
		return nil, fmt.Errorf("strip reserved keys: %w", err)
	}

	// Step 5: authentication mode.
	var providerKey string
	if providerCfg.Passthrough {
		if in.ClientAPIKey == "" {
			if o.collector != nil {
				o.collector.RecordAuthFailure()
			}
			return nil, NewAuthenticationRequiredError(providerName)
		}
	} else {
		providerKey, err = o.providers.NextKey(ctx, providerName)
		if err != nil {
			return nil, fmt.Errorf("rotate key for %s: %w", providerName, err)
		}
	}

	// Step 6: size and count metrics.
	if metricsOn {
		rec.MessageCount = len(in.Request.Messages)
		rec.RequestSizeBytes = len(in.RawBody)
		rec.ToolUseCount, rec.ToolResultCount = countToolBlocks(in.Request)
		rec.TokenEstimate = metrics.EstimateTokens(in.RawBody)
	}

	// Step 7: upstream client handle.
	upstreamKey := providerKey
	if providerCfg.Passthrough {
		upstreamKey = in.ClientAPIKey
	}
	client, err := o.providers.Client(providerName, upstreamKey)
	if err != nil {
		return nil, fmt.Errorf("upstream client: %w", err)
	}

	// Step 8: annotate metrics with the resolved routing.
	if metricsOn {
		rec.Provider = providerName
		rec.Model = resolvedModel
		if err := o.tracker.Annotate(ctx, rec); err != nil {
			return nil, fmt.Errorf("annotate metrics record: %w", err)
		}
		if err := o.tracker.Touch(ctx, providerName, resolvedModel); err != nil {
			return nil, fmt.Errorf("touch model access: %w", err)
		}
	}

	// Step 9: provider-manager middleware over the outbound messages.
	if chain := o.providers.Middleware(); chain.Len() > 0 {
		mc := middleware.NewContext(extractMessages(payload), providerName, resolvedModel, requestID, in.ClientAPIKey)
		if err := chain.Run(ctx, mc); err != nil {
			return nil, fmt.Errorf("middleware: %w", err)
		}
		if mc.Modified() {
			payload, err = sjson.SetRawBytes(payload, "messages", joinRawArray(mc.Messages()))
			if err != nil {
				return nil, fmt.Errorf("splice middleware messages: %w", err)
			}
		}
	}

	// Step 10: disconnect race check. Deliberately last so the metrics,
	// auth, and middleware work above is still accounted for.
	select {
	case <-ctx.Done():
		if metricsOn {
			if err := o.tracker.Finish(context.WithoutCancel(ctx), requestID, metrics.OutcomeClientDisconnected); err != nil {
				log.Error().Err(err).Str("request_id", requestID).Msg("finalize metrics on disconnect")
			}
		}
		if o.collector != nil {
			o.collector.RecordOutcome(metrics.OutcomeClientDisconnected)
		}
		return nil, NewClientDisconnectError()
	default:
	}

	if metricsOn && o.collector != nil {
		o.collector.RecordRequest(rec)
	}

	log.Debug().
		Str("request_id", requestID).
		Str("provider", providerName).
		Str("model", resolvedModel).
		Int("messages", len(in.Request.Messages)).
		Msg("request prepared")

	return NewBuilder().
		RequestID(requestID).
		StartTime(start).
		Inbound(in.Request).
		Outbound(payload).
		Provider(providerName).
		ResolvedModel(resolvedModel).
		ProviderConfig(providerCfg).
		ClientAPIKey(in.ClientAPIKey).
		ProviderAPIKey(providerKey).
		ToolNamesInverse(inverse).
		Metrics(rec).
		Tracker(o.tracker).
		Client(client).
		Build()
}

// stripReservedKeys removes the pipeline's transient metadata keys from
// the payload, returning the cleaned payload and the extracted inverse
// tool-name map (which wins over the locally computed one).
func stripReservedKeys(payload json.RawMessage, inverse map[string]string) (json.RawMessage, map[string]string, error) {
	if res := gjson.GetBytes(payload, schema.ToolNameMapInverseKey); res.Exists() {
		extracted := make(map[string]string)
		res.ForEach(func(k, v gjson.Result) bool {
			extracted[k.String()] = v.String()
			return true
		})
		inverse = extracted
		var err error
		if payload, err = sjson.DeleteBytes(payload, schema.ToolNameMapInverseKey); err != nil {
			return nil, nil, err
		}
	}
	payload, err := sjson.DeleteBytes(payload, schema.ProviderKey)
	if err != nil {
		return nil, nil, err
	}
	return payload, inverse, nil
}

// extractMessages pulls the outbound message list as raw JSON items.
func extractMessages(payload json.RawMessage) []json.RawMessage {
	items := gjson.GetBytes(payload, "messages").Array()
	out := make([]json.RawMessage, 0, len(items))
	for _, it := range items {
		out = append(out, json.RawMessage(it.Raw))
	}
	return out
}

func joinRawArray(items []json.RawMessage) []byte {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, it := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(it)
	}
	buf.WriteByte(']')
	return buf.Bytes()
}

// countToolBlocks tallies tool invocation and tool result blocks across
// the inbound conversation.
func countToolBlocks(req *schema.MessagesRequest) (uses, results int) {
	for _, m := range req.Messages {
		if m.Content.IsText {
			continue
		}
		for _, b := range m.Content.Blocks {
			switch b.Type {
			case schema.BlockToolUse:
				uses++
			case schema.BlockToolResult:
				results++
			}
		}
	}
	return uses, results
}
