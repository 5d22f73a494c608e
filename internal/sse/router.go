// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"encoding/json"
	"log"

	"github.com/omnomburp/chat-llama/internal/model"
)

// SourcesEventName marks an event whose payload replaces the conversation's
// Source list for the current turn.
const SourcesEventName = "sources"

// ErrorEventName marks a plain-text event the server emits when its
// upstream stream fails mid-turn. Any partial content already delivered
// stands, but the turn must not look like a clean completion.
const ErrorEventName = "error"

// =============================================================================
// ROUTER
// =============================================================================

// completionChunk is the wire shape of one chat-completion delta event.
// Only the first choice's delta content is consumed.
type completionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Router classifies decoded events and parses their payloads. Payload
// failures are recovered locally: the event is dropped and the stream
// continues.
type Router struct {
	// OnDelta receives each non-empty content delta in arrival order.
	OnDelta func(text string)

	// OnSources receives the parsed Source list; the list replaces the
	// previous one wholesale.
	OnSources func(sources []model.Source)

	// OnStreamError receives the server's error frame text. The stream
	// itself keeps draining; the caller decides how to surface it.
	OnStreamError func(message string)

	// Logger for dropped sources payloads. Defaults to the standard
	// logger when nil.
	Logger *log.Logger
}

// Route dispatches a single decoded event.
func (r *Router) Route(ev Event) {
	switch ev.Name {
	case SourcesEventName:
		r.routeSources(ev.Data)
	case ErrorEventName:
		r.routeError(ev.Data)
	default:
		r.routeDelta(ev.Data)
	}
}

// routeError surfaces a server-side failure frame. The payload is plain
// text, not JSON.
func (r *Router) routeError(data string) {
	r.logf("sse: server reported stream error: %s", data)
	if r.OnStreamError != nil {
		r.OnStreamError(data)
	}
}

// routeSources parses a JSON array of sources. A parse failure is reported
// and the event dropped; it must not abort the stream.
func (r *Router) routeSources(data string) {
	var sources []model.Source
	if err := json.Unmarshal([]byte(data), &sources); err != nil {
		r.logf("sse: dropping malformed sources payload: %v", err)
		return
	}
	if r.OnSources != nil {
		r.OnSources(sources)
	}
}

// routeDelta extracts the first choice's delta content. The server sends
// periodic non-content frames; anything without a usable delta is dropped
// silently.
func (r *Router) routeDelta(data string) {
	var chunk completionChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return
	}
	if len(chunk.Choices) == 0 {
		return
	}
	delta := chunk.Choices[0].Delta.Content
	if delta == "" {
		return
	}
	if r.OnDelta != nil {
		r.OnDelta(delta)
	}
}

func (r *Router) logf(format string, v ...any) {
	if r.Logger != nil {
		r.Logger.Printf(format, v...)
		return
	}
	log.Printf(format, v...)
}
