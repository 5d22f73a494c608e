// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/omnomburp/chat-llama/internal/client"
	"github.com/omnomburp/chat-llama/internal/model"
	"github.com/omnomburp/chat-llama/internal/render"
	"github.com/omnomburp/chat-llama/internal/sse"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds configuration for a Session.
type Config struct {
	// Client talks to the chat server. Required.
	Client *client.Client

	// Pipeline renders accumulated Markdown to HTML. Required.
	Pipeline *render.Pipeline

	// OnDelta receives each raw text fragment as it arrives, before any
	// rendering. Optional; useful for echoing tokens to a terminal.
	OnDelta func(delta string)

	// OnRender receives a rendered snapshot of the in-flight assistant
	// message. done is true for the final snapshot of a turn. Called
	// with session state held; it must not call back into the Session.
	OnRender func(html string, done bool)

	// OnError receives stream failures that are not cancellations.
	OnError func(err error)

	// RenderInterval is the minimum time between live render snapshots
	// (default: 100ms). The final snapshot ignores it.
	RenderInterval time.Duration

	// Logger receives dropped-event notices from the router.
	Logger *log.Logger
}

// =============================================================================
// SESSION
// =============================================================================

// Session owns the current conversation and its streaming state. All
// methods are safe for concurrent use; a new Send cancels the previous
// turn's stream, and events from a superseded stream are discarded.
type Session struct {
	mu       sync.Mutex
	client   *client.Client
	pipeline *render.Pipeline
	conv     *model.Conversation
	cancel   context.CancelFunc
	limiter  *rate.Limiter
	onDelta  func(string)
	onRender func(string, bool)
	onError  func(error)
	logger   *log.Logger
}

// New creates a session with a fresh conversation.
func New(cfg Config) *Session {
	interval := cfg.RenderInterval
	if interval == 0 {
		interval = 100 * time.Millisecond
	}
	return &Session{
		client:   cfg.Client,
		pipeline: cfg.Pipeline,
		conv:     model.NewConversation(),
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		onDelta:  cfg.OnDelta,
		onRender: cfg.OnRender,
		onError:  cfg.OnError,
		logger:   cfg.Logger,
	}
}

// Conversation returns the current conversation.
func (s *Session) Conversation() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv
}

// Reset cancels any in-flight stream and starts a fresh conversation.
// The previous conversation is returned so the caller can persist it.
func (s *Session) Reset() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	prev := s.conv
	s.conv = model.NewConversation()
	return prev
}

// Load replaces the current conversation with a stored one, cancelling
// any in-flight stream first.
func (s *Session) Load(conv *model.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.conv = conv
}

// SetUseSearch toggles web search for subsequent turns.
func (s *Session) SetUseSearch(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conv.UseSearch = on
}

// Stop cancels the in-flight stream, if any. The interrupted turn is
// finalized by the Send call that owns it.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// =============================================================================
// SENDING A TURN
// =============================================================================

// Send runs one chat turn to completion: it appends the user message,
// opens the stream, applies deltas and sources as they arrive, and
// finalizes the assistant message when the stream ends for any reason.
// Send blocks until the turn is over.
func (s *Session) Send(ctx context.Context, text string, att *client.Attachment) error {
	wire, display := client.ComposeMessage(text, att)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	streamCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	conv := s.conv
	// History is captured before this turn's messages are appended.
	history := conv.History()
	// A previous turn's sources must never resolve this turn's citations.
	conv.ResetSources()
	conv.AddUserMessage(wire, display)
	msg := conv.AddAssistantMessage()
	useSearch := conv.UseSearch
	s.mu.Unlock()

	// The server's error frame is plain text; it is surfaced after the
	// stream drains, with any partial content kept.
	var streamErr error
	router := &sse.Router{
		Logger:    s.logger,
		OnDelta:   func(delta string) { s.applyDelta(conv, msg, delta) },
		OnSources: func(sources []model.Source) { s.applySources(conv, msg, sources) },
		OnStreamError: func(text string) {
			streamErr = fmt.Errorf("server reported a stream error: %s", text)
		},
	}

	err := s.client.StreamChat(streamCtx, client.ChatRequest{
		Message:   wire,
		UseSearch: useSearch,
		History:   history,
	}, router)
	cancel()
	if err == nil {
		err = streamErr
	}

	s.mu.Lock()
	// This turn's message must end non-streaming and non-empty even when
	// a newer Send, Reset, or Load superseded the stream. Only the
	// still-current turn gets the conversation finalize and final render.
	if s.conv == conv && conv.LastMessage() == msg {
		conv.FinalizeLast()
		s.renderLocked(conv, true)
	} else {
		msg.FinalizeStream()
	}
	s.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		if s.onError != nil {
			s.onError(err)
		}
		return err
	}
	return nil
}

// applyDelta appends streamed text, unless the stream has been superseded
// by a newer conversation or a newer turn on the same conversation.
func (s *Session) applyDelta(conv *model.Conversation, msg *model.Message, delta string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conv != conv || conv.LastMessage() != msg {
		return
	}
	if conv.AppendToLast(delta) == "" {
		return
	}
	if s.onDelta != nil {
		s.onDelta(delta)
	}
	if s.limiter.Allow() {
		s.renderLocked(conv, false)
	}
}

// applySources replaces the turn's source list wholesale.
func (s *Session) applySources(conv *model.Conversation, msg *model.Message, sources []model.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conv != conv || conv.LastMessage() != msg {
		return
	}
	conv.ReplaceSources(sources)
	if s.limiter.Allow() {
		s.renderLocked(conv, false)
	}
}

// renderLocked emits a rendered snapshot of the last assistant message.
// Caller holds s.mu.
func (s *Session) renderLocked(conv *model.Conversation, done bool) {
	if s.onRender == nil {
		return
	}
	last := conv.LastMessage()
	if last == nil || last.Role != model.RoleAssistant {
		return
	}
	html := s.pipeline.Render(last.CurrentContent(), conv.Sources)
	s.onRender(html, done)
}
