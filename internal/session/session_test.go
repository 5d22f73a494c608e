// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omnomburp/chat-llama/internal/client"
	"github.com/omnomburp/chat-llama/internal/model"
	"github.com/omnomburp/chat-llama/internal/render"
)

// streamScript serves one canned SSE body per request, in order.
func streamScript(t *testing.T, bodies []string) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	var call int
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		idx := call
		call++
		mu.Unlock()
		if idx >= len(bodies) {
			t.Errorf("unexpected request #%d", idx+1)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(bodies[idx]))
	}))
}

func decodeJSONBody(t *testing.T, r *http.Request, v any) {
	t.Helper()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		t.Errorf("bad request body: %v", err)
	}
}

type renderCapture struct {
	mu    sync.Mutex
	html  []string
	final []bool
}

func (rc *renderCapture) add(html string, done bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.html = append(rc.html, html)
	rc.final = append(rc.final, done)
}

func (rc *renderCapture) last() (string, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if len(rc.html) == 0 {
		return "", false
	}
	return rc.html[len(rc.html)-1], rc.final[len(rc.final)-1]
}

func newTestSession(t *testing.T, server *httptest.Server, rc *renderCapture) *Session {
	t.Helper()
	return New(Config{
		Client:   client.NewClientWithConfig(&client.Config{BaseURL: server.URL}),
		Pipeline: render.New(render.Options{BaseOrigin: "http://localhost:3000"}),
		OnRender: rc.add,
		// A long interval suppresses intermediate renders so tests see
		// only the guaranteed final snapshot.
		RenderInterval: time.Hour,
	})
}

// =============================================================================
// TURN LIFECYCLE TESTS
// =============================================================================

func TestSession_SendAccumulates(t *testing.T) {
	server := streamScript(t, []string{
		"data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n" +
			"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n" +
			"data: [DONE]\n\n",
	})
	defer server.Close()

	rc := &renderCapture{}
	s := newTestSession(t, server, rc)

	err := s.Send(context.Background(), "hi", nil)
	require.NoError(t, err)

	conv := s.Conversation()
	require.Equal(t, 2, conv.MessageCount())
	require.Equal(t, "Hello", conv.LastMessage().Content)
	require.False(t, conv.LastMessage().IsStreaming)

	html, done := rc.last()
	require.True(t, done, "final render must be marked done")
	require.Contains(t, html, "Hello")
}

func TestSession_EmptyStreamGetsFallback(t *testing.T) {
	server := streamScript(t, []string{"data: [DONE]\n\n"})
	defer server.Close()

	rc := &renderCapture{}
	s := newTestSession(t, server, rc)

	require.NoError(t, s.Send(context.Background(), "hi", nil))
	require.Equal(t, model.ErrorFallbackContent, s.Conversation().LastMessage().Content)
}

func TestSession_FinalRenderAlways(t *testing.T) {
	server := streamScript(t, []string{
		"data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\ndata: [DONE]\n\n",
	})
	defer server.Close()

	rc := &renderCapture{}
	s := newTestSession(t, server, rc)
	require.NoError(t, s.Send(context.Background(), "hi", nil))

	rc.mu.Lock()
	defer rc.mu.Unlock()
	require.NotEmpty(t, rc.final)
	require.True(t, rc.final[len(rc.final)-1])
}

// =============================================================================
// SOURCE LIFECYCLE TESTS
// =============================================================================

func TestSession_SourcesDoNotLeakAcrossTurns(t *testing.T) {
	server := streamScript(t, []string{
		// Turn 1: sources arrive and a citation resolves.
		"event: sources\ndata: [{\"title\":\"Doc\",\"url\":\"https://d.example\"}]\n\n" +
			"data: {\"choices\":[{\"delta\":{\"content\":\"see link [1]\"}}]}\n\n" +
			"data: [DONE]\n\n",
		// Turn 2: no sources event at all.
		"data: {\"choices\":[{\"delta\":{\"content\":\"also link [1]\"}}]}\n\ndata: [DONE]\n\n",
	})
	defer server.Close()

	rc := &renderCapture{}
	s := newTestSession(t, server, rc)

	require.NoError(t, s.Send(context.Background(), "first", nil))
	require.Len(t, s.Conversation().Sources, 1)
	html, _ := rc.last()
	require.Contains(t, html, `href="https://d.example"`)

	require.NoError(t, s.Send(context.Background(), "second", nil))
	require.Empty(t, s.Conversation().Sources, "sources must reset at turn start")
	html, _ = rc.last()
	require.NotContains(t, html, "d.example", "turn 1 sources leaked into turn 2")
	require.Contains(t, html, "link [1]", "unresolved marker should stay literal")
}

func TestSession_HistoryExcludesCurrentTurn(t *testing.T) {
	var mu sync.Mutex
	var histories [][]model.HistoryEntry

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req client.ChatRequest
		decodeJSONBody(t, r, &req)
		mu.Lock()
		histories = append(histories, req.History)
		mu.Unlock()
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\ndata: [DONE]\n\n"))
	}))
	defer server.Close()

	s := newTestSession(t, server, &renderCapture{})
	require.NoError(t, s.Send(context.Background(), "one", nil))
	require.NoError(t, s.Send(context.Background(), "two", nil))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, histories, 2)
	require.Empty(t, histories[0], "first turn has no history")
	require.Len(t, histories[1], 2, "second turn sees first user and assistant messages")
	require.Equal(t, "one", histories[1][0].Content)
	require.Equal(t, "ok", histories[1][1].Content)
}

// =============================================================================
// SUPERSEDED STREAM TESTS
// =============================================================================

func TestSession_StaleStreamEventsDropped(t *testing.T) {
	server := streamScript(t, nil)
	defer server.Close()

	rc := &renderCapture{}
	s := newTestSession(t, server, rc)

	stale := s.Conversation()
	staleMsg := stale.AddAssistantMessage()

	// Replacing the conversation supersedes any stream bound to stale.
	s.Reset()

	s.applyDelta(stale, staleMsg, "ghost")
	s.applySources(stale, staleMsg, []model.Source{{URL: "https://g.example"}})

	require.Equal(t, "", stale.LastMessage().CurrentContent())
	require.Empty(t, stale.Sources)
	rc.mu.Lock()
	defer rc.mu.Unlock()
	require.Empty(t, rc.html, "stale events must not trigger renders")
}

// Events bound to an older turn's message are dropped even when the
// conversation itself is still current.
func TestSession_StaleTurnEventsDropped(t *testing.T) {
	server := streamScript(t, nil)
	defer server.Close()

	rc := &renderCapture{}
	s := newTestSession(t, server, rc)

	conv := s.Conversation()
	oldMsg := conv.AddAssistantMessage()
	newMsg := conv.AddAssistantMessage()

	s.applyDelta(conv, oldMsg, "ghost")
	require.Equal(t, "", newMsg.CurrentContent(), "old turn's delta reached the new message")

	s.applyDelta(conv, newMsg, "live")
	require.Equal(t, "live", newMsg.CurrentContent())
}

// A Send superseded by a newer Send on the same session must not
// finalize the newer turn's in-flight message during its cleanup, and
// must still finalize its own.
func TestSession_SupersededSendKeepsNewTurnStreaming(t *testing.T) {
	firstStarted := make(chan struct{})
	release := make(chan struct{})
	var call atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The request body must be read before the server can notice the
		// client cancelling; an unread body would park the first handler
		// forever and hang Close.
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "text/event-stream")
		if call.Add(1) == 1 {
			close(firstStarted)
			// Held open until the second Send cancels this stream.
			<-r.Context().Done()
			return
		}
		<-release
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"hello\"}}]}\n\ndata: [DONE]\n\n"))
	}))
	defer server.Close()

	rc := &renderCapture{}
	s := newTestSession(t, server, rc)
	conv := s.Conversation()

	firstDone := make(chan error, 1)
	go func() { firstDone <- s.Send(context.Background(), "first", nil) }()
	<-firstStarted

	secondDone := make(chan error, 1)
	go func() { secondDone <- s.Send(context.Background(), "second", nil) }()

	// The superseded Send's cleanup runs to completion before the second
	// turn's content is allowed to arrive.
	<-firstDone
	close(release)
	require.NoError(t, <-secondDone)

	require.Equal(t, "hello", conv.LastMessage().Content)
	require.False(t, conv.LastMessage().IsStreaming)

	// The superseded turn's own message is finalized too, carrying the
	// fallback text for the content it never received.
	require.Len(t, conv.Messages, 4)
	superseded := conv.Messages[1]
	require.False(t, superseded.IsStreaming, "superseded turn left streaming")
	require.Equal(t, model.ErrorFallbackContent, superseded.Content)
}

// =============================================================================
// SERVER ERROR FRAME TESTS
// =============================================================================

// The server emits "event: error" with plain text when its upstream
// fails mid-turn. Partial content stands, but Send must report failure.
func TestSession_ServerErrorFrameSurfaced(t *testing.T) {
	server := streamScript(t, []string{
		"data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n" +
			"event: error\ndata: stream error (see server logs)\n\n",
	})
	defer server.Close()

	var reported []error
	s := New(Config{
		Client:   client.NewClientWithConfig(&client.Config{BaseURL: server.URL}),
		Pipeline: render.New(render.Options{BaseOrigin: "http://localhost:3000"}),
		OnError:  func(err error) { reported = append(reported, err) },
		Logger:   log.New(io.Discard, "", 0),
	})

	err := s.Send(context.Background(), "hi", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "stream error")
	require.Len(t, reported, 1)
	require.Equal(t, "partial", s.Conversation().LastMessage().Content,
		"partial content must survive the error frame")
	require.False(t, s.Conversation().LastMessage().IsStreaming)
}

func TestSession_ResetReturnsPrevious(t *testing.T) {
	server := streamScript(t, nil)
	defer server.Close()

	s := newTestSession(t, server, &renderCapture{})
	first := s.Conversation()
	prev := s.Reset()
	require.Same(t, first, prev)
	require.NotSame(t, first, s.Conversation())
}
