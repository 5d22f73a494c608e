// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/omnomburp/chat-llama/internal/model"
	"github.com/omnomburp/chat-llama/internal/sse"
)

// =============================================================================
// STREAMING CHAT TESTS
// =============================================================================

func TestStreamChat_RoutesDeltasAndSources(t *testing.T) {
	var gotReq ChatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/stream" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("bad request body: %v", err)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		write := func(s string) {
			_, _ = w.Write([]byte(s))
			flusher.Flush()
		}

		write("event: sources\ndata: [{\"title\":\"Doc\",\"url\":\"https://d.example\"}]\n\n")
		write("data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		write("data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		write("data: [DONE]\n\n")
	}))
	defer server.Close()

	c := NewClientWithConfig(&Config{BaseURL: server.URL})

	var content strings.Builder
	var sources []model.Source
	router := &sse.Router{
		OnDelta:   func(delta string) { content.WriteString(delta) },
		OnSources: func(s []model.Source) { sources = s },
	}

	err := c.StreamChat(context.Background(), ChatRequest{
		Message:   "hi",
		UseSearch: true,
		History:   []model.HistoryEntry{{Role: "user", Content: "earlier"}},
	}, router)
	if err != nil {
		t.Fatalf("StreamChat failed: %v", err)
	}

	if content.String() != "Hello" {
		t.Errorf("content = %q, want Hello", content.String())
	}
	if len(sources) != 1 || sources[0].URL != "https://d.example" {
		t.Errorf("sources = %+v", sources)
	}
	if gotReq.Message != "hi" || !gotReq.UseSearch || len(gotReq.History) != 1 {
		t.Errorf("request body = %+v", gotReq)
	}
}

func TestStreamChat_CancelStopsStream(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		<-release
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	c := NewClientWithConfig(&Config{BaseURL: server.URL})

	done := make(chan error, 1)
	go func() {
		done <- c.StreamChat(ctx, ChatRequest{Message: "hi"}, &sse.Router{})
	}()

	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Error("expected cancellation error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("StreamChat did not return after cancel")
	}
}

func TestStreamChat_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClientWithConfig(&Config{BaseURL: server.URL})
	err := c.StreamChat(context.Background(), ChatRequest{Message: "hi"}, &sse.Router{})
	if err == nil {
		t.Fatal("expected error on 500")
	}

	var ce *ClientError
	if !errors.As(err, &ce) || ce.Type != ErrTypeInvalidResponse {
		t.Errorf("unexpected error: %v", err)
	}
}

// =============================================================================
// ATTACHMENT TESTS
// =============================================================================

func TestReadAttachment_Text(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("hello notes"), 0644); err != nil {
		t.Fatal(err)
	}

	att, err := ReadAttachment(path)
	if err != nil {
		t.Fatalf("ReadAttachment failed: %v", err)
	}
	if att.Name != "notes.txt" || att.Content != "hello notes" {
		t.Errorf("attachment = %+v", att)
	}
}

func TestReadAttachment_PDFRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.PDF")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := ReadAttachment(path)
	if err == nil {
		t.Fatal("expected PDF rejection")
	}
	if !strings.Contains(err.Error(), "PDF") {
		t.Errorf("error should name the format: %v", err)
	}
}

func TestReadAttachment_BinaryRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.bin")
	if err := os.WriteFile(path, []byte{0x00, 0x01, 0x02}, 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadAttachment(path); err == nil {
		t.Fatal("expected binary rejection")
	}
}

func TestReadAttachment_Missing(t *testing.T) {
	if _, err := ReadAttachment(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestComposeMessage(t *testing.T) {
	wire, display := ComposeMessage("summarize this", &Attachment{Name: "a.txt", Content: "body"})
	if !strings.Contains(wire, "body") {
		t.Errorf("wire message missing content: %q", wire)
	}
	if strings.Contains(display, "body") {
		t.Errorf("display message should not carry content: %q", display)
	}
	if !strings.Contains(display, "a.txt") {
		t.Errorf("display message should name the file: %q", display)
	}

	wire, display = ComposeMessage("plain", nil)
	if wire != "plain" || display != "plain" {
		t.Errorf("nil attachment should be identity: %q %q", wire, display)
	}
}
