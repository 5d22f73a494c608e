// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"strings"
	"testing"

	"github.com/omnomburp/chat-llama/internal/model"
	"github.com/omnomburp/chat-llama/internal/render"
)

func newTestExporter(opts *Options) *HTMLExporter {
	pipeline := render.New(render.Options{BaseOrigin: "http://localhost:3000"})
	return NewHTMLExporter(pipeline, opts)
}

// =============================================================================
// HTML EXPORT TESTS
// =============================================================================

func TestExport_FullPage(t *testing.T) {
	conv := model.NewConversation()
	conv.AddUserMessage("what is **markdown**?", "what is **markdown**?")
	msg := conv.AddAssistantMessage()
	msg.AppendDelta("**Markdown** is a markup language.")
	conv.FinalizeLast()

	out, err := newTestExporter(nil).Export(conv)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	page := string(out)

	for _, want := range []string{
		"<!DOCTYPE html>",
		"dark-theme",
		"user-message",
		"assistant-message",
		"<strong>Markdown</strong>",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}

	// User content is escaped, not rendered.
	if !strings.Contains(page, "what is **markdown**?") {
		t.Error("user message should stay literal")
	}
}

func TestExport_AssistantUsesPipeline(t *testing.T) {
	conv := model.NewConversation()
	conv.AddUserMessage("cite", "cite")
	msg := conv.AddAssistantMessage()
	msg.AppendDelta("see link [1] and $x^2$")
	conv.FinalizeLast()
	conv.ReplaceSources([]model.Source{{Title: "Doc", URL: "https://d.example"}})

	out, err := newTestExporter(nil).Export(conv)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	page := string(out)

	if !strings.Contains(page, `href="https://d.example"`) {
		t.Error("citation not resolved in export")
	}
	if !strings.Contains(page, "math-inline") {
		t.Error("math not rendered in export")
	}
}

func TestExport_EmptyConversation(t *testing.T) {
	if _, err := newTestExporter(nil).Export(model.NewConversation()); err == nil {
		t.Error("expected error for empty conversation")
	}
	if _, err := newTestExporter(nil).Export(nil); err == nil {
		t.Error("expected error for nil conversation")
	}
}

func TestExport_LightTheme(t *testing.T) {
	conv := model.NewConversation()
	conv.AddUserMessage("hi", "hi")

	out, err := newTestExporter(&Options{Theme: "light"}).Export(conv)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if !strings.Contains(string(out), `<body class="light-theme">`) {
		t.Error("light theme not applied")
	}
}

func TestExport_TitleEscaped(t *testing.T) {
	conv := model.NewConversation()
	conv.AddUserMessage("<script>alert(1)</script>", "<script>alert(1)</script>")

	out, err := newTestExporter(nil).Export(conv)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if strings.Contains(string(out), "<script>alert(1)</script>") {
		t.Error("title/content not escaped")
	}
}
