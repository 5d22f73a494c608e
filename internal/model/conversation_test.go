// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
	"testing"
)

// =============================================================================
// MESSAGE MANAGEMENT TESTS
// =============================================================================

func TestConversation_AppendToLast(t *testing.T) {
	conv := NewConversation()

	// No streaming message yet: deltas have nowhere to go.
	if got := conv.AppendToLast("lost"); got != "" {
		t.Errorf("AppendToLast on empty conversation = %q, want \"\"", got)
	}

	conv.AddUserMessage("hi", "hi")
	if got := conv.AppendToLast("lost"); got != "" {
		t.Errorf("AppendToLast onto user message = %q, want \"\"", got)
	}

	conv.AddAssistantMessage()
	if got := conv.AppendToLast("Hello"); got != "Hello" {
		t.Errorf("AppendToLast = %q", got)
	}

	conv.FinalizeLast()
	if got := conv.AppendToLast("late"); got != "" {
		t.Errorf("AppendToLast after finalize = %q, want \"\"", got)
	}
	if conv.LastMessage().Content != "Hello" {
		t.Errorf("Content = %q", conv.LastMessage().Content)
	}
}

func TestConversation_FinalizeLastFallback(t *testing.T) {
	conv := NewConversation()
	conv.AddUserMessage("hi", "hi")
	conv.AddAssistantMessage()
	conv.FinalizeLast()

	if conv.LastMessage().Content != ErrorFallbackContent {
		t.Errorf("Content = %q, want fallback", conv.LastMessage().Content)
	}
}

// =============================================================================
// SOURCE MANAGEMENT TESTS
// =============================================================================

func TestConversation_SourcesReplacedWholesale(t *testing.T) {
	conv := NewConversation()
	conv.ReplaceSources([]Source{{URL: "https://a.example"}, {URL: "https://b.example"}})
	conv.ReplaceSources([]Source{{URL: "https://c.example"}})

	if len(conv.Sources) != 1 || conv.Sources[0].URL != "https://c.example" {
		t.Errorf("Sources = %+v, want only c.example", conv.Sources)
	}

	conv.ResetSources()
	if conv.Sources != nil {
		t.Errorf("Sources after reset = %+v", conv.Sources)
	}
}

// =============================================================================
// HISTORY TESTS
// =============================================================================

func TestConversation_History(t *testing.T) {
	conv := NewConversation()
	conv.AddUserMessage("first question", "first question")
	msg := conv.AddAssistantMessage()
	msg.AppendDelta("first answer")
	conv.FinalizeLast()

	conv.AddUserMessage("second question", "second question")
	conv.AddAssistantMessage() // still streaming, must be excluded

	history := conv.History()
	want := []HistoryEntry{
		{Role: "user", Content: "first question"},
		{Role: "assistant", Content: "first answer"},
		{Role: "user", Content: "second question"},
	}
	if len(history) != len(want) {
		t.Fatalf("history has %d entries, want %d: %+v", len(history), len(want), history)
	}
	for i := range want {
		if history[i] != want[i] {
			t.Errorf("history[%d] = %+v, want %+v", i, history[i], want[i])
		}
	}
}

// History carries the model-facing content, not the display text.
func TestConversation_HistoryUsesWireContent(t *testing.T) {
	conv := NewConversation()
	conv.AddUserMessage("question\n\nfile contents here", "question\n\n[Attached file: f.txt]")

	history := conv.History()
	if len(history) != 1 {
		t.Fatalf("history = %+v", history)
	}
	if !strings.Contains(history[0].Content, "file contents here") {
		t.Errorf("history content = %q, want wire content", history[0].Content)
	}
}

// =============================================================================
// TITLE TESTS
// =============================================================================

func TestConversation_Title(t *testing.T) {
	conv := NewConversation()
	if conv.GetTitle() != "New Conversation" {
		t.Errorf("empty title = %q", conv.GetTitle())
	}

	conv.AddUserMessage("what is the airspeed of an unladen swallow?", "what is the airspeed of an unladen swallow?")
	if conv.GetTitle() != "what is the airspeed of an unladen swallow?" {
		t.Errorf("title = %q", conv.GetTitle())
	}

	// First user message wins; later ones do not retitle.
	conv.AddUserMessage("unrelated followup", "unrelated followup")
	if conv.GetTitle() != "what is the airspeed of an unladen swallow?" {
		t.Errorf("title changed to %q", conv.GetTitle())
	}
}

// =============================================================================
// PRUNING TESTS
// =============================================================================

func TestConversation_PruneKeepsSystemMessages(t *testing.T) {
	conv := NewConversation()
	conv.AddMessage(NewMessage(RoleSystem, "system prompt"))

	for i := 0; i < MaxMessages+10; i++ {
		conv.AddMessage(NewMessage(RoleUser, fmt.Sprintf("msg %d", i)))
	}

	if conv.MessageCount() > MaxMessages+1 {
		t.Errorf("count = %d, want at most %d", conv.MessageCount(), MaxMessages+1)
	}
	if conv.Messages[0].Role != RoleSystem {
		t.Error("system message not preserved at front")
	}
	// Oldest user messages are the ones dropped.
	if conv.Messages[1].Content == "msg 0" {
		t.Error("oldest user message not pruned")
	}
	if conv.LastMessage().Content != fmt.Sprintf("msg %d", MaxMessages+9) {
		t.Errorf("newest message lost: %q", conv.LastMessage().Content)
	}
}
