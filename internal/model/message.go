// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-runewidth"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// ErrorFallbackContent is set as the assistant message content when a turn
// ends (stream error, abort, or normal completion) without having produced
// any text. Finalizing guarantees the message is never empty.
const ErrorFallbackContent = "Sorry, something went wrong while generating a response."

// Message represents a single message in a conversation.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content is the full text sent to / received from the model. For user
	// messages this may include appended attachment text.
	Content string `json:"content"`

	// DisplayContent, when non-empty, is what the user actually typed and
	// is shown in place of Content.
	DisplayContent string `json:"display_content,omitempty"`

	// Streaming state (not persisted)
	// PERFORMANCE: strings.Builder avoids quadratic allocations
	IsStreaming   bool            `json:"-"`
	streamContent strings.Builder `json:"-"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        "msg_" + uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a user message. content is the full model-facing
// text; display is what the user typed, kept only when it differs.
func NewUserMessage(content, display string) *Message {
	msg := NewMessage(RoleUser, content)
	if display != content {
		msg.DisplayContent = display
	}
	return msg
}

// NewAssistantMessage creates an empty assistant message in streaming state.
func NewAssistantMessage() *Message {
	return &Message{
		ID:          "msg_" + uuid.NewString(),
		Role:        RoleAssistant,
		Timestamp:   time.Now(),
		IsStreaming: true,
	}
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// AppendDelta appends a streamed text fragment and returns the new full
// content. Appends are applied in arrival order; a finalized message
// ignores further deltas.
func (m *Message) AppendDelta(delta string) string {
	if m.IsStreaming {
		m.streamContent.WriteString(delta)
	}
	return m.CurrentContent()
}

// FinalizeStream completes streaming. If no content was ever produced the
// fixed fallback string is set so the message is never left empty.
func (m *Message) FinalizeStream() {
	if !m.IsStreaming {
		return
	}
	m.Content = m.streamContent.String()
	m.streamContent.Reset()
	m.IsStreaming = false

	if m.Content == "" {
		m.Content = ErrorFallbackContent
	}
}

// CurrentContent returns the model-facing content, including any partial
// streamed text for an in-flight assistant message.
func (m *Message) CurrentContent() string {
	if m.IsStreaming {
		return m.streamContent.String()
	}
	return m.Content
}

// ViewContent returns the text to show the user: DisplayContent when
// present, otherwise the (possibly streaming) content.
func (m *Message) ViewContent() string {
	if m.DisplayContent != "" {
		return m.DisplayContent
	}
	return m.CurrentContent()
}

// IsEmpty returns true if the message has no content at all.
func (m *Message) IsEmpty() bool {
	return m.Content == "" && m.streamContent.Len() == 0
}

// Preview returns the view content truncated to a maximum display width.
// Width-aware truncation keeps CJK and other wide runes from overflowing
// list columns.
func (m *Message) Preview(maxWidth int) string {
	content := strings.ReplaceAll(m.ViewContent(), "\n", " ")
	if runewidth.StringWidth(content) <= maxWidth {
		return content
	}
	return runewidth.Truncate(content, maxWidth, "...")
}
