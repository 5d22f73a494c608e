// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// MaxMessages is the maximum number of messages to keep in conversation
// history. When exceeded, old messages are pruned to prevent unbounded
// memory growth.
const MaxMessages = 1000

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds a complete chat conversation: its message history,
// the Source list for the current assistant turn, and the search flag.
//
// A Conversation is owned exclusively by one session and mutated only by
// appending messages, appending deltas to the last in-flight assistant
// message, and replacing the Source list.
type Conversation struct {
	// Identity
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Messages
	Messages []*Message `json:"messages"`

	// Sources for the current turn. Replaced wholesale at turn start,
	// never merged across turns.
	Sources []Source `json:"sources,omitempty"`

	// UseSearch asks the server to run web search before answering.
	UseSearch bool `json:"use_search"`
}

// NewConversation creates a new conversation with a generated ID.
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        "conv_" + uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  make([]*Message, 0),
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// AddMessage appends a message to the conversation.
func (c *Conversation) AddMessage(msg *Message) {
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
	c.updateTitle()
	c.pruneOldMessages()
}

// AddUserMessage creates and appends a user message.
func (c *Conversation) AddUserMessage(content, display string) *Message {
	msg := NewUserMessage(content, display)
	c.AddMessage(msg)
	return msg
}

// AddAssistantMessage creates and appends a streaming assistant message.
func (c *Conversation) AddAssistantMessage() *Message {
	msg := NewAssistantMessage()
	c.AddMessage(msg)
	return msg
}

// LastMessage returns the most recent message, or nil if empty.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// AppendToLast appends a delta to the last in-flight assistant message and
// returns the new full content. Returns "" if there is no streaming
// assistant message to receive it.
func (c *Conversation) AppendToLast(delta string) string {
	last := c.LastMessage()
	if last == nil || !last.IsStreaming {
		return ""
	}
	content := last.AppendDelta(delta)
	c.UpdatedAt = time.Now()
	return content
}

// FinalizeLast finalizes the last streaming message. The message is
// guaranteed non-empty afterwards (fallback text if nothing arrived).
func (c *Conversation) FinalizeLast() {
	last := c.LastMessage()
	if last != nil && last.IsStreaming {
		last.FinalizeStream()
		c.UpdatedAt = time.Now()
	}
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// IsEmpty returns true if there are no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// =============================================================================
// SOURCE MANAGEMENT
// =============================================================================

// ReplaceSources replaces the Source list wholesale.
func (c *Conversation) ReplaceSources(sources []Source) {
	c.Sources = sources
	c.UpdatedAt = time.Now()
}

// ResetSources clears the Source list. Called at the start of every turn so
// a previous turn's sources can never leak into the next turn's citation
// resolution.
func (c *Conversation) ResetSources() {
	c.Sources = nil
	c.UpdatedAt = time.Now()
}

// =============================================================================
// HISTORY
// =============================================================================

// HistoryEntry is the wire shape of one prior message in a chat request.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// History returns the completed messages in wire form, oldest first.
// In-flight and empty messages are skipped.
func (c *Conversation) History() []HistoryEntry {
	history := make([]HistoryEntry, 0, len(c.Messages))
	for _, msg := range c.Messages {
		if msg.IsStreaming || msg.Content == "" {
			continue
		}
		history = append(history, HistoryEntry{
			Role:    msg.Role.String(),
			Content: msg.Content,
		})
	}
	return history
}

// =============================================================================
// TITLE MANAGEMENT
// =============================================================================

// updateTitle auto-generates a title from the first user message if not set.
func (c *Conversation) updateTitle() {
	if c.Title != "" {
		return
	}
	for _, msg := range c.Messages {
		if msg.Role == RoleUser {
			c.Title = msg.Preview(50)
			return
		}
	}
}

// GetTitle returns the conversation title or a default.
func (c *Conversation) GetTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return "New Conversation"
}

// =============================================================================
// HELPERS
// =============================================================================

// pruneOldMessages drops the oldest messages when history exceeds
// MaxMessages. System messages are always preserved.
func (c *Conversation) pruneOldMessages() {
	if len(c.Messages) <= MaxMessages {
		return
	}

	var systemMessages []*Message
	var otherMessages []*Message
	for _, msg := range c.Messages {
		if msg.Role == RoleSystem {
			systemMessages = append(systemMessages, msg)
		} else {
			otherMessages = append(otherMessages, msg)
		}
	}

	if len(otherMessages) > MaxMessages {
		otherMessages = otherMessages[len(otherMessages)-MaxMessages:]
	}

	c.Messages = make([]*Message, 0, len(systemMessages)+len(otherMessages))
	c.Messages = append(c.Messages, systemMessages...)
	c.Messages = append(c.Messages, otherMessages...)
}
