// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations, messages,
// and web search sources.
//
// A Conversation owns an ordered list of Messages plus the Source list for
// the current assistant turn. The Source list is replaced wholesale at the
// start of each turn; citation markers in assistant text reference it by
// 1-based index.
//
// Message.Content is the text sent to or received from the model. For user
// messages it may include appended attachment text; DisplayContent, when
// set, preserves what the user actually typed. An in-flight assistant
// message accumulates streamed deltas and is append-only until finalized.
package model
