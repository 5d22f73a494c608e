// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package client provides the HTTP client for the chat-llama streaming API.
//
// The server exposes a single streaming endpoint, POST /api/chat/stream,
// which answers with Server-Sent Events. StreamChat opens the stream and
// feeds every event through an sse.Router; the call blocks until the
// stream ends or the context is cancelled.
package client
