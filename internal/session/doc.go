// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session drives one chat conversation end to end: it sends the
// user's turn, owns the streaming lifecycle, applies deltas and sources
// to the conversation, and emits rendered HTML snapshots.
//
// Renders during streaming are rate limited; the render after the stream
// ends always happens, so the final state is never a stale snapshot.
package session
