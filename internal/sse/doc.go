// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sse decodes the chat server's event-stream response body and
// routes decoded events to the owning conversation turn.
//
// The transport is a sequence of blank-line delimited blocks of "event:"
// and "data:" lines. The Decoder is a push-based state machine: raw text
// fragments go in exactly as they arrive off the wire, fully delimited
// events come out, and any unterminated tail is buffered until the next
// fragment. Decoding is chunking-invariant: the same bytes produce the
// same events no matter how the network splits them.
//
// The Router classifies each event ("sources" list replacement vs. chat
// completion delta) and parses its payload. A malformed payload never
// aborts the stream; the event is dropped and decoding continues.
package sse
