// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides conversation persistence for chat-llama.
//
// Conversations are stored one JSON file per conversation under the
// store's base directory. Writes are atomic so a crash never leaves a
// half-written conversation behind.
package storage
