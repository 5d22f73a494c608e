// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the interactive chat REPL: liner-based input
// with history, slash commands, streamed token echo, and a glamour
// re-render of each completed assistant turn.
package cli
