// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading for chat-llama.
//
// Configuration is TOML with sensible defaults and environment variable
// overrides. Locations, in order of precedence:
//   - CHATLLAMA_* environment variables
//   - ~/.chat-llama/config.toml
//   - Built-in defaults
package config
