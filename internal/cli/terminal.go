// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
)

// =============================================================================
// TERMINAL DETECTION
// =============================================================================

// ResolveTheme maps the configured theme to a concrete one. "auto" asks
// the terminal for its background color.
func ResolveTheme(configured string) string {
	switch configured {
	case "dark", "light":
		return configured
	}
	if termenv.HasDarkBackground() {
		return "dark"
	}
	return "light"
}

// NewMarkdownRenderer creates a glamour renderer for completed assistant
// turns. Returns nil if the terminal cannot be probed; callers fall back
// to plain text.
func NewMarkdownRenderer(theme string) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(theme),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return nil
	}
	return r
}
