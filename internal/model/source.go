// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// SOURCE TYPE
// =============================================================================

// Source is one web search result backing the current assistant turn.
// The server sends the full list as a single "sources" event before any
// content deltas; citation markers reference it by 1-based index.
type Source struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// HasURL reports whether the source carries a usable link target.
// A citation that resolves to a Source without a URL is left as-is.
func (s Source) HasURL() bool {
	return s.URL != ""
}
