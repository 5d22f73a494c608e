// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"net/url"
	"strings"
)

// UnsafeURLPlaceholder replaces empty, unparseable, or dangerous URLs.
const UnsafeURLPlaceholder = "#"

// =============================================================================
// URL SANITIZER
// =============================================================================

// URLSanitizer validates and normalizes link and image targets. Relative
// URLs resolve against a fixed base origin; javascript: and data: schemes
// are rejected. Sanitize never fails - anything it cannot vouch for
// becomes the "#" placeholder.
type URLSanitizer struct {
	base *url.URL
}

// NewURLSanitizer creates a sanitizer resolving against baseOrigin.
// An unparseable origin leaves the sanitizer without a base; absolute
// URLs still sanitize, relative ones collapse to the placeholder.
func NewURLSanitizer(baseOrigin string) *URLSanitizer {
	base, err := url.Parse(baseOrigin)
	if err != nil || base.Scheme == "" {
		base = nil
	}
	return &URLSanitizer{base: base}
}

// Sanitize returns a safe form of raw, or "#".
func (s *URLSanitizer) Sanitize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == UnsafeURLPlaceholder {
		return UnsafeURLPlaceholder
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return UnsafeURLPlaceholder
	}

	resolved := parsed
	if s.base != nil {
		resolved = s.base.ResolveReference(parsed)
	} else if parsed.Scheme == "" {
		// No base to resolve a relative reference against.
		return UnsafeURLPlaceholder
	}

	switch strings.ToLower(resolved.Scheme) {
	case "javascript", "data", "vbscript":
		return UnsafeURLPlaceholder
	}

	return resolved.String()
}
