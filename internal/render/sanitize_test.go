// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import "testing"

// =============================================================================
// URL SANITIZER TESTS
// =============================================================================

func TestURLSanitizer_Sanitize(t *testing.T) {
	s := NewURLSanitizer("http://localhost:3000")

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"absolute http", "http://example.com/page", "http://example.com/page"},
		{"absolute https", "https://example.com/", "https://example.com/"},
		{"relative path", "/docs/readme", "http://localhost:3000/docs/readme"},
		{"relative no slash", "docs/readme", "http://localhost:3000/docs/readme"},
		{"empty", "", "#"},
		{"placeholder passes through", "#", "#"},
		{"whitespace only", "   ", "#"},
		{"javascript scheme", "javascript:alert(1)", "#"},
		{"javascript mixed case", "JaVaScRiPt:alert(1)", "#"},
		{"data scheme", "data:text/html,<script>alert(1)</script>", "#"},
		{"vbscript scheme", "vbscript:msgbox", "#"},
		{"unparseable", "http://exa mple.com/%zz", "#"},
		{"mailto", "mailto:user@example.com", "mailto:user@example.com"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := s.Sanitize(tc.raw)
			if got != tc.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestURLSanitizer_Idempotent(t *testing.T) {
	s := NewURLSanitizer("http://localhost:3000")

	inputs := []string{
		"http://example.com/page?q=1",
		"/relative/path",
		"javascript:alert(1)",
		"",
		"not a url at all %%%",
	}

	for _, raw := range inputs {
		once := s.Sanitize(raw)
		twice := s.Sanitize(once)
		if once != twice {
			t.Errorf("Sanitize not idempotent for %q: first %q, second %q", raw, once, twice)
		}
	}
}

func TestURLSanitizer_NoBase(t *testing.T) {
	s := NewURLSanitizer("not a valid origin")

	if got := s.Sanitize("https://example.com/x"); got != "https://example.com/x" {
		t.Errorf("absolute URL without base = %q", got)
	}
	if got := s.Sanitize("/relative"); got != "#" {
		t.Errorf("relative URL without base = %q, want #", got)
	}
}
