// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"
)

// escapeText escapes HTML metacharacters in prose. The two bracket
// entities the citation rewriter emits pass through so its labels
// survive this later pass; every other ampersand escapes, keeping
// literal entity text in model output visible as typed.
func escapeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '&':
			if strings.HasPrefix(s[i:], "&#91;") || strings.HasPrefix(s[i:], "&#93;") {
				b.WriteByte('&')
			} else {
				b.WriteString("&amp;")
			}
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&#34;")
		case '\'':
			b.WriteString("&#39;")
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// escapeAll escapes every HTML metacharacter, entities included. Used for
// code contents and attribute values where the text is fully opaque.
func escapeAll(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&#34;",
		"'", "&#39;",
	)
	return r.Replace(s)
}
