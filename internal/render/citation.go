// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"regexp"
	"strconv"

	"github.com/omnomburp/chat-llama/internal/model"
)

// =============================================================================
// CITATION REWRITING
// =============================================================================

// The model cites search results as inline markers: bracketed
// "[link [n]]" or bare "link [n]", where n is the 1-based index into the
// current Source list. Both become Markdown links whose label is the
// literal text "link [n]" with the brackets entity-escaped, so the later
// tokenize stage cannot mistake the label for nested link syntax.
var (
	bracketedCitation = regexp.MustCompile(`\[link \[(\d+)\]\]`)
	bareCitation      = regexp.MustCompile(`\blink \[(\d+)\]`)
)

// RewriteCitations replaces citation markers against sources, sanitizing
// each target with sanitize. Markers that point outside the list, or at a
// source without a URL, pass through unchanged - a miss is not an error.
func RewriteCitations(text string, sources []model.Source, sanitize func(string) string) string {
	replace := func(match string, idx string) (string, bool) {
		n, err := strconv.Atoi(idx)
		if err != nil || n < 1 || n > len(sources) {
			return match, false
		}
		src := sources[n-1]
		if !src.HasURL() {
			return match, false
		}
		label := "link &#91;" + idx + "&#93;"
		return "[" + label + "](" + sanitize(src.URL) + ")", true
	}

	// Bracketed first: its match region contains the bare form, and the
	// escaped label keeps the bare pattern from re-matching afterwards.
	text = bracketedCitation.ReplaceAllStringFunc(text, func(m string) string {
		idx := bracketedCitation.FindStringSubmatch(m)[1]
		out, _ := replace(m, idx)
		return out
	})
	text = bareCitation.ReplaceAllStringFunc(text, func(m string) string {
		idx := bareCitation.FindStringSubmatch(m)[1]
		out, _ := replace(m, idx)
		return out
	})
	return text
}

// =============================================================================
// BADGE-LINK COMPOSITION
// =============================================================================

// badgeLink matches the Markdown image-inside-link idiom
// "[![alt](imgUrl)](href)" used for status badges.
var badgeLink = regexp.MustCompile(`\[!\[([^\]]*)\]\(([^()\s]*)\)\]\(([^()\s]*)\)`)

// RewriteBadges rewrites the badge idiom directly into an anchor wrapping
// an image tag, bypassing the generic tokenizer. The emitted HTML is
// exactly the shape the tokenizer's raw-HTML allow-list passes through.
func RewriteBadges(text string, sanitize func(string) string) string {
	return badgeLink.ReplaceAllStringFunc(text, func(m string) string {
		parts := badgeLink.FindStringSubmatch(m)
		alt, img, href := parts[1], parts[2], parts[3]
		return `<a href="` + escapeAll(sanitize(href)) + `"><img src="` +
			escapeAll(sanitize(img)) + `" alt="` + escapeAll(alt) + `"></a>`
	})
}
