// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// highlightCode tokenizes code with chroma and formats it as class-based
// span markup, without a surrounding <pre> since the caller provides one.
// The second return is false when no lexer applies or formatting fails;
// the caller falls back to plain escaped code.
func highlightCode(code, lang, styleName string) (string, bool) {
	if strings.TrimSpace(code) == "" {
		return "", false
	}

	lexer := lexers.Get(lang)
	if lexer == nil && lang == "" {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		return "", false
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "", false
	}

	style := styles.Get(styleName)
	if style == nil {
		style = styles.Fallback
	}

	formatter := chromahtml.New(
		chromahtml.WithClasses(true),
		chromahtml.PreventSurroundingPre(true),
	)

	var b strings.Builder
	if err := formatter.Format(&b, style, iterator); err != nil {
		return "", false
	}
	return b.String(), true
}
