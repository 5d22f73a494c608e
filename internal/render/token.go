// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"regexp"
	"strings"
)

// =============================================================================
// TOKEN TYPE
// =============================================================================

// Kind tags a RenderToken variant. Rendering dispatches over this tag
// through a fixed table; there is no token inheritance and no plugin
// registration.
type Kind int

const (
	KindText Kind = iota
	KindHardBreak
	KindEmphasis
	KindStrong
	KindCodeSpan
	KindMathInline
	KindMathBlock
	KindLink
	KindImage
	KindRawHTML
	KindParagraph
	KindHeading
	KindCodeBlock
	KindBlockquote
	KindList
	KindListItem
	KindTable
	KindRule
)

// Token is one node of the tokenized document. Tokens are never persisted;
// the document is re-tokenized from scratch on every render because
// partial Markdown can change meaning retroactively as the stream grows.
type Token struct {
	Kind     Kind
	Text     string  // text content, code, math expression, image alt, raw html
	Level    int     // heading level
	Lang     string  // fenced code language, already class-safe
	Href     string  // link or image target, unsanitized
	Ordered  bool    // list flavor
	Children []Token // inline children / list items

	// Table content; cells are inline-tokenized at render time.
	HeadCells []string
	RowCells  [][]string
}

// =============================================================================
// BLOCK TOKENIZER
// =============================================================================

var (
	headingLine   = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	ruleLine      = regexp.MustCompile(`^(?:-{3,}|\*{3,}|_{3,})\s*$`)
	listItemLine  = regexp.MustCompile(`^\s{0,3}([-*+]|\d{1,9}[.)])\s+(.*)$`)
	orderedMarker = regexp.MustCompile(`^\d`)
	tableSepLine  = regexp.MustCompile(`^\s*\|?\s*:?-+:?\s*(\|\s*:?-+:?\s*)*\|?\s*$`)
	langToken     = regexp.MustCompile(`[^a-zA-Z0-9_+-]`)
)

// tokenize splits src into block-level tokens.
func tokenize(src string) []Token {
	lines := strings.Split(src, "\n")
	var tokens []Token
	prevBlank := true

	i := 0
	for i < len(lines) {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			prevBlank = true
			i++

		case strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~"):
			var tok Token
			tok, i = scanFence(lines, i)
			tokens = append(tokens, tok)
			prevBlank = false

		// Indented code cannot interrupt a paragraph.
		case prevBlank && (strings.HasPrefix(line, "    ") || strings.HasPrefix(line, "\t")):
			var tok Token
			tok, i = scanIndentedCode(lines, i)
			tokens = append(tokens, tok)
			prevBlank = false

		case headingLine.MatchString(trimmed):
			m := headingLine.FindStringSubmatch(trimmed)
			tokens = append(tokens, Token{
				Kind:     KindHeading,
				Level:    len(m[1]),
				Children: tokenizeInline(strings.TrimSpace(m[2])),
			})
			prevBlank = false
			i++

		case ruleLine.MatchString(trimmed):
			tokens = append(tokens, Token{Kind: KindRule})
			prevBlank = false
			i++

		case strings.HasPrefix(trimmed, ">"):
			var tok Token
			tok, i = scanBlockquote(lines, i)
			tokens = append(tokens, tok)
			prevBlank = false

		case listItemLine.MatchString(line):
			var tok Token
			tok, i = scanList(lines, i)
			tokens = append(tokens, tok)
			prevBlank = false

		case strings.Contains(line, "|") && i+1 < len(lines) && tableSepLine.MatchString(lines[i+1]) && strings.Contains(lines[i+1], "-"):
			var tok Token
			tok, i = scanTable(lines, i)
			tokens = append(tokens, tok)
			prevBlank = false

		default:
			var tok Token
			tok, i = scanParagraph(lines, i)
			tokens = append(tokens, tok)
			prevBlank = false
		}
	}
	return tokens
}

// scanFence consumes a fenced code block starting at lines[i]. An
// unterminated fence, the normal state mid-stream, takes everything to
// the end of input.
func scanFence(lines []string, i int) (Token, int) {
	open := strings.TrimSpace(lines[i])
	fenceChar := open[0]
	runLen := 0
	for runLen < len(open) && open[runLen] == fenceChar {
		runLen++
	}
	lang := sanitizeLang(strings.TrimSpace(open[runLen:]))
	i++

	// The closer must be a run of the fence character at least as long as
	// the opener, so a longer fence can contain a shorter one as content.
	var code []string
	for i < len(lines) {
		closing := strings.TrimSpace(lines[i])
		if len(closing) >= runLen && strings.Trim(closing, string(fenceChar)) == "" {
			i++
			break
		}
		code = append(code, lines[i])
		i++
	}
	return Token{Kind: KindCodeBlock, Lang: lang, Text: strings.Join(code, "\n")}, i
}

// scanIndentedCode consumes consecutive four-space or tab indented lines.
func scanIndentedCode(lines []string, i int) (Token, int) {
	var code []string
	for i < len(lines) {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, "    "):
			code = append(code, line[4:])
		case strings.HasPrefix(line, "\t"):
			code = append(code, line[1:])
		default:
			return Token{Kind: KindCodeBlock, Text: strings.Join(code, "\n")}, i
		}
		i++
	}
	return Token{Kind: KindCodeBlock, Text: strings.Join(code, "\n")}, i
}

// scanBlockquote consumes consecutive "> " lines into one quote.
func scanBlockquote(lines []string, i int) (Token, int) {
	var content []string
	for i < len(lines) {
		trimmed := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(trimmed, ">") {
			break
		}
		inner := strings.TrimPrefix(trimmed, ">")
		inner = strings.TrimPrefix(inner, " ")
		content = append(content, inner)
		i++
	}
	return Token{Kind: KindBlockquote, Children: tokenizeInline(strings.Join(content, "\n"))}, i
}

// scanList consumes consecutive list item lines of one list. Non-marker
// continuation lines attach to the previous item as soft breaks.
func scanList(lines []string, i int) (Token, int) {
	first := listItemLine.FindStringSubmatch(lines[i])
	ordered := orderedMarker.MatchString(first[1])

	var items []string
	for i < len(lines) {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			break
		}
		if m := listItemLine.FindStringSubmatch(line); m != nil {
			if orderedMarker.MatchString(m[1]) != ordered {
				break
			}
			items = append(items, m[2])
		} else if len(items) > 0 && strings.HasPrefix(line, " ") {
			items[len(items)-1] += "\n" + strings.TrimSpace(line)
		} else {
			break
		}
		i++
	}

	tok := Token{Kind: KindList, Ordered: ordered}
	for _, item := range items {
		tok.Children = append(tok.Children, Token{Kind: KindListItem, Children: tokenizeInline(item)})
	}
	return tok, i
}

// scanTable consumes a pipe table: header row, separator, data rows.
func scanTable(lines []string, i int) (Token, int) {
	tok := Token{Kind: KindTable, HeadCells: splitTableRow(lines[i])}
	i += 2 // header + separator
	for i < len(lines) && strings.Contains(lines[i], "|") && strings.TrimSpace(lines[i]) != "" {
		tok.RowCells = append(tok.RowCells, splitTableRow(lines[i]))
		i++
	}
	return tok, i
}

// splitTableRow splits a table line into trimmed cells.
func splitTableRow(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	parts := strings.Split(line, "|")
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}
	return cells
}

// scanParagraph consumes lines until a blank line or the start of another
// block construct. Newlines inside the paragraph become hard breaks.
func scanParagraph(lines []string, i int) (Token, int) {
	var content []string
	for i < len(lines) {
		line := lines[i]
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			break
		}
		if len(content) > 0 && startsBlock(line, trimmed) {
			break
		}
		content = append(content, trimmed)
		i++
	}
	return Token{Kind: KindParagraph, Children: tokenizeInline(strings.Join(content, "\n"))}, i
}

// startsBlock reports whether a line interrupts a paragraph.
func startsBlock(line, trimmed string) bool {
	return strings.HasPrefix(trimmed, "```") ||
		strings.HasPrefix(trimmed, "~~~") ||
		strings.HasPrefix(trimmed, ">") ||
		headingLine.MatchString(trimmed) ||
		ruleLine.MatchString(trimmed) ||
		listItemLine.MatchString(line)
}

// sanitizeLang reduces a fence info string to a CSS-class-safe token.
func sanitizeLang(info string) string {
	if info == "" {
		return ""
	}
	fields := strings.Fields(info)
	if len(fields) == 0 {
		return ""
	}
	return langToken.ReplaceAllString(fields[0], "")
}

// =============================================================================
// INLINE TOKENIZER
// =============================================================================

// Raw inline HTML is escaped to literal text unless it exactly matches one
// of these two shapes. The badge shape is what RewriteBadges emits; the
// closed allow-list is what keeps script injection out.
var (
	allowedBreakTag = regexp.MustCompile(`^<br\s*/?>`)
	allowedBadgeTag = regexp.MustCompile(`^<a href="[^"<>]*"><img src="[^"<>]*" alt="[^"<>]*"></a>`)
)

// escapable is the set of punctuation a backslash can escape.
const escapable = "\\`*_{}[]()#+-.!$<>|~"

// tokenizeInline splits paragraph-level text into inline tokens.
func tokenizeInline(src string) []Token {
	var tokens []Token
	var text strings.Builder

	flush := func() {
		if text.Len() > 0 {
			tokens = append(tokens, Token{Kind: KindText, Text: text.String()})
			text.Reset()
		}
	}
	emit := func(tok Token) {
		flush()
		tokens = append(tokens, tok)
	}

	i := 0
	for i < len(src) {
		c := src[i]
		switch c {
		case '\n':
			emit(Token{Kind: KindHardBreak})
			i++

		case '`':
			tok, next, ok := scanCodeSpan(src, i)
			if ok {
				emit(tok)
				i = next
			} else {
				text.WriteByte(c)
				i++
			}

		case '$':
			// Both candidate starts are checked here; the block form wins
			// a tie so "$$" is never read as two adjacent inline spans.
			if strings.HasPrefix(src[i:], "$$") {
				if end := strings.Index(src[i+2:], "$$"); end > 0 {
					emit(Token{Kind: KindMathBlock, Text: src[i+2 : i+2+end]})
					i += end + 4
					continue
				}
				// Unterminated or empty block math stays literal text.
				text.WriteString("$$")
				i += 2
				continue
			}
			if end := strings.IndexByte(src[i+1:], '$'); end > 0 && !strings.Contains(src[i+1:i+1+end], "\n") {
				emit(Token{Kind: KindMathInline, Text: src[i+1 : i+1+end]})
				i += end + 2
				continue
			}
			text.WriteByte(c)
			i++

		case '\\':
			switch {
			case strings.HasPrefix(src[i:], `\[`):
				if end := strings.Index(src[i+2:], `\]`); end > 0 {
					emit(Token{Kind: KindMathBlock, Text: src[i+2 : i+2+end]})
					i += end + 4
					continue
				}
				text.WriteString(`\[`)
				i += 2
			case strings.HasPrefix(src[i:], `\(`):
				if end := strings.Index(src[i+2:], `\)`); end > 0 {
					emit(Token{Kind: KindMathInline, Text: src[i+2 : i+2+end]})
					i += end + 4
					continue
				}
				text.WriteString(`\(`)
				i += 2
			case i+1 < len(src) && strings.IndexByte(escapable, src[i+1]) >= 0:
				text.WriteByte(src[i+1])
				i += 2
			default:
				text.WriteByte(c)
				i++
			}

		case '!':
			tok, next, ok := scanImage(src, i)
			if ok {
				emit(tok)
				i = next
			} else {
				text.WriteByte(c)
				i++
			}

		case '[':
			tok, next, ok := scanLink(src, i)
			if ok {
				emit(tok)
				i = next
			} else {
				text.WriteByte(c)
				i++
			}

		case '<':
			if m := allowedBreakTag.FindString(src[i:]); m != "" {
				emit(Token{Kind: KindRawHTML, Text: m})
				i += len(m)
			} else if m := allowedBadgeTag.FindString(src[i:]); m != "" {
				emit(Token{Kind: KindRawHTML, Text: m})
				i += len(m)
			} else {
				// Everything else is neutralized to text and escaped.
				text.WriteByte(c)
				i++
			}

		case '*', '_':
			tok, next, ok := scanEmphasis(src, i)
			if ok {
				emit(tok)
				i = next
			} else {
				text.WriteByte(c)
				i++
			}

		default:
			text.WriteByte(c)
			i++
		}
	}

	flush()
	return tokens
}

// scanCodeSpan matches a backtick run and its closing run.
func scanCodeSpan(src string, i int) (Token, int, bool) {
	j := i
	for j < len(src) && src[j] == '`' {
		j++
	}
	open := src[i:j]
	end := strings.Index(src[j:], open)
	if end < 0 {
		return Token{}, 0, false
	}
	code := strings.TrimSpace(src[j : j+end])
	return Token{Kind: KindCodeSpan, Text: code}, j + end + len(open), true
}

// scanImage matches "![alt](src)".
func scanImage(src string, i int) (Token, int, bool) {
	if !strings.HasPrefix(src[i:], "![") {
		return Token{}, 0, false
	}
	altEnd := strings.IndexByte(src[i+2:], ']')
	if altEnd < 0 {
		return Token{}, 0, false
	}
	alt := src[i+2 : i+2+altEnd]
	rest := i + 2 + altEnd + 1
	target, next, ok := scanLinkTarget(src, rest)
	if !ok {
		return Token{}, 0, false
	}
	return Token{Kind: KindImage, Text: alt, Href: target}, next, true
}

// scanLink matches "[label](target)" with bracket nesting inside the
// label (an image child is the common case).
func scanLink(src string, i int) (Token, int, bool) {
	depth := 1
	j := i + 1
	for j < len(src) && depth > 0 {
		switch src[j] {
		case '[':
			depth++
		case ']':
			depth--
		case '\n':
			return Token{}, 0, false
		}
		j++
	}
	if depth != 0 {
		return Token{}, 0, false
	}
	label := src[i+1 : j-1]
	target, next, ok := scanLinkTarget(src, j)
	if !ok {
		return Token{}, 0, false
	}
	return Token{Kind: KindLink, Href: target, Children: tokenizeInline(label)}, next, true
}

// scanLinkTarget matches "(url)" at position i, tolerating balanced
// parentheses inside the URL.
func scanLinkTarget(src string, i int) (string, int, bool) {
	if i >= len(src) || src[i] != '(' {
		return "", 0, false
	}
	depth := 1
	j := i + 1
	for j < len(src) && depth > 0 {
		switch src[j] {
		case '(':
			depth++
		case ')':
			depth--
		case '\n', ' ':
			return "", 0, false
		}
		j++
	}
	if depth != 0 {
		return "", 0, false
	}
	return src[i+1 : j-1], j, true
}

// scanEmphasis matches "**strong**", "__strong__", "*em*", "_em_". The
// double delimiter is tried first at the same position.
func scanEmphasis(src string, i int) (Token, int, bool) {
	c := src[i]
	double := string(c) + string(c)

	if strings.HasPrefix(src[i:], double) {
		if end := strings.Index(src[i+2:], double); end > 0 {
			inner := src[i+2 : i+2+end]
			if strings.TrimSpace(inner) != "" && !strings.Contains(inner, "\n") {
				return Token{Kind: KindStrong, Children: tokenizeInline(inner)}, i + end + 4, true
			}
		}
		return Token{}, 0, false
	}

	if end := strings.IndexByte(src[i+1:], c); end > 0 {
		inner := src[i+1 : i+1+end]
		if strings.TrimSpace(inner) != "" && !strings.Contains(inner, "\n") {
			return Token{Kind: KindEmphasis, Children: tokenizeInline(inner)}, i + end + 2, true
		}
	}
	return Token{}, 0, false
}
