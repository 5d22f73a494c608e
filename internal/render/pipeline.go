// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/omnomburp/chat-llama/internal/model"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures a Pipeline.
type Options struct {
	// BaseOrigin resolves relative link and image targets. Empty means
	// relative targets collapse to the "#" placeholder.
	BaseOrigin string

	// CodeStyle names the chroma style for highlighted code blocks.
	// Empty selects the package default.
	CodeStyle string
}

// DefaultBaseOrigin is the resolution base when none is configured.
const DefaultBaseOrigin = "http://localhost:3000"

// DefaultCodeStyle is the chroma style used when none is configured.
const DefaultCodeStyle = "github"

// =============================================================================
// PIPELINE
// =============================================================================

// renderFn renders one token kind to HTML.
type renderFn func(*Pipeline, Token) string

// Pipeline converts accumulated Markdown text into sanitized HTML. A
// Pipeline is immutable after construction and safe for concurrent use;
// every call re-renders the full text with no incremental state.
//
// Render runs three stages over its input: citation and badge rewriting
// on the raw text, tokenizing, then per-token HTML generation. The result
// passes through a bluemonday policy as the final backstop, so even a
// rendering bug cannot leak active content.
type Pipeline struct {
	san      *URLSanitizer
	math     MathRenderer
	policy   *bluemonday.Policy
	style    string
	dispatch map[Kind]renderFn
}

// New creates a Pipeline from opts.
func New(opts Options) *Pipeline {
	origin := opts.BaseOrigin
	if origin == "" {
		origin = DefaultBaseOrigin
	}
	style := opts.CodeStyle
	if style == "" {
		style = DefaultCodeStyle
	}

	p := &Pipeline{
		san:    NewURLSanitizer(origin),
		policy: buildPolicy(),
		style:  style,
	}
	p.dispatch = map[Kind]renderFn{
		KindText:       (*Pipeline).renderText,
		KindHardBreak:  (*Pipeline).renderHardBreak,
		KindEmphasis:   (*Pipeline).renderEmphasis,
		KindStrong:     (*Pipeline).renderStrong,
		KindCodeSpan:   (*Pipeline).renderCodeSpan,
		KindMathInline: (*Pipeline).renderMathInline,
		KindMathBlock:  (*Pipeline).renderMathBlock,
		KindLink:       (*Pipeline).renderLink,
		KindImage:      (*Pipeline).renderImage,
		KindRawHTML:    (*Pipeline).renderRawHTML,
		KindParagraph:  (*Pipeline).renderParagraph,
		KindHeading:    (*Pipeline).renderHeading,
		KindCodeBlock:  (*Pipeline).renderCodeBlock,
		KindBlockquote: (*Pipeline).renderBlockquote,
		KindList:       (*Pipeline).renderList,
		KindListItem:   (*Pipeline).renderListItem,
		KindTable:      (*Pipeline).renderTable,
		KindRule:       (*Pipeline).renderRule,
	}
	return p
}

// buildPolicy constructs the sanitization backstop. The allow-list mirrors
// exactly what the renderers emit; anything else is stripped.
func buildPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "br", "em", "strong", "code", "pre",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"blockquote", "ul", "ol", "li", "hr",
		"table", "thead", "tbody", "tr", "th", "td",
		"div", "span", "sup", "sub", "a", "img",
	)
	p.AllowAttrs("class").Globally()
	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowAttrs("data-copy").OnElements("div")
	p.AllowURLSchemes("http", "https", "mailto")
	p.AllowRelativeURLs(true)
	// A fragment-only href ("#", the sanitizer's placeholder) does not
	// survive URL validation; keep the bare anchor so Render can restore
	// the placeholder instead of losing the link element.
	p.AllowNoAttrs().OnElements("a")
	return p
}

// Render converts text into sanitized HTML, resolving citation markers
// against sources. It is a pure function of its arguments and never
// fails; an internal panic degrades to escaped plain text.
func (p *Pipeline) Render(text string, sources []model.Source) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = p.plainFallback(text)
		}
	}()

	rewritten := RewriteCitations(text, sources, p.san.Sanitize)
	rewritten = RewriteBadges(rewritten, p.san.Sanitize)

	var b strings.Builder
	for _, tok := range tokenize(rewritten) {
		b.WriteString(p.renderToken(tok))
	}
	out = p.policy.Sanitize(b.String())
	// The renderers never emit a bare anchor, so one can only mean the
	// policy stripped a placeholder (or disallowed) target. Reinstate the
	// dead "#" target rather than leaving a non-navigable tag.
	return strings.ReplaceAll(out, "<a>", `<a href="#">`)
}

// plainFallback is the degraded output when rendering panics: the raw
// text escaped, line breaks preserved.
func (p *Pipeline) plainFallback(text string) string {
	escaped := strings.ReplaceAll(escapeAll(text), "\n", "<br>")
	return "<p>" + escaped + "</p>"
}

// renderToken dispatches over the token kind.
func (p *Pipeline) renderToken(tok Token) string {
	fn, ok := p.dispatch[tok.Kind]
	if !ok {
		return escapeText(tok.Text)
	}
	return fn(p, tok)
}

// renderChildren renders inline children in order.
func (p *Pipeline) renderChildren(toks []Token) string {
	var b strings.Builder
	for _, tok := range toks {
		b.WriteString(p.renderToken(tok))
	}
	return b.String()
}

// =============================================================================
// INLINE RENDERERS
// =============================================================================

func (p *Pipeline) renderText(tok Token) string {
	return escapeText(tok.Text)
}

func (p *Pipeline) renderHardBreak(Token) string {
	return "<br>"
}

func (p *Pipeline) renderEmphasis(tok Token) string {
	return "<em>" + p.renderChildren(tok.Children) + "</em>"
}

func (p *Pipeline) renderStrong(tok Token) string {
	return "<strong>" + p.renderChildren(tok.Children) + "</strong>"
}

func (p *Pipeline) renderCodeSpan(tok Token) string {
	return "<code>" + escapeAll(tok.Text) + "</code>"
}

func (p *Pipeline) renderMathInline(tok Token) string {
	return p.math.Render(tok.Text, false)
}

func (p *Pipeline) renderMathBlock(tok Token) string {
	return p.math.Render(tok.Text, true)
}

func (p *Pipeline) renderLink(tok Token) string {
	href := escapeAll(p.san.Sanitize(tok.Href))
	return `<a href="` + href + `">` + p.renderChildren(tok.Children) + "</a>"
}

func (p *Pipeline) renderImage(tok Token) string {
	src := escapeAll(p.san.Sanitize(tok.Href))
	return `<img src="` + src + `" alt="` + escapeAll(tok.Text) + `">`
}

// renderRawHTML passes through verbatim. The tokenizer only admits the
// closed allow-list, and attribute values inside it were escaped and
// sanitized when the badge was composed.
func (p *Pipeline) renderRawHTML(tok Token) string {
	return tok.Text
}

// =============================================================================
// BLOCK RENDERERS
// =============================================================================

func (p *Pipeline) renderParagraph(tok Token) string {
	return "<p>" + p.renderChildren(tok.Children) + "</p>"
}

func (p *Pipeline) renderHeading(tok Token) string {
	level := strconv.Itoa(tok.Level)
	return "<h" + level + ">" + p.renderChildren(tok.Children) + "</h" + level + ">"
}

// renderCodeBlock wraps highlighted code in a container carrying the
// language label and the copy-button marker the UI looks for.
func (p *Pipeline) renderCodeBlock(tok Token) string {
	code := strings.TrimRight(tok.Text, " \t\n")

	var b strings.Builder
	b.WriteString(`<div class="code-block" data-copy="true">`)
	if tok.Lang != "" {
		b.WriteString(`<span class="code-lang">` + escapeAll(tok.Lang) + `</span>`)
	}
	b.WriteString(`<pre><code`)
	if tok.Lang != "" {
		b.WriteString(` class="language-` + tok.Lang + `"`)
	}
	b.WriteString(">")

	if highlighted, ok := highlightCode(code, tok.Lang, p.style); ok {
		b.WriteString(highlighted)
	} else {
		b.WriteString(escapeAll(code))
	}

	b.WriteString("</code></pre></div>")
	return b.String()
}

func (p *Pipeline) renderBlockquote(tok Token) string {
	return "<blockquote><p>" + p.renderChildren(tok.Children) + "</p></blockquote>"
}

func (p *Pipeline) renderList(tok Token) string {
	open, close := "<ul>", "</ul>"
	if tok.Ordered {
		open, close = "<ol>", "</ol>"
	}
	return open + p.renderChildren(tok.Children) + close
}

func (p *Pipeline) renderListItem(tok Token) string {
	return "<li>" + p.renderChildren(tok.Children) + "</li>"
}

func (p *Pipeline) renderTable(tok Token) string {
	var b strings.Builder
	b.WriteString("<table><thead><tr>")
	for _, cell := range tok.HeadCells {
		b.WriteString("<th>" + p.renderChildren(tokenizeInline(cell)) + "</th>")
	}
	b.WriteString("</tr></thead><tbody>")
	for _, row := range tok.RowCells {
		b.WriteString("<tr>")
		for i, cell := range row {
			// Ragged rows clamp to the header width.
			if i >= len(tok.HeadCells) {
				break
			}
			b.WriteString("<td>" + p.renderChildren(tokenizeInline(cell)) + "</td>")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")
	return b.String()
}

func (p *Pipeline) renderRule(Token) string {
	return "<hr>"
}
