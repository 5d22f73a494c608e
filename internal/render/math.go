// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"errors"
	"strings"
)

// =============================================================================
// MATH RENDERER
// =============================================================================

// MathRenderer converts a LaTeX-like expression into HTML markup. The
// supported subset covers what chat models emit in practice: grouping,
// superscripts and subscripts, fractions, roots, \text, and a table of
// common symbol commands.
//
// Render is total. When the expression cannot be converted (unbalanced
// braces, dangling script, unknown command) the literal source is escaped
// and wrapped in the same container so layout never breaks and the user
// can see what failed to render.
type MathRenderer struct{}

// Render converts expr. displayMode selects the block container.
func (MathRenderer) Render(expr string, displayMode bool) string {
	inner, err := convertMath(expr)
	if err != nil {
		inner = `<span class="math-error">` + escapeAll(expr) + `</span>`
	}
	if displayMode {
		return `<div class="math math-block">` + inner + `</div>`
	}
	return `<span class="math math-inline">` + inner + `</span>`
}

// =============================================================================
// CONVERSION
// =============================================================================

var (
	errUnbalanced     = errors.New("unbalanced braces")
	errDanglingScript = errors.New("dangling superscript or subscript")
	errUnknownCommand = errors.New("unknown command")
)

// mathSymbols maps command names to HTML entities or literal characters.
var mathSymbols = map[string]string{
	// Greek
	"alpha": "&alpha;", "beta": "&beta;", "gamma": "&gamma;",
	"delta": "&delta;", "epsilon": "&epsilon;", "zeta": "&zeta;",
	"eta": "&eta;", "theta": "&theta;", "iota": "&iota;",
	"kappa": "&kappa;", "lambda": "&lambda;", "mu": "&mu;",
	"nu": "&nu;", "xi": "&xi;", "pi": "&pi;", "rho": "&rho;",
	"sigma": "&sigma;", "tau": "&tau;", "upsilon": "&upsilon;",
	"phi": "&phi;", "chi": "&chi;", "psi": "&psi;", "omega": "&omega;",
	"Gamma": "&Gamma;", "Delta": "&Delta;", "Theta": "&Theta;",
	"Lambda": "&Lambda;", "Xi": "&Xi;", "Pi": "&Pi;",
	"Sigma": "&Sigma;", "Phi": "&Phi;", "Psi": "&Psi;",
	"Omega": "&Omega;",
	// Operators and relations
	"times": "&times;", "div": "&divide;", "cdot": "&middot;",
	"pm": "&plusmn;", "mp": "&#8723;", "leq": "&le;", "le": "&le;",
	"geq": "&ge;", "ge": "&ge;", "neq": "&ne;", "ne": "&ne;",
	"approx": "&asymp;", "equiv": "&equiv;", "sim": "&sim;",
	"propto": "&prop;", "infty": "&infin;", "partial": "&part;",
	"nabla": "&nabla;", "sum": "&sum;", "prod": "&prod;",
	"int": "&int;", "in": "&isin;", "notin": "&notin;",
	"subset": "&sub;", "supset": "&sup;", "cup": "&cup;",
	"cap": "&cap;", "forall": "&forall;", "exists": "&exist;",
	"rightarrow": "&rarr;", "to": "&rarr;", "leftarrow": "&larr;",
	"Rightarrow": "&rArr;", "Leftarrow": "&lArr;",
	"leftrightarrow": "&harr;", "ldots": "&hellip;",
	"cdots": "&ctdot;", "dots": "&hellip;",
	// Spacing and escapes
	",": " ", ";": " ", " ": " ", "quad": "&emsp;", "qquad": "&emsp;&emsp;",
	"{": "{", "}": "}", "%": "%", "$": "$", "&": "&amp;",
	"#": "#", "_": "_", "backslash": "\\",
}

// mathParser is a cursor over the expression runes.
type mathParser struct {
	src []rune
	pos int
}

// convertMath translates the expression into HTML or reports why it
// cannot.
func convertMath(expr string) (string, error) {
	p := &mathParser{src: []rune(expr)}
	out, err := p.sequence(0)
	if err != nil {
		return "", err
	}
	if p.pos < len(p.src) {
		// A stray closing brace stopped the walk early.
		return "", errUnbalanced
	}
	return out, nil
}

// sequence converts until an unmatched '}' or the end of input. depth
// guards against pathological nesting.
func (p *mathParser) sequence(depth int) (string, error) {
	if depth > 32 {
		return "", errUnbalanced
	}

	var b strings.Builder
	for p.pos < len(p.src) {
		r := p.src[p.pos]
		switch r {
		case '}':
			return b.String(), nil
		case '{':
			p.pos++
			inner, err := p.group(depth + 1)
			if err != nil {
				return "", err
			}
			b.WriteString(inner)
		case '\\':
			out, err := p.command(depth)
			if err != nil {
				return "", err
			}
			b.WriteString(out)
		case '^', '_':
			p.pos++
			arg, err := p.scriptArg(depth)
			if err != nil {
				return "", err
			}
			if r == '^' {
				b.WriteString("<sup>" + arg + "</sup>")
			} else {
				b.WriteString("<sub>" + arg + "</sub>")
			}
		case '<':
			b.WriteString("&lt;")
			p.pos++
		case '>':
			b.WriteString("&gt;")
			p.pos++
		case '&':
			b.WriteString("&amp;")
			p.pos++
		case '\n':
			b.WriteByte(' ')
			p.pos++
		default:
			b.WriteRune(r)
			p.pos++
		}
	}
	return b.String(), nil
}

// group consumes a brace-delimited group; the opening brace is already
// consumed.
func (p *mathParser) group(depth int) (string, error) {
	inner, err := p.sequence(depth)
	if err != nil {
		return "", err
	}
	if p.pos >= len(p.src) || p.src[p.pos] != '}' {
		return "", errUnbalanced
	}
	p.pos++
	return inner, nil
}

// scriptArg consumes the argument of ^ or _: either a braced group or a
// single token.
func (p *mathParser) scriptArg(depth int) (string, error) {
	if p.pos >= len(p.src) {
		return "", errDanglingScript
	}
	if p.src[p.pos] == '{' {
		p.pos++
		return p.group(depth + 1)
	}
	if p.src[p.pos] == '\\' {
		return p.command(depth)
	}
	r := p.src[p.pos]
	p.pos++
	return escapeAll(string(r)), nil
}

// command consumes a backslash command; the cursor sits on the backslash.
func (p *mathParser) command(depth int) (string, error) {
	p.pos++ // consume backslash
	if p.pos >= len(p.src) {
		return "", errUnknownCommand
	}

	// Single-character commands (escapes and spacing).
	if !isMathLetter(p.src[p.pos]) {
		name := string(p.src[p.pos])
		p.pos++
		if out, ok := mathSymbols[name]; ok {
			return out, nil
		}
		return "", errUnknownCommand
	}

	start := p.pos
	for p.pos < len(p.src) && isMathLetter(p.src[p.pos]) {
		p.pos++
	}
	name := string(p.src[start:p.pos])

	switch name {
	case "frac":
		num, err := p.requiredGroup(depth)
		if err != nil {
			return "", err
		}
		den, err := p.requiredGroup(depth)
		if err != nil {
			return "", err
		}
		return `<span class="math-frac"><span class="math-num">` + num +
			`</span><span class="math-den">` + den + `</span></span>`, nil
	case "sqrt":
		arg, err := p.requiredGroup(depth)
		if err != nil {
			return "", err
		}
		return `&radic;<span class="math-sqrt">` + arg + `</span>`, nil
	case "text", "mathrm", "operatorname":
		arg, err := p.requiredGroup(depth)
		if err != nil {
			return "", err
		}
		return `<span class="math-text">` + arg + `</span>`, nil
	case "left", "right":
		// Sizing hints: drop the command, keep the delimiter.
		return "", nil
	}

	if out, ok := mathSymbols[name]; ok {
		return out, nil
	}
	return "", errUnknownCommand
}

// requiredGroup consumes a mandatory braced argument, skipping leading
// spaces.
func (p *mathParser) requiredGroup(depth int) (string, error) {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
	if p.pos >= len(p.src) || p.src[p.pos] != '{' {
		return "", errUnbalanced
	}
	p.pos++
	return p.group(depth + 1)
}

func isMathLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
