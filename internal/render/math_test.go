// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"
	"testing"
)

// =============================================================================
// MATH RENDERER TESTS
// =============================================================================

func TestMathRenderer_Containers(t *testing.T) {
	var m MathRenderer

	block := m.Render("x", true)
	if !strings.HasPrefix(block, `<div class="math math-block">`) {
		t.Errorf("block container wrong: %q", block)
	}

	inline := m.Render("x", false)
	if !strings.HasPrefix(inline, `<span class="math math-inline">`) {
		t.Errorf("inline container wrong: %q", inline)
	}
}

func TestMathRenderer_Conversion(t *testing.T) {
	tests := []struct {
		name     string
		expr     string
		contains []string
	}{
		{"superscript", "x^2", []string{"x<sup>2</sup>"}},
		{"subscript", "a_i", []string{"a<sub>i</sub>"}},
		{"braced script", "x^{n+1}", []string{"x<sup>n+1</sup>"}},
		{"fraction", `\frac{a}{b}`, []string{"math-frac", "math-num", "math-den"}},
		{"sqrt", `\sqrt{2}`, []string{"&radic;", "math-sqrt"}},
		{"text command", `\text{velocity}`, []string{`<span class="math-text">velocity</span>`}},
		{"greek", `\alpha + \beta`, []string{"&alpha;", "&beta;"}},
		{"operators", `a \times b \leq c`, []string{"&times;", "&le;"}},
		{"sizing dropped", `\left( x \right)`, []string{"( x )"}},
		{"angle brackets escaped", "a < b > c", []string{"&lt;", "&gt;"}},
		{"nested", `\frac{x^2}{\sqrt{y}}`, []string{"<sup>2</sup>", "math-sqrt"}},
	}

	var m MathRenderer
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := m.Render(tc.expr, false)
			for _, want := range tc.contains {
				if !strings.Contains(got, want) {
					t.Errorf("Render(%q) = %q, want to contain %q", tc.expr, got, want)
				}
			}
		})
	}
}

func TestMathRenderer_Fallback(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"unknown command", `\unknowncmd{x}`},
		{"unbalanced open", `\frac{a}{b`},
		{"unbalanced close", `a}b`},
		{"dangling superscript", "x^"},
		{"frac missing args", `\frac`},
		{"lone backslash", `\`},
	}

	var m MathRenderer
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := m.Render(tc.expr, false)
			if !strings.Contains(got, `class="math-error"`) {
				t.Errorf("Render(%q) = %q, want math-error fallback", tc.expr, got)
			}
			// The literal source must be visible, escaped.
			if !strings.Contains(got, escapeAll(tc.expr)) {
				t.Errorf("Render(%q) = %q, want escaped literal source", tc.expr, got)
			}
		})
	}
}

func TestMathRenderer_FallbackNeverInjects(t *testing.T) {
	var m MathRenderer
	got := m.Render(`<script>alert(1)</script>`, true)
	if strings.Contains(got, "<script>") {
		t.Fatalf("fallback leaked raw markup: %q", got)
	}
}
