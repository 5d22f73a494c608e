// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render converts assistant markdown into sanitized HTML.
//
// The pipeline is a pure function of (text, sources): every call is a
// fresh, independent conversion of the full accumulated text. Partial
// markdown is the normal case during streaming - an unterminated fence or
// citation bracket can change meaning retroactively once more text
// arrives, so no incremental state is ever kept between calls.
//
// Three stages run in order, each consuming the previous stage's string
// output:
//
//  1. citation rewriting ("link [n]" markers against the source list)
//  2. badge-link composition ("[![alt](img)](href)" into anchor+image)
//  3. tokenize and render with the extended grammar (math, fenced code,
//     sanitized links/images, a closed raw-HTML allow-list)
//
// Render never fails: a panic anywhere in the pipeline degrades to
// escaped, linebreak-preserving plain text, and the assembled HTML passes
// through a bluemonday policy as the final backstop.
package render
