// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes conversations out as standalone HTML transcripts.
//
// Assistant messages go through the same render pipeline the live view
// uses, so citations, math, and highlighted code look identical in the
// exported page.
package export
