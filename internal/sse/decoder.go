// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"context"
	"io"
	"strings"
)

// DefaultEventName is used when an event block has no "event:" line.
const DefaultEventName = "message"

// doneSentinel is the terminal no-op payload. It must never reach the
// JSON parsing in the router.
const doneSentinel = "[DONE]"

// =============================================================================
// EVENT TYPE
// =============================================================================

// Event is one decoded unit of the transport. Data is an opaque string
// until the Router parses it according to Name.
type Event struct {
	Name string
	Data string
}

// =============================================================================
// DECODER
// =============================================================================

// Decoder turns raw text fragments into fully-formed Events. It holds only
// the unterminated tail between fragments and never blocks; the caller
// owns the read loop and its suspension points.
type Decoder struct {
	tail string
}

// NewDecoder creates a new stream decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends a raw fragment and returns every event completed by it.
// An event is delimited by a blank line; a trailing partial block is
// retained and prefixed to the next fragment.
func (d *Decoder) Feed(fragment string) []Event {
	// Each byte is CRLF-normalized exactly once: a pair split across
	// fragments rejoins here, and the already-normalized tail is never
	// rescanned, so decoding cannot depend on chunk boundaries.
	if strings.HasSuffix(d.tail, "\r") && strings.HasPrefix(fragment, "\n") {
		d.tail = d.tail[:len(d.tail)-1]
	}
	d.tail += strings.ReplaceAll(fragment, "\r\n", "\n")

	var events []Event
	for {
		idx := strings.Index(d.tail, "\n\n")
		if idx < 0 {
			return events
		}
		block := d.tail[:idx]
		d.tail = d.tail[idx+2:]

		if ev, ok := parseBlock(block); ok {
			events = append(events, ev)
		}
	}
}

// Flush decodes whatever tail remains after the stream ends. Well-behaved
// servers terminate every event with a blank line, so this usually
// returns nothing.
func (d *Decoder) Flush() []Event {
	block := d.tail
	d.tail = ""
	if ev, ok := parseBlock(block); ok {
		return []Event{ev}
	}
	return nil
}

// parseBlock parses one event block. Returns false for blocks that are
// skipped: whitespace-only blocks, blocks without data, and the [DONE]
// sentinel.
func parseBlock(block string) (Event, bool) {
	if strings.TrimSpace(block) == "" {
		return Event{}, false
	}

	name := DefaultEventName
	var data []string

	for _, line := range strings.Split(block, "\n") {
		switch {
		case strings.HasPrefix(line, "event:"):
			if v := strings.TrimSpace(line[len("event:"):]); v != "" {
				name = v
			}
		case strings.HasPrefix(line, "data:"):
			v := line[len("data:"):]
			// The transport convention is a single optional space after
			// the colon; anything beyond it is payload.
			v = strings.TrimPrefix(v, " ")
			data = append(data, v)
		}
	}

	if len(data) == 0 {
		return Event{}, false
	}

	payload := strings.Join(data, "\n")
	if strings.TrimSpace(payload) == doneSentinel {
		return Event{}, false
	}

	return Event{Name: name, Data: payload}, true
}

// =============================================================================
// STREAM DRIVER
// =============================================================================

// readBufferSize is the chunk size for draining a response body.
const readBufferSize = 4096

// DecodeStream reads r until EOF, feeding each chunk through the decoder
// and calling fn for every decoded event in order. The context is checked
// between reads; cancellation mid-stream returns ctx.Err().
func DecodeStream(ctx context.Context, r io.Reader, fn func(Event) error) error {
	dec := NewDecoder()
	buf := make([]byte, readBufferSize)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := r.Read(buf)
		if n > 0 {
			for _, ev := range dec.Feed(string(buf[:n])) {
				if ferr := fn(ev); ferr != nil {
					return ferr
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				for _, ev := range dec.Flush() {
					if ferr := fn(ev); ferr != nil {
						return ferr
					}
				}
				return nil
			}
			return err
		}
	}
}
