// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// =============================================================================
// ATTACHMENTS
// =============================================================================

// MaxAttachmentBytes caps how much file content a single turn may carry.
const MaxAttachmentBytes = 512 * 1024

// Attachment is a file prepared for inclusion in a chat message.
type Attachment struct {
	Name    string
	Content string
}

// ReadAttachment loads a file for attachment to a message. Text files are
// read whole; PDF and other binary formats are rejected with an error the
// UI can show verbatim.
func ReadAttachment(path string) (*Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeUnknown, Message: "cannot read attachment", Cause: err}
	}
	if info.IsDir() {
		return nil, &ClientError{Type: ErrTypeUnknown, Message: path + " is a directory, not a file"}
	}
	if info.Size() > MaxAttachmentBytes {
		return nil, &ClientError{Type: ErrTypeUnknown, Message: path + " is too large to attach (limit 512 KiB)"}
	}

	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return nil, &ClientError{
			Type:    ErrTypeUnknown,
			Message: "PDF attachments are not supported; convert " + filepath.Base(path) + " to plain text first",
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeUnknown, Message: "cannot read attachment", Cause: err}
	}

	if bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data) {
		return nil, &ClientError{
			Type:    ErrTypeUnknown,
			Message: filepath.Base(path) + " does not look like a text file",
		}
	}

	return &Attachment{Name: filepath.Base(path), Content: string(data)}, nil
}

// ComposeMessage folds an attachment into the outgoing message text. The
// display form stays the short marker; the server sees the full content.
func ComposeMessage(text string, att *Attachment) (wire, display string) {
	if att == nil {
		return text, text
	}
	wire = text + "\n\n[Attached file: " + att.Name + "]\n```\n" + att.Content + "\n```"
	display = text + "\n\n[Attached file: " + att.Name + "]"
	return wire, display
}
