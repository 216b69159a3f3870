// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package multimodal prepares message attachments for the chat API: text
// files are inlined into the message content, anything binary rides along as
// an image attachment.
package multimodal

import (
	"bytes"
	"os"
	"path/filepath"
	"unicode/utf8"
)

// sniffLen bounds how much of a file is inspected for the binary check.
const sniffLen = 8192

// Formatted is the API-ready form of a user message with attachments.
type Formatted struct {
	// Content is the message text with any text attachments inlined.
	Content string

	// Images holds the file paths of binary attachments. Nil when every
	// attachment was text.
	Images []string

	// Failed lists attachments that could not be read. The message still
	// goes out without them; the UI warns about each.
	Failed []string
}

// FormatForSend inlines text attachments into the message content and
// collects binary ones as images. Unreadable files are skipped and reported
// in Failed.
func FormatForSend(content string, files []string) Formatted {
	out := Formatted{Content: content}

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			out.Failed = append(out.Failed, file)
			continue
		}

		if isBinary(data) {
			out.Images = append(out.Images, file)
			continue
		}

		out.Content += "\n\n---\n\nFile name: [" + filepath.Base(file) + "]\n\nContent:\n\n" + string(data) + "\n"
	}

	return out
}

// isBinary reports whether data looks like binary rather than text: a NUL
// byte or invalid UTF-8 in the first sniffLen bytes.
func isBinary(data []byte) bool {
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return true
	}
	// The sniff window can end mid-rune; ignore a truncated tail.
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			if len(data) < utf8.UTFMax {
				return false
			}
			return true
		}
		data = data[size:]
	}
	return false
}
