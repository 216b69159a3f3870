// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the streaming chat-session core: the per-session
// transcript, the controller that applies streamed generation deltas while
// separating reasoning from answer content, and the retry/edit operations
// that truncate and replay history. The package has no UI or HTTP
// dependency; it talks to the outside world through the Generator interface
// and the Callbacks struct.
package chat

import "strings"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Attachment references one file attached to a user message. Image
// attachments ride to the server as image inputs; everything else is inlined
// as text at send time.
type Attachment struct {
	Path  string `json:"path"`
	Image bool   `json:"image,omitempty"`
}

// Message is one transcript entry. Assistant messages may carry reasoning in
// Thinking alongside the answer in Content; user messages may carry
// attachments. During streaming the last assistant message is the only
// mutable one.
type Message struct {
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	Thinking    string       `json:"thinking,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// NewUserMessage creates a user message with optional attachments.
func NewUserMessage(content string, attachments []Attachment) Message {
	return Message{Role: RoleUser, Content: content, Attachments: attachments}
}

// newAssistantPlaceholder creates the empty assistant message that streaming
// appends into.
func newAssistantPlaceholder() Message {
	return Message{Role: RoleAssistant}
}

// allImageAttachments reports whether the message has attachments and every
// one of them is an image. Image-only messages collapse into a single
// gallery bubble in the display expansion; anything mixed gets one bubble
// per file.
func (m *Message) allImageAttachments() bool {
	if len(m.Attachments) == 0 {
		return false
	}
	for _, a := range m.Attachments {
		if !a.Image {
			return false
		}
	}
	return true
}

// ImagePaths returns the paths of the image attachments, in order.
func (m *Message) ImagePaths() []string {
	var paths []string
	for _, a := range m.Attachments {
		if a.Image {
			paths = append(paths, a.Path)
		}
	}
	return paths
}

// FilePaths returns the paths of all attachments, in order.
func (m *Message) FilePaths() []string {
	var paths []string
	for _, a := range m.Attachments {
		paths = append(paths, a.Path)
	}
	return paths
}

// FirstLine returns the first non-empty line of the content, used for
// placeholder titles.
func (m *Message) FirstLine() string {
	for _, line := range strings.Split(m.Content, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
