// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "errors"

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidState marks a caller error: the transcript was not in the
	// shape the operation requires (e.g. streaming into a transcript whose
	// last message is not an assistant message).
	ErrInvalidState = errors.New("transcript in invalid state")

	// ErrInvalidAnchor marks a retry/edit anchor that does not resolve to a
	// user message in the current transcript.
	ErrInvalidAnchor = errors.New("invalid message anchor")
)

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript is the ordered message history of one session. Append-only
// except for explicit truncation by retry/edit. Not safe for concurrent
// mutation; each session drives its transcript from a single goroutine.
type Transcript struct {
	messages []Message
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// RestoreTranscript creates a transcript from persisted messages.
func RestoreTranscript(messages []Message) *Transcript {
	return &Transcript{messages: messages}
}

// Len returns the number of raw messages.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// Append adds a message to the end.
func (t *Transcript) Append(m Message) {
	t.messages = append(t.messages, m)
}

// At returns the message at raw index i.
func (t *Transcript) At(i int) *Message {
	return &t.messages[i]
}

// Messages returns a copy of the raw message slice, for persistence and for
// building generation requests.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// TruncateAfter keeps messages [0, i] inclusive and drops the rest. Fails
// with ErrInvalidAnchor when i is out of range.
func (t *Transcript) TruncateAfter(i int) error {
	if i < 0 || i >= len(t.messages) {
		return ErrInvalidAnchor
	}
	t.messages = t.messages[:i+1]
	return nil
}

// LastAssistant returns the open assistant message being streamed into.
// Fails with ErrInvalidState when the last message is not an assistant
// message: streaming must always append a placeholder first.
func (t *Transcript) LastAssistant() (*Message, error) {
	if len(t.messages) == 0 {
		return nil, ErrInvalidState
	}
	last := &t.messages[len(t.messages)-1]
	if last.Role != RoleAssistant {
		return nil, ErrInvalidState
	}
	return last, nil
}

// =============================================================================
// DISPLAY-SLOT MAPPING
// =============================================================================
//
// The UI renders attachments as extra bubbles before the owning message's
// own bubble, so the bubble index a user clicks on is not the raw array
// index. The rule, applied consistently everywhere:
//
//   - a user message whose attachments are all images gets ONE extra bubble
//     (a single image or a gallery, regardless of count);
//   - a user message with any non-image attachment gets one extra bubble
//     PER attachment;
//   - every message then gets its own bubble.
//
// An anchor landing on an attachment bubble resolves to the owning message.

// extraDisplaySlots returns how many synthetic bubbles precede the message's
// own bubble.
func extraDisplaySlots(m *Message) int {
	if len(m.Attachments) == 0 {
		return 0
	}
	if m.allImageAttachments() {
		return 1
	}
	return len(m.Attachments)
}

// RawIndex maps a display-slot index to the raw transcript index. Any of a
// message's slots (attachment bubbles included) resolve to that message.
// Fails with ErrInvalidAnchor when the display index is past the end.
func (t *Transcript) RawIndex(displayIndex int) (int, error) {
	if displayIndex < 0 {
		return 0, ErrInvalidAnchor
	}
	slot := 0
	for i := range t.messages {
		slots := extraDisplaySlots(&t.messages[i]) + 1
		if displayIndex < slot+slots {
			return i, nil
		}
		slot += slots
	}
	return 0, ErrInvalidAnchor
}

// DisplayIndex maps a raw transcript index to the display-slot index of that
// message's own bubble (the one after its attachment bubbles).
func (t *Transcript) DisplayIndex(rawIndex int) int {
	slot := 0
	for i := 0; i < rawIndex && i < len(t.messages); i++ {
		slot += extraDisplaySlots(&t.messages[i]) + 1
	}
	if rawIndex >= 0 && rawIndex < len(t.messages) {
		slot += extraDisplaySlots(&t.messages[rawIndex])
	}
	return slot
}

// =============================================================================
// DISPLAY SNAPSHOT
// =============================================================================

// Display decorations around reasoning content, matched by the UI when it
// dims or collapses the reasoning segment.
const (
	ThinkHead = "(Thinking...)\n\n"
	ThinkTail = "\n\n(/Thinking...)\n\n"
)

// Bubble is one UI-visible chat bubble.
type Bubble struct {
	Role    Role
	Content string

	// Images is set on a synthetic gallery bubble for an image-only
	// attachment set.
	Images []string

	// File is set on a synthetic per-file attachment bubble.
	File string
}

// DisplaySnapshot expands the transcript into display bubbles: attachment
// bubbles first per message, reasoning decorated with head/tail markers
// around the answer. The returned slice is a fresh copy safe to hand across
// goroutines.
func (t *Transcript) DisplaySnapshot() []Bubble {
	var bubbles []Bubble
	for i := range t.messages {
		m := &t.messages[i]

		switch {
		case m.Role == RoleUser && m.allImageAttachments():
			bubbles = append(bubbles, Bubble{Role: RoleUser, Images: m.ImagePaths()})
		case m.Role == RoleUser && len(m.Attachments) > 0:
			for _, path := range m.FilePaths() {
				bubbles = append(bubbles, Bubble{Role: RoleUser, File: path})
			}
		}

		content := m.Content
		if m.Role == RoleAssistant && m.Thinking != "" {
			content = ThinkHead + m.Thinking + ThinkTail + content
		}
		bubbles = append(bubbles, Bubble{Role: m.Role, Content: content})
	}
	return bubbles
}
