// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

// Callbacks is the boundary to the UI. All fields are optional; nil
// callbacks are skipped. They are invoked synchronously from the goroutine
// driving the stream, so implementations must not block on the stream
// itself.
type Callbacks struct {
	// OnTranscriptChanged receives a display-expanded snapshot after every
	// applied increment and at every operation's completion.
	OnTranscriptChanged func(snapshot []Bubble)

	// OnInputEnabledChanged toggles the input controls: false while a
	// generation is in flight, true when idle.
	OnInputEnabledChanged func(enabled bool)

	// OnWarning receives non-fatal user-visible notices.
	OnWarning func(message string)
}

func (cb *Callbacks) transcriptChanged(snapshot []Bubble) {
	if cb.OnTranscriptChanged != nil {
		cb.OnTranscriptChanged(snapshot)
	}
}

func (cb *Callbacks) inputEnabled(enabled bool) {
	if cb.OnInputEnabledChanged != nil {
		cb.OnInputEnabledChanged(enabled)
	}
}

func (cb *Callbacks) warn(message string) {
	if cb.OnWarning != nil {
		cb.OnWarning(message)
	}
}
