// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "context"

// =============================================================================
// TRANSCRIPT EDITING OPERATIONS
// =============================================================================
//
// Each operation mutates the transcript to a safe point, appends a fresh
// assistant placeholder and consumes the generation stream to completion on
// the calling goroutine. Callers wanting a background stream wrap the call
// in their own goroutine; Stop and IsStreaming remain safe from elsewhere.

// SubmitNewMessage appends a user message (with any attachments already
// normalized by the attachment formatter) plus an assistant placeholder and
// streams the response. Fails with ErrAlreadyStreaming while a generation is
// in flight.
func (c *Controller) SubmitNewMessage(ctx context.Context, text string, attachments []Attachment, opts GenerateOptions) error {
	if !c.streaming.CompareAndSwap(false, true) {
		return ErrAlreadyStreaming
	}

	c.transcript.Append(NewUserMessage(text, attachments))
	c.transcript.Append(newAssistantPlaceholder())
	c.callbacks.inputEnabled(false)
	c.publish()

	return c.stream(ctx, opts)
}

// Retry regenerates the response to the user message at the given display
// slot: everything after the anchor is dropped and a fresh stream starts.
// The anchor must resolve to a user message; anything else fails with
// ErrInvalidAnchor.
func (c *Controller) Retry(ctx context.Context, anchorDisplayIndex int, opts GenerateOptions) error {
	return c.replayFrom(ctx, anchorDisplayIndex, nil, opts)
}

// Edit rewrites the user message at the given display slot and regenerates
// from it, dropping everything after the anchor. Same anchor rules as Retry.
func (c *Controller) Edit(ctx context.Context, anchorDisplayIndex int, newText string, opts GenerateOptions) error {
	return c.replayFrom(ctx, anchorDisplayIndex, &newText, opts)
}

// replayFrom implements Retry and Edit: resolve the anchor, optionally
// rewrite it, truncate, re-append a placeholder and stream.
func (c *Controller) replayFrom(ctx context.Context, anchorDisplayIndex int, newText *string, opts GenerateOptions) error {
	raw, err := c.transcript.RawIndex(anchorDisplayIndex)
	if err != nil {
		return err
	}
	if c.transcript.At(raw).Role != RoleUser {
		return ErrInvalidAnchor
	}

	if !c.streaming.CompareAndSwap(false, true) {
		return ErrAlreadyStreaming
	}

	if newText != nil {
		c.transcript.At(raw).Content = *newText
	}
	if err := c.transcript.TruncateAfter(raw); err != nil {
		c.streaming.Store(false)
		return err
	}
	c.transcript.Append(newAssistantPlaceholder())
	c.callbacks.inputEnabled(false)
	c.publish()

	return c.stream(ctx, opts)
}
