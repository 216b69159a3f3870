// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
)

// =============================================================================
// GENERATION CAPABILITY
// =============================================================================

// Increment is one unit of streamed generation output. Either delta may be
// empty. Backends with a separate reasoning channel populate Thinking;
// legacy backends emit everything through Answer with inline <think> tags,
// which the controller untangles.
type Increment struct {
	Answer   string
	Thinking string
}

// GenerateOptions carries the per-request generation parameters, read from
// user settings by the caller.
type GenerateOptions struct {
	Model   string
	Options map[string]any
	Think   *bool
}

// Generator is the generation capability the controller consumes. Generate
// streams increments through fn in order until the stream ends, fn returns
// an error, or the context is cancelled; it is finite and not restartable.
// GenerateOnce returns a complete response in one shot; only the title
// summarizer uses it.
type Generator interface {
	Generate(ctx context.Context, messages []Message, opts GenerateOptions, fn func(Increment) error) error
	GenerateOnce(ctx context.Context, messages []Message, opts GenerateOptions) (string, error)
}

// ErrStopGeneration is returned by the controller's increment callback when
// the user has stopped the stream; adapters should stop the underlying
// stream and return it (or nil) from Generate.
var ErrStopGeneration = errors.New("generation stopped")

// ErrAlreadyStreaming rejects an operation invoked while this session's
// generation is still in flight.
var ErrAlreadyStreaming = errors.New("a response is already streaming")

// errorMarker replaces the assistant content when a stream fails. Whatever
// partial output accumulated before the failure is discarded with it.
const errorMarker = "Response generation failed! Please try again!"

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller drives streamed generation into one session's transcript. One
// controller per session; operations run on a single goroutine per session,
// with Stop and IsStreaming safe to call from any goroutine.
type Controller struct {
	transcript *Transcript
	gen        Generator
	callbacks  *Callbacks

	streaming atomic.Bool
}

// NewController creates a controller over a transcript. callbacks may be
// nil.
func NewController(t *Transcript, gen Generator, callbacks *Callbacks) *Controller {
	if callbacks == nil {
		callbacks = &Callbacks{}
	}
	return &Controller{
		transcript: t,
		gen:        gen,
		callbacks:  callbacks,
	}
}

// Transcript returns the transcript this controller drives.
func (c *Controller) Transcript() *Transcript {
	return c.transcript
}

// IsStreaming reports whether a generation is in flight.
func (c *Controller) IsStreaming() bool {
	return c.streaming.Load()
}

// Stop requests interruption of the in-flight stream. The stream loop polls
// the flag between increments and keeps whatever was accumulated. Calling
// Stop while idle is a no-op: no transcript mutation, no snapshot.
func (c *Controller) Stop() {
	c.streaming.CompareAndSwap(true, false)
}

// =============================================================================
// STREAM LOOP
// =============================================================================

// stream consumes the generation stream into the open assistant message.
// Callers have already flipped the streaming flag, appended the placeholder
// and disabled input; stream always leaves the flag false and input enabled.
func (c *Controller) stream(ctx context.Context, opts GenerateOptions) error {
	defer func() {
		c.streaming.Store(false)
		c.publish()
		c.callbacks.inputEnabled(true)
	}()

	msg, err := c.transcript.LastAssistant()
	if err != nil {
		return err
	}

	// The open placeholder is not part of the prompt.
	messages := c.transcript.Messages()
	prior := messages[:len(messages)-1]

	var d demuxer
	genErr := c.gen.Generate(ctx, prior, opts, func(inc Increment) error {
		if !c.streaming.Load() {
			return ErrStopGeneration
		}
		d.apply(msg, inc)
		c.publish()
		return nil
	})

	interrupted := errors.Is(genErr, ErrStopGeneration) || !c.streaming.Load()
	if genErr != nil && !interrupted {
		// Failed: the error marker replaces everything, reasoning included.
		msg.Content = errorMarker
		msg.Thinking = ""
		c.callbacks.warn(errorMarker)
	}
	return nil
}

// publish pushes a display snapshot to the UI boundary.
func (c *Controller) publish() {
	c.callbacks.transcriptChanged(c.transcript.DisplaySnapshot())
}

// =============================================================================
// THINKING DEMULTIPLEXER
// =============================================================================

const (
	thinkOpenTag  = "<think>"
	thinkCloseTag = "</think>"
)

// demuxer routes increments into the thinking and content fields of the
// open assistant message. Three shapes are handled:
//
//   - a separate thinking channel: thinking deltas go straight to Thinking;
//   - inline tagging: accumulated content opening with <think> flips the
//     demuxer into thinking mode, where answer deltas accumulate into
//     Thinking until the closing tag appears, is stripped exactly once, and
//     anything after it resumes as content;
//   - a mid-stream switch from the explicit channel to inline tagging, which
//     terminates through the same closing-tag detection.
//
// The closing tag can arrive split across increments or glued to the first
// answer text in the same increment; detection is therefore a search over
// the accumulated reasoning, not a suffix check on deltas.
type demuxer struct {
	inThinking bool
	closed     bool
}

func (d *demuxer) apply(msg *Message, inc Increment) {
	if inc.Thinking != "" {
		msg.Thinking += inc.Thinking
	}
	if inc.Answer == "" {
		return
	}

	if d.inThinking {
		msg.Thinking += inc.Answer
		d.checkClose(msg)
		return
	}

	msg.Content += inc.Answer

	if !d.closed && strings.HasPrefix(strings.TrimLeft(msg.Content, " \t\r\n"), thinkOpenTag) {
		// Everything after the opening tag is reasoning.
		trimmed := strings.TrimLeft(msg.Content, " \t\r\n")
		msg.Thinking += trimmed[len(thinkOpenTag):]
		msg.Content = ""
		d.inThinking = true
		d.checkClose(msg)
	}
}

// checkClose splits the accumulated reasoning on the first closing tag:
// before it stays as reasoning, after it becomes content. The tag is
// stripped exactly once; later occurrences pass through verbatim.
func (d *demuxer) checkClose(msg *Message) {
	idx := strings.Index(msg.Thinking, thinkCloseTag)
	if idx < 0 {
		return
	}

	after := strings.TrimLeft(msg.Thinking[idx+len(thinkCloseTag):], " \t\r\n")
	msg.Thinking = strings.TrimRight(msg.Thinking[:idx], " \t\r\n")
	msg.Content += after
	d.inThinking = false
	d.closed = true
}
