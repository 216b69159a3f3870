// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package generate adapts the Ollama HTTP client to the chat core's
// generation interface: transcript messages become wire messages (with
// attachments expanded), stream chunks become increments.
package generate

import (
	"context"
	"encoding/base64"
	"errors"
	"os"

	"github.com/lsuhpchelp/ollamaondemand/internal/chat"
	"github.com/lsuhpchelp/ollamaondemand/internal/multimodal"
	"github.com/lsuhpchelp/ollamaondemand/internal/ollama"
)

// Adapter implements chat.Generator on top of an ollama.Client.
type Adapter struct {
	client *ollama.Client

	// OnAttachmentError, when set, receives the path of any attachment that
	// could not be read at send time. The message still goes out without it.
	OnAttachmentError func(path string)
}

// New creates an adapter around the client.
func New(client *ollama.Client) *Adapter {
	return &Adapter{client: client}
}

// Generate streams a chat completion, translating chunks into increments.
// A chat.ErrStopGeneration returned by fn stops the underlying stream
// cleanly and is passed back so the controller can tell interruption from
// failure.
func (a *Adapter) Generate(ctx context.Context, messages []chat.Message, opts chat.GenerateOptions, fn func(chat.Increment) error) error {
	req := ollama.ChatRequest{
		Model:    opts.Model,
		Messages: a.wireMessages(messages),
		Options:  opts.Options,
		Think:    opts.Think,
	}

	stopped := false
	err := a.client.ChatStream(ctx, req, func(chunk ollama.Chunk) error {
		if chunk.Content == "" && chunk.Thinking == "" {
			return nil
		}
		if err := fn(chat.Increment{Answer: chunk.Content, Thinking: chunk.Thinking}); err != nil {
			if errors.Is(err, chat.ErrStopGeneration) {
				stopped = true
				return ollama.ErrStopStream
			}
			return err
		}
		return nil
	})
	if stopped {
		return chat.ErrStopGeneration
	}
	return err
}

// GenerateOnce returns a complete non-streaming response.
func (a *Adapter) GenerateOnce(ctx context.Context, messages []chat.Message, opts chat.GenerateOptions) (string, error) {
	resp, err := a.client.ChatOnce(ctx, ollama.ChatRequest{
		Model:    opts.Model,
		Messages: a.wireMessages(messages),
		Options:  opts.Options,
	})
	if err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

// wireMessages converts transcript messages to wire form. User attachments
// are expanded at send time: text files inlined into the content, images
// base64-encoded into the images list. Reasoning never rides back to the
// server.
func (a *Adapter) wireMessages(messages []chat.Message) []ollama.Message {
	out := make([]ollama.Message, 0, len(messages))
	for i := range messages {
		m := &messages[i]

		if m.Role == chat.RoleUser && len(m.Attachments) > 0 {
			formatted := multimodal.FormatForSend(m.Content, m.FilePaths())
			for _, path := range formatted.Failed {
				if a.OnAttachmentError != nil {
					a.OnAttachmentError(path)
				}
			}
			out = append(out, ollama.Message{
				Role:    string(m.Role),
				Content: formatted.Content,
				Images:  encodeImages(formatted.Images),
			})
			continue
		}

		out = append(out, ollama.Message{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return out
}

// encodeImages base64-encodes image files for the API. Unreadable files are
// dropped; the attachment-error hook has already fired for them if the read
// failed at formatting time too.
func encodeImages(paths []string) []string {
	var images []string
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		images = append(images, base64.StdEncoding.EncodeToString(data))
	}
	return images
}
