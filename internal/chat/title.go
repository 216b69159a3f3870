// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// titlePrompt is the one-off instruction appended (not persisted) to the
// transcript for title summarization.
const titlePrompt = "Summarize this conversation in under six words. " +
	"Reply with the title only, without quotes or punctuation around it."

// Reasoning models may wrap their response in a think block; strip it
// greedily across the whole response before using the remainder.
var thinkBlockRe = regexp.MustCompile(`(?s)<think>.*</think>`)

// ErrEmptyTitle means summarization returned nothing usable; the caller
// keeps the placeholder and may retry on the next qualifying trigger.
var ErrEmptyTitle = errors.New("summarization produced an empty title")

// SummarizeTitle asks the generator for a short session title. The
// transcript itself is never mutated: the instruction message exists only in
// the request. Best-effort by contract; callers swallow the error.
func SummarizeTitle(ctx context.Context, gen Generator, t *Transcript, opts GenerateOptions) (string, error) {
	messages := append(t.Messages(), Message{Role: RoleUser, Content: titlePrompt})

	response, err := gen.GenerateOnce(ctx, messages, opts)
	if err != nil {
		return "", err
	}

	title := strings.TrimSpace(thinkBlockRe.ReplaceAllString(response, ""))
	if title == "" {
		return "", ErrEmptyTitle
	}
	return title, nil
}
