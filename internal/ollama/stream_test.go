// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestStreamReaderDeliversChunksInOrder(t *testing.T) {
	body := `{"message":{"role":"assistant","content":"Hel"},"done":false}
{"message":{"role":"assistant","content":"lo"},"done":false}
{"message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","eval_count":5}
`
	var got []string
	var done bool
	err := NewStreamReader(strings.NewReader(body)).Process(context.Background(), func(chunk Chunk) error {
		got = append(got, chunk.Content)
		if chunk.Done {
			done = true
			if chunk.DoneReason != "stop" {
				t.Errorf("DoneReason = %q", chunk.DoneReason)
			}
			if chunk.EvalCount != 5 {
				t.Errorf("EvalCount = %d", chunk.EvalCount)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !done {
		t.Error("final chunk should carry Done")
	}
	if strings.Join(got[:2], "") != "Hello" {
		t.Errorf("content chunks = %q", got)
	}
}

func TestStreamReaderSeparateThinkingField(t *testing.T) {
	body := `{"message":{"role":"assistant","content":"","thinking":"hmm"},"done":false}
{"message":{"role":"assistant","content":"answer"},"done":true}
`
	var thinking, content string
	err := NewStreamReader(strings.NewReader(body)).Process(context.Background(), func(chunk Chunk) error {
		thinking += chunk.Thinking
		content += chunk.Content
		return nil
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if thinking != "hmm" {
		t.Errorf("thinking = %q", thinking)
	}
	if content != "answer" {
		t.Errorf("content = %q", content)
	}
}

func TestStreamReaderPreservesInlineThinkTags(t *testing.T) {
	// Tag-splitting is the streaming controller's job; the reader must pass
	// content through untouched.
	body := `{"message":{"role":"assistant","content":"<think>reason"},"done":false}
{"message":{"role":"assistant","content":"ing</think>answer"},"done":true}
`
	var content string
	err := NewStreamReader(strings.NewReader(body)).Process(context.Background(), func(chunk Chunk) error {
		content += chunk.Content
		return nil
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if content != "<think>reasoning</think>answer" {
		t.Errorf("content = %q", content)
	}
}

func TestStreamReaderStopStream(t *testing.T) {
	body := `{"message":{"content":"a"},"done":false}
{"message":{"content":"b"},"done":false}
{"message":{"content":"c"},"done":true}
`
	var seen int
	err := NewStreamReader(strings.NewReader(body)).Process(context.Background(), func(chunk Chunk) error {
		seen++
		return ErrStopStream
	})
	if err != nil {
		t.Errorf("ErrStopStream should not surface, got %v", err)
	}
	if seen != 1 {
		t.Errorf("callback ran %d times after stop", seen)
	}
}

func TestStreamReaderCallbackErrorPropagates(t *testing.T) {
	body := `{"message":{"content":"a"},"done":false}
`
	boom := errors.New("boom")
	err := NewStreamReader(strings.NewReader(body)).Process(context.Background(), func(chunk Chunk) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestStreamReaderSkipsMalformedLines(t *testing.T) {
	body := `{"message":{"content":"a"},"done":false}
not json at all
{"message":{"content":"b"},"done":true}
`
	var content string
	err := NewStreamReader(strings.NewReader(body)).Process(context.Background(), func(chunk Chunk) error {
		content += chunk.Content
		return nil
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if content != "ab" {
		t.Errorf("content = %q", content)
	}
}

func TestStreamReaderHandlesUnterminatedFinalLine(t *testing.T) {
	body := `{"message":{"content":"a"},"done":false}
{"message":{"content":"b"},"done":true}`
	var content string
	err := NewStreamReader(strings.NewReader(body)).Process(context.Background(), func(chunk Chunk) error {
		content += chunk.Content
		return nil
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if content != "ab" {
		t.Errorf("content = %q", content)
	}
}

func TestStreamReaderContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewStreamReader(strings.NewReader(`{"done":false}`+"\n")).Process(ctx, func(chunk Chunk) error {
		t.Error("callback should not run after cancellation")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
