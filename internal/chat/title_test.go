// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestSummarizeTitle(t *testing.T) {
	gen := &fakeGenerator{onceResponse: "  Trip Planning Help  "}
	tr := NewTranscript()
	tr.Append(NewUserMessage("plan my trip", nil))
	tr.Append(Message{Role: RoleAssistant, Content: "sure"})

	title, err := SummarizeTitle(context.Background(), gen, tr, GenerateOptions{})
	if err != nil {
		t.Fatalf("SummarizeTitle failed: %v", err)
	}
	if title != "Trip Planning Help" {
		t.Errorf("title = %q", title)
	}

	// The instruction rides in the request only.
	if len(gen.lastMessages) != 3 {
		t.Fatalf("request carried %d messages", len(gen.lastMessages))
	}
	if gen.lastMessages[2].Role != RoleUser || gen.lastMessages[2].Content == "" {
		t.Errorf("instruction message = %+v", gen.lastMessages[2])
	}
}

func TestSummarizeTitleStripsThinkBlock(t *testing.T) {
	gen := &fakeGenerator{
		onceResponse: "<think>short is better\nmaybe three words</think>\nQuantum Basics",
	}
	title, err := SummarizeTitle(context.Background(), gen, NewTranscript(), GenerateOptions{})
	if err != nil {
		t.Fatalf("SummarizeTitle failed: %v", err)
	}
	if title != "Quantum Basics" {
		t.Errorf("title = %q", title)
	}
}

func TestSummarizeTitleEmptyResponse(t *testing.T) {
	gen := &fakeGenerator{onceResponse: "<think>all reasoning no answer</think>  "}
	if _, err := SummarizeTitle(context.Background(), gen, NewTranscript(), GenerateOptions{}); !errors.Is(err, ErrEmptyTitle) {
		t.Errorf("err = %v, want ErrEmptyTitle", err)
	}
}

func TestSummarizeTitleNonDestructive(t *testing.T) {
	gen := &fakeGenerator{onceResponse: "Title"}
	tr := NewTranscript()
	tr.Append(NewUserMessage("hello", nil))
	tr.Append(Message{Role: RoleAssistant, Content: "hi", Thinking: "greeting"})
	before := tr.Messages()

	if _, err := SummarizeTitle(context.Background(), gen, tr, GenerateOptions{}); err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(before, tr.Messages()) {
		t.Error("summarization mutated the transcript")
	}
}

func TestSummarizeTitleGeneratorError(t *testing.T) {
	gen := &fakeGenerator{onceErr: errors.New("server down")}
	if _, err := SummarizeTitle(context.Background(), gen, NewTranscript(), GenerateOptions{}); err == nil {
		t.Error("generator error must surface to the caller")
	}
}
