// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package generate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lsuhpchelp/ollamaondemand/internal/chat"
	"github.com/lsuhpchelp/ollamaondemand/internal/ollama"
)

func newAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(ollama.NewClient(&ollama.ClientConfig{BaseURL: server.URL}))
}

func TestGenerateStreamsIncrements(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		enc := json.NewEncoder(w)
		enc.Encode(ollama.ChatResponse{Message: ollama.Message{Thinking: "hmm"}})
		enc.Encode(ollama.ChatResponse{Message: ollama.Message{Content: "answer"}, Done: true})
	})

	var incs []chat.Increment
	err := a.Generate(context.Background(), []chat.Message{chat.NewUserMessage("q", nil)},
		chat.GenerateOptions{Model: "m"}, func(inc chat.Increment) error {
			incs = append(incs, inc)
			return nil
		})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(incs) != 2 || incs[0].Thinking != "hmm" || incs[1].Answer != "answer" {
		t.Errorf("increments = %+v", incs)
	}
}

func TestGenerateStopPropagates(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		enc := json.NewEncoder(w)
		enc.Encode(ollama.ChatResponse{Message: ollama.Message{Content: "a"}})
		enc.Encode(ollama.ChatResponse{Message: ollama.Message{Content: "b"}, Done: true})
	})

	err := a.Generate(context.Background(), nil, chat.GenerateOptions{}, func(chat.Increment) error {
		return chat.ErrStopGeneration
	})
	if err != chat.ErrStopGeneration {
		t.Errorf("err = %v, want ErrStopGeneration", err)
	}
}

func TestWireMessagesInlineTextAttachment(t *testing.T) {
	dir := t.TempDir()
	notes := filepath.Join(dir, "notes.txt")
	os.WriteFile(notes, []byte("plain notes"), 0644)

	var got ollama.ChatRequest
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(ollama.ChatResponse{
			Message: ollama.Message{Content: "ok"}, Done: true,
		})
	})

	_, err := a.GenerateOnce(context.Background(), []chat.Message{
		chat.NewUserMessage("read this", []chat.Attachment{{Path: notes}}),
	}, chat.GenerateOptions{Model: "m"})
	if err != nil {
		t.Fatalf("GenerateOnce failed: %v", err)
	}

	if len(got.Messages) != 1 {
		t.Fatalf("wire messages = %+v", got.Messages)
	}
	if !strings.Contains(got.Messages[0].Content, "plain notes") {
		t.Errorf("attachment not inlined: %q", got.Messages[0].Content)
	}
	if len(got.Messages[0].Images) != 0 {
		t.Errorf("text file must not become an image")
	}
}

func TestWireMessagesEncodesImages(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "pic.png")
	os.WriteFile(img, []byte{0x89, 0x50, 0x00, 0x01}, 0644)

	var got ollama.ChatRequest
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(ollama.ChatResponse{
			Message: ollama.Message{Content: "ok"}, Done: true,
		})
	})

	_, err := a.GenerateOnce(context.Background(), []chat.Message{
		chat.NewUserMessage("what is this", []chat.Attachment{{Path: img, Image: true}}),
	}, chat.GenerateOptions{Model: "m"})
	if err != nil {
		t.Fatalf("GenerateOnce failed: %v", err)
	}

	if len(got.Messages[0].Images) != 1 {
		t.Fatalf("images = %v", got.Messages[0].Images)
	}
}

func TestWireMessagesReportsUnreadableAttachment(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollama.ChatResponse{
			Message: ollama.Message{Content: "ok"}, Done: true,
		})
	})
	var failed []string
	a.OnAttachmentError = func(path string) { failed = append(failed, path) }

	_, err := a.GenerateOnce(context.Background(), []chat.Message{
		chat.NewUserMessage("hi", []chat.Attachment{{Path: "/gone/file.txt"}}),
	}, chat.GenerateOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 {
		t.Errorf("failed = %v", failed)
	}
}
