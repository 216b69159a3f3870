// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(&ClientConfig{BaseURL: server.URL})
}

func TestCheckRunning(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Ollama is running"))
	})
	if err := c.CheckRunning(context.Background()); err != nil {
		t.Errorf("CheckRunning failed: %v", err)
	}
}

func TestCheckRunningUnreachable(t *testing.T) {
	c := NewClient(&ClientConfig{BaseURL: "http://127.0.0.1:1"})
	err := c.CheckRunning(context.Background())
	if !IsNotRunning(err) {
		t.Errorf("expected not-running error, got %v", err)
	}
}

func TestListModels(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(ListResponse{Models: []ModelInfo{
			{Name: "llama3.2:3b", Size: 2 * 1024 * 1024 * 1024},
			{Name: "qwen3:8b", Size: 5 * 1024 * 1024 * 1024},
		}})
	})

	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("got %d models", len(models))
	}
	if models[0].FormatSize() != "2.0G" {
		t.Errorf("FormatSize = %q", models[0].FormatSize())
	}
}

func TestShowModelCapabilities(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req ShowRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "qwen3:8b" {
			t.Errorf("requested model %q", req.Model)
		}
		json.NewEncoder(w).Encode(ShowResponse{Capabilities: []string{"completion", "thinking"}})
	})

	show, err := c.ShowModel(context.Background(), "qwen3:8b")
	if err != nil {
		t.Fatalf("ShowModel failed: %v", err)
	}
	found := false
	for _, cap := range show.Capabilities {
		if cap == "thinking" {
			found = true
		}
	}
	if !found {
		t.Error("thinking capability missing")
	}
}

func TestChatStreamAccumulates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream {
			t.Error("ChatStream must force Stream=true")
		}
		lines := []ChatResponse{
			{Message: Message{Role: "assistant", Content: "Hel"}},
			{Message: Message{Role: "assistant", Content: "lo"}, Done: true, DoneReason: "stop"},
		}
		enc := json.NewEncoder(w)
		for _, l := range lines {
			enc.Encode(l)
		}
	})

	var content string
	err := c.ChatStream(context.Background(), ChatRequest{
		Model:    "llama3.2:3b",
		Messages: []Message{{Role: "user", Content: "hi"}},
	}, func(chunk Chunk) error {
		content += chunk.Content
		return nil
	})
	if err != nil {
		t.Fatalf("ChatStream failed: %v", err)
	}
	if content != "Hello" {
		t.Errorf("content = %q", content)
	}
}

func TestChatStreamModelNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	})

	err := c.ChatStream(context.Background(), ChatRequest{Model: "nope"}, func(chunk Chunk) error {
		return nil
	})
	if !IsModelNotFound(err) {
		t.Errorf("expected model-not-found, got %v", err)
	}
}

func TestChatOnce(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Stream {
			t.Error("ChatOnce must force Stream=false")
		}
		json.NewEncoder(w).Encode(ChatResponse{
			Message: Message{Role: "assistant", Content: "Short Chat Title"},
			Done:    true,
		})
	})

	resp, err := c.ChatOnce(context.Background(), ChatRequest{Model: "llama3.2:3b"})
	if err != nil {
		t.Fatalf("ChatOnce failed: %v", err)
	}
	if resp.Message.Content != "Short Chat Title" {
		t.Errorf("content = %q", resp.Message.Content)
	}
}

func TestPullModelProgress(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		enc := json.NewEncoder(w)
		enc.Encode(ProgressResponse{Status: "pulling manifest"})
		enc.Encode(ProgressResponse{Status: "downloading", Total: 100, Completed: 50})
		enc.Encode(ProgressResponse{Status: "success"})
	})

	var statuses []string
	err := c.PullModel(context.Background(), "llama3.2:3b", func(p ProgressResponse) {
		statuses = append(statuses, p.Status)
	})
	if err != nil {
		t.Fatalf("PullModel failed: %v", err)
	}
	if len(statuses) != 3 || statuses[2] != "success" {
		t.Errorf("statuses = %v", statuses)
	}
}

func TestDeleteModelNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	err := c.DeleteModel(context.Background(), "missing")
	if !errors.Is(err, ErrModelNotFound) && !IsModelNotFound(err) {
		t.Errorf("expected model-not-found, got %v", err)
	}
}

func TestDecodeErrorSurfacesServerMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid option: blorp"}`, http.StatusBadRequest)
	})
	_, err := c.ChatOnce(context.Background(), ChatRequest{Model: "llama3.2:3b"})
	if err == nil || err.Error() != "invalid option: blorp" {
		t.Errorf("err = %v", err)
	}
}

func TestIsModelPath(t *testing.T) {
	dir := t.TempDir()
	if IsModelPath(dir) {
		t.Error("empty dir should not validate")
	}

	os.MkdirAll(filepath.Join(dir, "blobs"), 0755)
	os.MkdirAll(filepath.Join(dir, "manifests"), 0755)
	if IsModelPath(dir) {
		t.Error("empty manifests dir should not validate")
	}

	os.MkdirAll(filepath.Join(dir, "manifests", "registry.ollama.ai"), 0755)
	if !IsModelPath(dir) {
		t.Error("populated model dir should validate")
	}

	if IsModelPath("") {
		t.Error("empty path should not validate")
	}
}
