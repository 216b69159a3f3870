// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with the Ollama
// API, including streaming chat, model management and server supervision.
package ollama

import (
	"strconv"
	"time"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// Message represents a chat message on the wire.
type Message struct {
	Role     string   `json:"role"`               // "user", "assistant", "system"
	Content  string   `json:"content"`            // The message content
	Thinking string   `json:"thinking,omitempty"` // Reasoning content (thinking-capable models)
	Images   []string `json:"images,omitempty"`   // Base64-encoded images or image paths
}

// ChatRequest is the request body for the /api/chat endpoint.
// Options carries generation parameters verbatim from user settings; a
// missing key means the model default, so the map is deliberately untyped.
type ChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Think    *bool          `json:"think,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

// PullRequest is the request body for /api/pull (model install).
type PullRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

// DeleteRequest is the request body for /api/delete (model remove).
type DeleteRequest struct {
	Model string `json:"model"`
}

// ShowRequest is the request body for /api/show.
type ShowRequest struct {
	Model string `json:"model"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ChatResponse is one line of a streaming /api/chat response, or the whole
// body of a non-streaming one.
type ChatResponse struct {
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	Message   Message   `json:"message"`
	Done      bool      `json:"done"`

	DoneReason    string `json:"done_reason,omitempty"`
	TotalDuration int64  `json:"total_duration,omitempty"` // nanoseconds
	EvalCount     int    `json:"eval_count,omitempty"`     // tokens generated
	EvalDuration  int64  `json:"eval_duration,omitempty"`  // nanoseconds
}

// ModelInfo describes one locally installed model.
type ModelInfo struct {
	Name       string    `json:"name"`
	Model      string    `json:"model"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
	Digest     string    `json:"digest"`
}

// ListResponse is the response from /api/tags.
type ListResponse struct {
	Models []ModelInfo `json:"models"`
}

// ShowResponse is the response from /api/show.
type ShowResponse struct {
	Modelfile    string   `json:"modelfile"`
	Parameters   string   `json:"parameters"`
	Template     string   `json:"template"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// ProgressResponse is one line of a streaming /api/pull response.
type ProgressResponse struct {
	Status    string `json:"status"`
	Digest    string `json:"digest,omitempty"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
}

// apiError is the error body Ollama returns on non-2xx responses.
type apiError struct {
	Error string `json:"error"`
}

// =============================================================================
// HELPERS
// =============================================================================

// FormatSize formats the model size in human-readable binary units, used in
// the model picker ("llama3.2:3b (2.0G)").
func (m *ModelInfo) FormatSize() string {
	const (
		kib = int64(1024)
		mib = kib * 1024
		gib = mib * 1024
	)

	switch {
	case m.Size >= gib:
		return formatSize1(float64(m.Size)/float64(gib)) + "G"
	case m.Size >= mib:
		return formatSize1(float64(m.Size)/float64(mib)) + "M"
	case m.Size >= kib:
		return formatSize1(float64(m.Size)/float64(kib)) + "K"
	default:
		return formatSize1(float64(m.Size)) + "B"
	}
}

func formatSize1(f float64) string {
	return strconv.FormatFloat(f, 'f', 1, 64)
}
