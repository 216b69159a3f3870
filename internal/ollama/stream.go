// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
)

// =============================================================================
// STREAM CHUNK
// =============================================================================

// Chunk is one unit of streamed chat output. Content and Thinking carry the
// answer and reasoning deltas for this line; either may be empty. Modern
// servers populate Thinking for thinking-capable models; older ones emit
// <think> tags inline in Content, which the streaming controller untangles.
type Chunk struct {
	Content  string
	Thinking string

	// Final-line metadata.
	Done          bool
	DoneReason    string
	EvalCount     int
	TotalDuration int64
}

// =============================================================================
// STREAM READER
// =============================================================================

// StreamReader parses the newline-delimited JSON of a streaming /api/chat
// response into Chunks.
type StreamReader struct {
	reader *bufio.Reader
}

// NewStreamReader creates a stream reader from a response body.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{reader: bufio.NewReader(r)}
}

// Process reads the stream and calls the callback for each chunk, in order.
// Returns nil on natural end of stream, the callback's error if it aborts
// (ErrStopStream is translated to nil), or the read/parse error otherwise.
func (s *StreamReader) Process(ctx context.Context, callback StreamCallback) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		chunk, err := s.readChunk()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if chunk == nil {
			continue // blank or malformed line
		}

		if err := callback(*chunk); err != nil {
			if errors.Is(err, ErrStopStream) {
				return nil
			}
			return err
		}
		if chunk.Done {
			return nil
		}
	}
}

// readChunk reads and parses a single NDJSON line.
func (s *StreamReader) readChunk() (*Chunk, error) {
	line, err := s.reader.ReadBytes('\n')
	if err != nil {
		if len(line) == 0 {
			return nil, err
		}
		// Process a final unterminated line before reporting EOF.
	}

	if len(line) == 0 {
		return nil, nil
	}

	var response ChatResponse
	if err := json.Unmarshal(line, &response); err != nil {
		// Skip malformed lines rather than killing the stream.
		return nil, nil
	}

	chunk := &Chunk{
		Content:  response.Message.Content,
		Thinking: response.Message.Thinking,
		Done:     response.Done,
	}
	if response.Done {
		chunk.DoneReason = response.DoneReason
		chunk.EvalCount = response.EvalCount
		chunk.TotalDuration = response.TotalDuration
	}
	return chunk, nil
}
