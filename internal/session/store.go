// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session manages the list of chat sessions: creation, selection,
// rename, delete and bulk persistence. The store never goes empty; deleting
// the last session atomically replaces it with a fresh one.
package session

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/lsuhpchelp/ollamaondemand/internal/chat"
	"github.com/lsuhpchelp/ollamaondemand/internal/util"
)

// ErrSessionNotFound rejects an operation on a session index outside the
// current list. The UI derives indexes from ListTitles, so this is a
// contract violation, not a user error.
var ErrSessionNotFound = errors.New("session not found")

// titleRunes is the placeholder-title budget for sessions named after their
// first message.
const titleRunes = 40

// Session is one chat conversation. An empty Title means untitled: the
// sidebar shows a placeholder and the summarizer may fill it in.
type Session struct {
	ID         string
	Title      string
	Transcript *chat.Transcript
}

// Record is the persisted form of a session.
type Record struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Messages []chat.Message `json:"messages"`
}

// Persistence is the injected storage collaborator. Both calls are
// best-effort: Persist swallows failures, Restore returns nil when nothing
// usable exists.
type Persistence interface {
	Persist(records []Record)
	Restore() []Record
}

// =============================================================================
// STORE
// =============================================================================

// Store owns the ordered session list and the current selection. Structural
// operations are atomic under an internal mutex, so a delete in one session
// cannot corrupt the index of another session that is mid-stream.
type Store struct {
	mu       sync.Mutex
	sessions []*Session
	current  int
	persist  Persistence
}

// NewStore creates a store restored from persistence. When nothing can be
// restored the store starts with a single empty session. persistence may be
// nil (in-memory only).
func NewStore(persistence Persistence) *Store {
	s := &Store{persist: persistence}

	if persistence != nil {
		for _, rec := range persistence.Restore() {
			id := rec.ID
			if id == "" {
				id = uuid.NewString()
			}
			s.sessions = append(s.sessions, &Session{
				ID:         id,
				Title:      rec.Title,
				Transcript: chat.RestoreTranscript(rec.Messages),
			})
		}
	}

	if len(s.sessions) == 0 {
		s.sessions = []*Session{newSession()}
	}
	return s
}

func newSession() *Session {
	return &Session{
		ID:         uuid.NewString(),
		Transcript: chat.NewTranscript(),
	}
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// CurrentIndex returns the index of the current session.
func (s *Store) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Current returns the current session.
func (s *Store) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[s.current]
}

// New prepends an empty untitled session and makes it current.
func (s *Store) New() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := newSession()
	s.sessions = append([]*Session{sess}, s.sessions...)
	s.current = 0
	return sess
}

// Select makes the session at index current and returns it. Fails with
// ErrSessionNotFound for an out-of-range index.
func (s *Store) Select(index int) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.sessions) {
		return nil, ErrSessionNotFound
	}
	s.current = index
	return s.sessions[index], nil
}

// Get returns the session at index without changing the selection.
func (s *Store) Get(index int) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.sessions) {
		return nil, ErrSessionNotFound
	}
	return s.sessions[index], nil
}

// Delete removes the session at index. Deleting the last remaining session
// creates a fresh empty one, so the store is never empty. The current
// selection shifts down by one when the deleted index is at or before it
// (unless already first), otherwise it stays, re-clamped to the new range.
func (s *Store) Delete(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.sessions) {
		return ErrSessionNotFound
	}

	s.sessions = append(s.sessions[:index], s.sessions[index+1:]...)

	if len(s.sessions) == 0 {
		s.sessions = []*Session{newSession()}
		s.current = 0
		return nil
	}

	if index <= s.current && s.current > 0 {
		s.current--
	}
	if s.current >= len(s.sessions) {
		s.current = len(s.sessions) - 1
	}
	return nil
}

// Rename sets the session title, NFC-normalized so visually identical
// titles compare equal regardless of how the terminal composed them.
func (s *Store) Rename(index int, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.sessions) {
		return ErrSessionNotFound
	}
	s.sessions[index].Title = norm.NFC.String(title)
	return nil
}

// ListTitles returns the display title for every session in order: the
// explicit title when set, otherwise the first user message truncated, or
// "Chat N" for an empty session.
func (s *Store) ListTitles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	titles := make([]string, len(s.sessions))
	for i, sess := range s.sessions {
		titles[i] = displayTitle(sess, i)
	}
	return titles
}

func displayTitle(sess *Session, index int) string {
	if sess.Title != "" {
		return sess.Title
	}
	if sess.Transcript.Len() > 0 {
		first := sess.Transcript.At(0)
		if line := first.FirstLine(); line != "" {
			return util.TruncateRunes(util.OneLine(line), titleRunes)
		}
	}
	return "Chat " + strconv.Itoa(index+1)
}

// =============================================================================
// PERSISTENCE & TITLE TRIGGER
// =============================================================================

// Records snapshots all sessions in persisted form.
func (s *Store) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]Record, len(s.sessions))
	for i, sess := range s.sessions {
		records[i] = Record{
			ID:       sess.ID,
			Title:    sess.Title,
			Messages: sess.Transcript.Messages(),
		}
	}
	return records
}

// CurrentRecord snapshots the current session in persisted form, for
// export.
func (s *Store) CurrentRecord() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[s.current]
	return Record{
		ID:       sess.ID,
		Title:    sess.Title,
		Messages: sess.Transcript.Messages(),
	}
}

// IndexOf returns the position of the session with the given ID, or -1.
// Positions shift as sessions are created and deleted, so callers holding
// a session across an operation should track it by ID and resolve late.
func (s *Store) IndexOf(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sess := range s.sessions {
		if sess.ID == id {
			return i
		}
	}
	return -1
}

// Flush persists all sessions. Best-effort; never returns an error.
func (s *Store) Flush() {
	if s.persist == nil {
		return
	}
	s.persist.Persist(s.Records())
}

// MaybeGenerateTitle summarizes the session at index into a title, once it
// has a completed first turn. No-op when the session already has a title or
// has no completed exchange yet. Failures are swallowed: the session keeps
// its placeholder and the next qualifying trigger retries.
func (s *Store) MaybeGenerateTitle(ctx context.Context, index int, gen chat.Generator, opts chat.GenerateOptions) {
	s.mu.Lock()
	if index < 0 || index >= len(s.sessions) {
		s.mu.Unlock()
		return
	}
	sess := s.sessions[index]
	if sess.Title != "" || sess.Transcript.Len() < 2 {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	title, err := chat.SummarizeTitle(ctx, gen, sess.Transcript, opts)
	if err != nil {
		return
	}

	// The summarization call runs unlocked and can take a while; the session
	// may have moved by the time it returns. Rename through the pointer, not
	// the now-stale index.
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.Title == "" {
		sess.Title = norm.NFC.String(util.OneLine(title))
	}
}
