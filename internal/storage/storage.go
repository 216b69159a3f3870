// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists chat history to the work directory. Every
// operation is best-effort: chat history is convenience state and a disk
// problem never blocks the user.
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/lsuhpchelp/ollamaondemand/internal/session"
	"github.com/lsuhpchelp/ollamaondemand/internal/util"
)

const (
	chatsFile = "chats.json"
	cacheDir  = "cache"
)

// Store reads and writes session history under one work directory. It
// implements session.Persistence.
type Store struct {
	workdir string
}

// New creates a store rooted at the work directory.
func New(workdir string) *Store {
	return &Store{workdir: workdir}
}

// Persist writes all sessions to chats.json atomically. Failures are
// swallowed.
func (s *Store) Persist(records []session.Record) {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(s.workdir, 0755); err != nil {
		return
	}
	_ = util.AtomicWriteFile(filepath.Join(s.workdir, chatsFile), data, 0644)
}

// Restore reads chats.json. A missing or corrupt file yields nil, which the
// session store turns into a single fresh session.
func (s *Store) Restore() []session.Record {
	data, err := os.ReadFile(filepath.Join(s.workdir, chatsFile))
	if err != nil {
		return nil
	}

	var records []session.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil
	}
	return records
}

// =============================================================================
// EXPORT
// =============================================================================

// Export writes a single session as indented JSON to path. Unlike history
// persistence this reports failures: the user asked for the file explicitly
// and needs to know when it did not land.
func Export(path string, record session.Record) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(path, data, 0644)
}

// =============================================================================
// ATTACHMENT CACHE CLEANUP
// =============================================================================

// CleanupCache deletes attachment-cache subfolders no longer referenced by
// the persisted history. Uploads land in uniquely-named subfolders of
// cache/; a subfolder whose name appears nowhere in chats.json is orphaned.
// Returns how many folders were removed.
func (s *Store) CleanupCache() int {
	dir := filepath.Join(s.workdir, cacheDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	data, err := os.ReadFile(filepath.Join(s.workdir, chatsFile))
	if err != nil {
		return 0
	}
	history := string(data)

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if strings.Contains(history, entry.Name()) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err == nil {
			removed++
		}
	}
	return removed
}

// CacheDir returns the attachment cache directory, creating it if needed.
func (s *Store) CacheDir() (string, error) {
	dir := filepath.Join(s.workdir, cacheDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}
