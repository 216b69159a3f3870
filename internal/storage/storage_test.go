// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsuhpchelp/ollamaondemand/internal/chat"
	"github.com/lsuhpchelp/ollamaondemand/internal/session"
)

func TestPersistRestoreRoundTrip(t *testing.T) {
	s := New(t.TempDir())

	records := []session.Record{
		{
			ID:    "abc",
			Title: "First",
			Messages: []chat.Message{
				chat.NewUserMessage("hi", nil),
				{Role: chat.RoleAssistant, Content: "hello", Thinking: "greet"},
			},
		},
		{ID: "def", Title: ""},
	}
	s.Persist(records)

	restored := s.Restore()
	require.Len(t, restored, 2)
	assert.Equal(t, "First", restored[0].Title)
	require.Len(t, restored[0].Messages, 2)
	assert.Equal(t, "greet", restored[0].Messages[1].Thinking)
}

func TestRestoreMissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nonexistent"))
	assert.Nil(t, s.Restore())
}

func TestRestoreCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chats.json"), []byte("{not json"), 0644))
	assert.Nil(t, New(dir).Restore())
}

func TestPersistUnwritableDirIsSilent(t *testing.T) {
	// Pointing the workdir at a file path makes every write fail.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	s := New(filepath.Join(blocker, "sub"))
	assert.NotPanics(t, func() {
		s.Persist([]session.Record{{ID: "x"}})
	})
}

func TestExportWritesSessionJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trip.json")
	record := session.Record{
		ID:    "abc",
		Title: "Trip Planning",
		Messages: []chat.Message{
			chat.NewUserMessage("plan a trip", nil),
			{Role: chat.RoleAssistant, Content: "sure"},
		},
	}

	require.NoError(t, Export(path, record))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got session.Record
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "Trip Planning", got.Title)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "plan a trip", got.Messages[0].Content)
}

func TestExportReportsFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	// Parent "directory" is a regular file, so the write cannot land.
	err := Export(filepath.Join(blocker, "out.json"), session.Record{ID: "abc"})
	assert.Error(t, err)
}

func TestCleanupCache(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	// History referencing one cached upload folder.
	s.Persist([]session.Record{{
		ID: "abc",
		Messages: []chat.Message{
			chat.NewUserMessage("see attached", []chat.Attachment{
				{Path: filepath.Join(dir, "cache", "keep1234", "doc.pdf")},
			}),
		},
	}})

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "cache", "keep1234"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "cache", "orphan99"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cache", "stray.txt"), []byte("x"), 0644))

	removed := s.CleanupCache()
	assert.Equal(t, 1, removed)

	_, err := os.Stat(filepath.Join(dir, "cache", "keep1234"))
	assert.NoError(t, err, "referenced folder must survive")
	_, err = os.Stat(filepath.Join(dir, "cache", "orphan99"))
	assert.True(t, os.IsNotExist(err), "orphaned folder must be removed")
	_, err = os.Stat(filepath.Join(dir, "cache", "stray.txt"))
	assert.NoError(t, err, "plain files are left alone")
}

func TestCleanupCacheNoCacheDir(t *testing.T) {
	assert.Equal(t, 0, New(t.TempDir()).CleanupCache())
}

func TestCleanupCacheNoHistory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "cache", "something"), 0755))

	// Without chats.json nothing can be judged orphaned; leave it all.
	assert.Equal(t, 0, New(dir).CleanupCache())
	_, err := os.Stat(filepath.Join(dir, "cache", "something"))
	assert.NoError(t, err)
}
