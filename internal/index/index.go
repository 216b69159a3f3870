// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package index maintains a searchable SQLite index of persisted chat
// history, so the session sidebar can find old conversations by content.
// The index is derived data: it is rebuilt wholesale from the session list
// and can be deleted at any time without losing history.
package index

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/lsuhpchelp/ollamaondemand/internal/chat"
	"github.com/lsuhpchelp/ollamaondemand/internal/session"
)

// dbFile is the index database inside the work directory.
const dbFile = "history.db"

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	session_pos INTEGER NOT NULL,
	message_pos INTEGER NOT NULL,
	role        TEXT NOT NULL,
	content     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);
CREATE INDEX IF NOT EXISTS idx_messages_content ON messages(content);
`

// Hit is one search result: the session it lives in and a content excerpt.
type Hit struct {
	SessionID  string
	SessionPos int
	MessagePos int
	Role       chat.Role
	Excerpt    string
}

// Index is the history search index. Safe for concurrent readers; Rebuild
// takes the single writer slot.
type Index struct {
	db *sql.DB
}

// Open opens (or creates) the index under the work directory.
func Open(workdir string) (*Index, error) {
	if err := os.MkdirAll(workdir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(workdir, dbFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open history index: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Index{db: db}, nil
}

// Rebuild replaces the whole index with the given session records. Called
// after every persist; the history is small enough that incremental updates
// are not worth their bookkeeping.
func (idx *Index) Rebuild(records []session.Record) error {
	tx, err := idx.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM messages"); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO messages (session_id, session_pos, message_pos, role, content)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for pos, rec := range records {
		for mpos, msg := range rec.Messages {
			if msg.Content == "" {
				continue
			}
			if _, err := stmt.Exec(rec.ID, pos, mpos, string(msg.Role), msg.Content); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// Search returns messages whose content contains the query,
// case-insensitive, ordered by session position then message position.
func (idx *Index) Search(query string, limit int) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := idx.db.Query(`
		SELECT session_id, session_pos, message_pos, role, content
		FROM messages
		WHERE content LIKE ? ESCAPE '\'
		ORDER BY session_pos, message_pos
		LIMIT ?
	`, "%"+escapeLike(query)+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var role, content string
		if err := rows.Scan(&h.SessionID, &h.SessionPos, &h.MessagePos, &role, &content); err != nil {
			return nil, err
		}
		h.Role = chat.Role(role)
		h.Excerpt = excerpt(content, query)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// Close closes the index.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// escapeLike escapes LIKE metacharacters in the user's query.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// excerptRunes bounds how much context surrounds a match in a result row.
const excerptRunes = 80

// excerpt returns a short window of content around the first match,
// collapsed to one line.
func excerpt(content, query string) string {
	lower := strings.ToLower(content)
	pos := strings.Index(lower, strings.ToLower(query))
	if pos < 0 {
		pos = 0
	}

	runes := []rune(content)
	start := len([]rune(content[:pos]))

	from := start - excerptRunes/2
	if from < 0 {
		from = 0
	}
	to := from + excerptRunes
	if to > len(runes) {
		to = len(runes)
	}

	out := string(runes[from:to])
	if from > 0 {
		out = "..." + out
	}
	if to < len(runes) {
		out += "..."
	}
	return strings.ReplaceAll(out, "\n", " ")
}
