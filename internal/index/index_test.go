// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package index

import (
	"strings"
	"testing"

	"github.com/lsuhpchelp/ollamaondemand/internal/chat"
	"github.com/lsuhpchelp/ollamaondemand/internal/session"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func sampleRecords() []session.Record {
	return []session.Record{
		{
			ID: "s1",
			Messages: []chat.Message{
				chat.NewUserMessage("how do I bake sourdough bread", nil),
				{Role: chat.RoleAssistant, Content: "Start with a healthy starter..."},
			},
		},
		{
			ID: "s2",
			Messages: []chat.Message{
				chat.NewUserMessage("explain goroutines", nil),
				{Role: chat.RoleAssistant, Content: "A goroutine is a lightweight thread."},
			},
		},
	}
}

func TestRebuildAndSearch(t *testing.T) {
	idx := openTestIndex(t)
	if err := idx.Rebuild(sampleRecords()); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	hits, err := idx.Search("sourdough", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits", len(hits))
	}
	if hits[0].SessionID != "s1" || hits[0].SessionPos != 0 || hits[0].MessagePos != 0 {
		t.Errorf("hit = %+v", hits[0])
	}
	if !strings.Contains(hits[0].Excerpt, "sourdough") {
		t.Errorf("excerpt = %q", hits[0].Excerpt)
	}
}

func TestSearchCaseInsensitive(t *testing.T) {
	idx := openTestIndex(t)
	if err := idx.Rebuild(sampleRecords()); err != nil {
		t.Fatal(err)
	}

	hits, err := idx.Search("GOROUTINE", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Errorf("got %d hits, want question and answer", len(hits))
	}
}

func TestRebuildReplacesPreviousContents(t *testing.T) {
	idx := openTestIndex(t)
	if err := idx.Rebuild(sampleRecords()); err != nil {
		t.Fatal(err)
	}
	if err := idx.Rebuild([]session.Record{{
		ID:       "s3",
		Messages: []chat.Message{chat.NewUserMessage("only this now", nil)},
	}}); err != nil {
		t.Fatal(err)
	}

	hits, err := idx.Search("sourdough", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("stale rows survived rebuild: %+v", hits)
	}
}

func TestSearchEscapesLikeMetacharacters(t *testing.T) {
	idx := openTestIndex(t)
	if err := idx.Rebuild([]session.Record{{
		ID:       "s1",
		Messages: []chat.Message{chat.NewUserMessage("literally 100% sure", nil)},
	}}); err != nil {
		t.Fatal(err)
	}

	hits, err := idx.Search("100%", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("got %d hits for literal %% query", len(hits))
	}

	hits, err = idx.Search("0%s", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("%% must not act as a wildcard, got %+v", hits)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	idx := openTestIndex(t)
	hits, err := idx.Search("   ", 10)
	if err != nil || hits != nil {
		t.Errorf("empty query: hits=%v err=%v", hits, err)
	}
}

func TestExcerptWindow(t *testing.T) {
	long := strings.Repeat("a", 200) + " needle " + strings.Repeat("b", 200)
	out := excerpt(long, "needle")
	if !strings.Contains(out, "needle") {
		t.Errorf("excerpt lost the match: %q", out)
	}
	if !strings.HasPrefix(out, "...") || !strings.HasSuffix(out, "...") {
		t.Errorf("excerpt should be elided on both ends: %q", out)
	}
	if len([]rune(out)) > excerptRunes+6 {
		t.Errorf("excerpt too long: %d runes", len([]rune(out)))
	}
}
