// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const searchPage1 = `<html>
<span x-test-search-response-title class="title"> llama3.2 </span>
<span x-test-search-response-title> qwen3 </span>
<span x-test-search-response-title> evil/injected name </span>
</html>`

const llamaLibraryPage = `<html>
<a href="/library/llama3.2:latest" class="font-medium text-neutral-800"> llama3.2:latest </a>
<a href="/library/llama3.2:1b" class="font-medium text-neutral-800"> llama3.2:1b </a>
<a href="/library/llama3.2:3b" class="font-medium text-neutral-800"> llama3.2:3b </a>
<a href="/library/llama3.2:3b-cloud" class="font-medium text-neutral-800"> llama3.2:3b-cloud </a>
</html>`

const qwenLibraryPage = `<html>
<a href="/library/qwen3:8b" class="font-medium text-neutral-800"> qwen3:8b </a>
</html>`

func newCatalogServer(t *testing.T) *Scraper {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/search" && r.URL.Query().Get("page") == "1":
			w.Write([]byte(searchPage1))
		case r.URL.Path == "/search":
			w.Write([]byte("<html></html>")) // empty page ends pagination
		case r.URL.Path == "/library/llama3.2":
			w.Write([]byte(llamaLibraryPage))
		case r.URL.Path == "/library/qwen3":
			w.Write([]byte(qwenLibraryPage))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return NewScraperForURL(server.URL)
}

func TestFetchAll(t *testing.T) {
	s := newCatalogServer(t)

	catalog, err := s.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}

	want := Catalog{
		"llama3.2": {"1b", "3b"},
		"qwen3":    {"8b"},
	}
	if !reflect.DeepEqual(catalog, want) {
		t.Errorf("catalog = %v, want %v", catalog, want)
	}
}

func TestFetchAllFiltersInvalidNames(t *testing.T) {
	s := newCatalogServer(t)

	catalog, err := s.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if _, ok := catalog["evil/injectedname"]; ok {
		t.Error("name outside the whitelist must be dropped")
	}
}

func TestCatalogHelpers(t *testing.T) {
	c := Catalog{
		"qwen3":    {"8b"},
		"llama3.2": {"1b", "3b"},
	}

	names := c.Names()
	if !reflect.DeepEqual(names, []string{"llama3.2", "qwen3"}) {
		t.Errorf("Names = %v", names)
	}

	full := c.FullNames()
	if !reflect.DeepEqual(full, []string{"llama3.2:1b", "llama3.2:3b", "qwen3:8b"}) {
		t.Errorf("FullNames = %v", full)
	}
}

func TestCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := Catalog{"llama3.2": {"1b", "3b"}}

	Save(dir, c)
	loaded := Load(dir)
	if !reflect.DeepEqual(loaded, c) {
		t.Errorf("loaded = %v, want %v", loaded, c)
	}
}

func TestLoadFallsBackToBundledSnapshot(t *testing.T) {
	// Missing cache.
	c := Load(t.TempDir())
	if len(c) == 0 {
		t.Error("bundled snapshot should not be empty")
	}

	// Corrupt cache.
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "remotemodels.json"), []byte("{broken"), 0644)
	c = Load(dir)
	if len(c) == 0 {
		t.Error("corrupt cache should fall back to the bundled snapshot")
	}
}

func TestSaveEmptyCatalogIsNoop(t *testing.T) {
	dir := t.TempDir()
	Save(dir, Catalog{})
	if _, err := os.Stat(filepath.Join(dir, "remotemodels.json")); err == nil {
		t.Error("empty catalog should not overwrite the cache")
	}
}
