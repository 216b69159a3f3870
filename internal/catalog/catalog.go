// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package catalog scrapes the public model catalog from ollama.com so the
// model picker can offer models that are not yet installed locally. The
// scrape is screen-scraping and subject to breakage when the site redesigns;
// callers always have the cached copy to fall back on.
package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Catalog maps an official model name to its pullable tags, e.g.
// {"llama3.2": ["1b", "3b"]}.
type Catalog map[string][]string

// =============================================================================
// SCRAPER
// =============================================================================

const defaultBaseURL = "https://ollama.com"

// Search result titles are official models only; user-pushed models render
// differently and are excluded by the marker.
const searchTitleMarker = "x-test-search-response-title"

// Tag links on a library page carry these classes.
const tagLinkMarker = "font-medium text-neutral-800"

var (
	htmlTagRe   = regexp.MustCompile(`<[^>]*>`)
	modelNameRe = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
)

// Scraper fetches the model catalog from ollama.com. Requests are
// rate-limited to stay polite; a full scrape touches one page per model.
type Scraper struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewScraper creates a scraper against ollama.com.
func NewScraper() *Scraper {
	return &Scraper{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(200*time.Millisecond), 3),
	}
}

// NewScraperForURL creates a scraper against an alternate base URL. Used in
// tests.
func NewScraperForURL(baseURL string) *Scraper {
	s := NewScraper()
	s.baseURL = strings.TrimRight(baseURL, "/")
	s.limiter = rate.NewLimiter(rate.Inf, 1)
	return s
}

// FetchAll scrapes every search page until an empty one, then fetches the
// tag list for each model. Returns whatever was collected along with the
// first error, so a scrape that dies halfway still yields a partial catalog.
func (s *Scraper) FetchAll(ctx context.Context) (Catalog, error) {
	catalog := Catalog{}

	for page := 1; ; page++ {
		names, err := s.fetchSearchPage(ctx, page)
		if err != nil {
			return catalog, err
		}
		if len(names) == 0 {
			break
		}

		for _, name := range names {
			tags, err := s.fetchModelTags(ctx, name)
			if err != nil {
				return catalog, err
			}
			if len(tags) > 0 {
				catalog[name] = tags
			}
		}
	}

	return catalog, nil
}

// fetchSearchPage returns the official model names listed on one search
// page. An empty slice means past the last page.
func (s *Scraper) fetchSearchPage(ctx context.Context, page int) ([]string, error) {
	body, err := s.get(ctx, fmt.Sprintf("%s/search?page=%d", s.baseURL, page))
	if err != nil {
		return nil, err
	}

	var names []string
	for _, line := range strings.Split(body, "\n") {
		if !strings.Contains(line, searchTitleMarker) {
			continue
		}
		name := strings.ReplaceAll(htmlTagRe.ReplaceAllString(line, ""), " ", "")
		if modelNameRe.MatchString(name) {
			names = append(names, name)
		}
	}
	return names, nil
}

// fetchModelTags returns the pullable tags for one model, with the "latest"
// alias and cloud-only tags filtered out.
func (s *Scraper) fetchModelTags(ctx context.Context, name string) ([]string, error) {
	body, err := s.get(ctx, s.baseURL+"/library/"+name)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var tags []string
	for _, line := range strings.Split(body, "\n") {
		if !strings.Contains(line, "<a href") || !strings.Contains(line, tagLinkMarker) {
			continue
		}
		tag := strings.ReplaceAll(htmlTagRe.ReplaceAllString(line, ""), " ", "")
		tag = strings.ReplaceAll(tag, name+":", "")
		if tag == "" || strings.Contains(tag, "latest") || strings.Contains(tag, "cloud") {
			continue
		}
		if !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}
	return tags, nil
}

func (s *Scraper) get(ctx context.Context, url string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: %s", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// =============================================================================
// CATALOG HELPERS
// =============================================================================

// Names returns the model names in sorted order, for stable picker display.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FullNames expands the catalog into pullable "name:tag" strings, sorted.
func (c Catalog) FullNames() []string {
	var full []string
	for _, name := range c.Names() {
		for _, tag := range c[name] {
			full = append(full, name+":"+tag)
		}
	}
	return full
}
