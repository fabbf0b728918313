// Package scraper discovers candidate video URLs on a content page and
// records them in the ledger for the fetcher to pick up.
package scraper

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"vibeflow/internal/httpx"
	"vibeflow/ledger"
)

// videoURLPatterns match direct media URLs and ones embedded in markup
// attributes. blob: URLs are browser-internal and never fetchable.
var videoURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`https://[^"'\s<>]+\.(?:mp4|mov|webm|mkv|avi)(?:\?[^"'\s<>]*)?`),
	regexp.MustCompile(`(?:src|data-video-url|data-src)="(https://[^"]+)"`),
}

// Scraper fetches a page and extracts video URLs from it.
type Scraper struct {
	client *httpx.Client
	ledger ledger.Ledger

	// hostFilter, when non-empty, keeps only URLs whose host contains it.
	hostFilter string

	// Target, when positive, caps how many new URLs a single Scrape run
	// records. Zero means no cap.
	Target int
}

// New creates a scraper recording into the given ledger.
func New(client *httpx.Client, led ledger.Ledger, hostFilter string) *Scraper {
	return &Scraper{client: client, ledger: led, hostFilter: hostFilter}
}

// Scrape fetches pageURL, extracts video URLs, and records the new ones in
// the ledger. Returns the number of URLs newly added.
func (s *Scraper) Scrape(ctx context.Context, pageURL string) (int, error) {
	resp, err := s.client.Get(ctx, pageURL)
	if err != nil {
		return 0, fmt.Errorf("scraper: fetch %s: %w", pageURL, err)
	}

	urls := ExtractVideoURLs(string(resp.Body), s.hostFilter)
	if len(urls) == 0 {
		log.Printf("scraper: no video URLs found on %s", pageURL)
		return 0, nil
	}
	if s.Target > 0 && len(urls) > s.Target {
		urls = urls[:s.Target]
	}

	added, err := s.ledger.AddSources(ctx, urls)
	if err != nil {
		return 0, fmt.Errorf("scraper: record sources: %w", err)
	}
	log.Printf("scraper: %d URLs found, %d new", len(urls), added)
	return added, nil
}

// ExtractVideoURLs pulls video URLs out of page markup, deduplicated and
// sorted. hostFilter, when non-empty, restricts results to matching hosts.
func ExtractVideoURLs(content, hostFilter string) []string {
	seen := make(map[string]bool)

	for _, pattern := range videoURLPatterns {
		for _, match := range pattern.FindAllStringSubmatch(content, -1) {
			candidate := match[0]
			if len(match) > 1 {
				candidate = match[1]
			}
			if u, ok := acceptURL(candidate, hostFilter); ok {
				seen[u] = true
			}
		}
	}

	urls := make([]string, 0, len(seen))
	for u := range seen {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// acceptURL validates a candidate video URL.
func acceptURL(raw, hostFilter string) (string, bool) {
	if strings.HasPrefix(raw, "blob:") {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return "", false
	}
	if !hasVideoExt(u.Path) {
		return "", false
	}
	if hostFilter != "" && !strings.Contains(u.Host, hostFilter) {
		return "", false
	}
	return u.String(), true
}

func hasVideoExt(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range []string{".mp4", ".mov", ".webm", ".mkv", ".avi"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
