package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"vibeflow/internal/httpx"
	"vibeflow/internal/retry"
	"vibeflow/ledger"
)

func TestExtractVideoURLs(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		hostFilter string
		want       []string
	}{
		{
			name:    "bare video URL",
			content: `watch this https://cdn.example.com/clips/a.mp4 now`,
			want:    []string{"https://cdn.example.com/clips/a.mp4"},
		},
		{
			name:    "src attribute",
			content: `<video src="https://cdn.example.com/b.webm"></video>`,
			want:    []string{"https://cdn.example.com/b.webm"},
		},
		{
			name:    "data attributes",
			content: `<div data-video-url="https://cdn.example.com/c.mov"></div><div data-src="https://cdn.example.com/d.mkv"></div>`,
			want:    []string{"https://cdn.example.com/c.mov", "https://cdn.example.com/d.mkv"},
		},
		{
			name:    "query string preserved",
			content: `"https://cdn.example.com/e.mp4?token=abc123"`,
			want:    []string{"https://cdn.example.com/e.mp4?token=abc123"},
		},
		{
			name:    "blob URLs excluded",
			content: `<video src="blob:https://example.com/550e8400"></video>`,
			want:    []string{},
		},
		{
			name:    "non-video links excluded",
			content: `<a href="https://example.com/page.html">link</a> <img src="https://example.com/pic.jpg">`,
			want:    []string{},
		},
		{
			name:    "duplicates collapsed",
			content: `https://cdn.example.com/a.mp4 and again <video src="https://cdn.example.com/a.mp4">`,
			want:    []string{"https://cdn.example.com/a.mp4"},
		},
		{
			name:       "host filter applied",
			content:    `https://cdn.example.com/a.mp4 https://other.net/b.mp4`,
			hostFilter: "example.com",
			want:       []string{"https://cdn.example.com/a.mp4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractVideoURLs(tt.content, tt.hostFilter)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractVideoURLs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScrape(t *testing.T) {
	page := `<html><body>
		<video src="https://cdn.example.com/one.mp4"></video>
		<div data-video-url="https://cdn.example.com/two.mp4"></div>
	</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	led, err := ledger.NewJSONLedger(filepath.Join(t.TempDir(), "ledger.json"))
	if err != nil {
		t.Fatalf("NewJSONLedger() error = %v", err)
	}
	defer led.Close()

	client := httpx.New(&httpx.Config{
		Timeout: 5 * time.Second,
		Retry: retry.Config{
			MaxRetries: 0,
			Sleep:      func(ctx context.Context, d time.Duration) error { return nil },
		},
	})

	s := New(client, led, "")
	added, err := s.Scrape(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if added != 2 {
		t.Errorf("Scrape() added = %d, want 2", added)
	}

	// Scraping the same page again adds nothing.
	added, err = s.Scrape(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Scrape() second error = %v", err)
	}
	if added != 0 {
		t.Errorf("Scrape() second added = %d, want 0", added)
	}
}

func TestScrapeHonorsTarget(t *testing.T) {
	page := `<html><body>
		<video src="https://cdn.example.com/a.mp4"></video>
		<video src="https://cdn.example.com/b.mp4"></video>
		<video src="https://cdn.example.com/c.mp4"></video>
	</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	led, err := ledger.NewJSONLedger(filepath.Join(t.TempDir(), "ledger.json"))
	if err != nil {
		t.Fatalf("NewJSONLedger() error = %v", err)
	}
	defer led.Close()

	client := httpx.New(&httpx.Config{
		Timeout: 5 * time.Second,
		Retry: retry.Config{
			MaxRetries: 0,
			Sleep:      func(ctx context.Context, d time.Duration) error { return nil },
		},
	})

	s := New(client, led, "")
	s.Target = 2
	added, err := s.Scrape(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if added != 2 {
		t.Errorf("Scrape() added = %d, want 2", added)
	}
}
