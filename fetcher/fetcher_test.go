package fetcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vibeflow/ledger"
)

func newTestFetcher(t *testing.T) (*Fetcher, ledger.Ledger, string) {
	t.Helper()
	root := t.TempDir()
	pending := filepath.Join(root, "pending")

	led, err := ledger.NewJSONLedger(filepath.Join(root, "ledger.json"))
	if err != nil {
		t.Fatalf("NewJSONLedger() error = %v", err)
	}
	t.Cleanup(func() { led.Close() })

	f := New(pending, led, "yt-dlp", time.Minute)
	return f, led, pending
}

// writingRunner fakes yt-dlp: it writes content to a file derived from the
// URL and prints the path the way --print after_move:filepath does.
func writingRunner(t *testing.T, pending string, contentFor func(url string) (string, error)) Runner {
	t.Helper()
	return func(ctx context.Context, name string, args ...string) (string, error) {
		url := args[len(args)-1]
		content, err := contentFor(url)
		if err != nil {
			return "", err
		}

		base := strings.TrimSuffix(filepath.Base(url), ".mp4")
		path := filepath.Join(pending, base+".mp4")
		if err := os.MkdirAll(pending, 0755); err != nil {
			return "", err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return "", err
		}
		return path + "\n", nil
	}
}

func TestFetchAll(t *testing.T) {
	f, led, pending := newTestFetcher(t)
	ctx := context.Background()

	urls := []string{
		"https://cdn.example.com/a.mp4",
		"https://cdn.example.com/b.mp4",
	}
	if _, err := led.AddSources(ctx, urls); err != nil {
		t.Fatalf("AddSources() error = %v", err)
	}

	f.UsingRunner(writingRunner(t, pending, func(url string) (string, error) {
		return "content of " + url, nil
	}))

	stats, err := f.FetchAll(ctx)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if stats.Succeeded != 2 || stats.Failed != 0 {
		t.Errorf("FetchAll() stats = %+v, want 2 succeeded", stats)
	}

	for _, name := range []string{"a.mp4", "b.mp4"} {
		if _, err := os.Stat(filepath.Join(pending, name)); err != nil {
			t.Errorf("downloaded file %s missing: %v", name, err)
		}
	}

	// Both URLs are recorded as done.
	for _, url := range urls {
		done, err := led.IsDownloaded(ctx, url)
		if err != nil {
			t.Fatalf("IsDownloaded() error = %v", err)
		}
		if !done {
			t.Errorf("IsDownloaded(%s) = false after fetch", url)
		}
	}
}

func TestFetchAll_SkipsDownloaded(t *testing.T) {
	f, led, pending := newTestFetcher(t)
	ctx := context.Background()

	url := "https://cdn.example.com/a.mp4"
	if _, err := led.AddSources(ctx, []string{url}); err != nil {
		t.Fatalf("AddSources() error = %v", err)
	}

	var runs int
	f.UsingRunner(func(ctx context.Context, name string, args ...string) (string, error) {
		runs++
		path := filepath.Join(pending, "a.mp4")
		os.MkdirAll(pending, 0755)
		os.WriteFile(path, []byte("a"), 0o644)
		return path + "\n", nil
	})

	if _, err := f.FetchAll(ctx); err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	stats, err := f.FetchAll(ctx)
	if err != nil {
		t.Fatalf("FetchAll() second error = %v", err)
	}
	if runs != 1 {
		t.Errorf("downloader ran %d times, want 1", runs)
	}
	if stats.Attempted != 0 {
		t.Errorf("second FetchAll() attempted = %d, want 0", stats.Attempted)
	}
}

func TestFetchAll_RecordsFailures(t *testing.T) {
	f, led, _ := newTestFetcher(t)
	ctx := context.Background()

	url := "https://cdn.example.com/broken.mp4"
	if _, err := led.AddSources(ctx, []string{url}); err != nil {
		t.Fatalf("AddSources() error = %v", err)
	}

	f.UsingRunner(func(ctx context.Context, name string, args ...string) (string, error) {
		return "", fmt.Errorf("exit status 1: ERROR: unable to download video data")
	})

	stats, err := f.FetchAll(ctx)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if stats.Failed != 1 {
		t.Errorf("FetchAll() failed = %d, want 1", stats.Failed)
	}

	dl, err := led.GetDownload(ctx, url)
	if err != nil {
		t.Fatalf("GetDownload() error = %v", err)
	}
	if dl.Success {
		t.Error("failure recorded as success")
	}

	// The URL stays pending so a later run retries it.
	pendingSrcs, err := led.PendingSources(ctx)
	if err != nil {
		t.Fatalf("PendingSources() error = %v", err)
	}
	if len(pendingSrcs) != 1 {
		t.Errorf("PendingSources() len = %d, want 1", len(pendingSrcs))
	}
}

func TestFetchAll_DuplicateContentDiscarded(t *testing.T) {
	f, led, pending := newTestFetcher(t)
	ctx := context.Background()

	urls := []string{
		"https://cdn.example.com/original.mp4",
		"https://cdn.example.com/z-mirror.mp4",
	}
	if _, err := led.AddSources(ctx, urls); err != nil {
		t.Fatalf("AddSources() error = %v", err)
	}

	// Both URLs serve byte-identical content.
	f.UsingRunner(writingRunner(t, pending, func(url string) (string, error) {
		return "same bytes", nil
	}))

	stats, err := f.FetchAll(ctx)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if stats.Succeeded != 1 || stats.Duplicates != 1 {
		t.Errorf("FetchAll() stats = %+v, want 1 succeeded 1 duplicate", stats)
	}

	// Only one file remains.
	entries, err := os.ReadDir(pending)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("pending dir has %d files after dedupe, want 1", len(entries))
	}

	// The mirror URL is marked done against the surviving file.
	dl, err := led.GetDownload(ctx, "https://cdn.example.com/z-mirror.mp4")
	if err != nil {
		t.Fatalf("GetDownload() error = %v", err)
	}
	if !dl.Success || dl.Filename != "original.mp4" {
		t.Errorf("mirror record = %+v, want success pointing at original.mp4", dl)
	}
}

func TestFetchOne_ParsesOutputPath(t *testing.T) {
	f, _, pending := newTestFetcher(t)

	f.UsingRunner(func(ctx context.Context, name string, args ...string) (string, error) {
		return "[download] some progress noise\n" + filepath.Join(pending, "clip.mp4") + "\n", nil
	})

	path, err := f.fetchOne(context.Background(), "https://cdn.example.com/clip.mp4")
	if err != nil {
		t.Fatalf("fetchOne() error = %v", err)
	}
	if filepath.Base(path) != "clip.mp4" {
		t.Errorf("fetchOne() path = %q, want clip.mp4", path)
	}
}

func TestFetchOne_NoPathReported(t *testing.T) {
	f, _, _ := newTestFetcher(t)

	f.UsingRunner(func(ctx context.Context, name string, args ...string) (string, error) {
		return "no paths here\n", nil
	})

	if _, err := f.fetchOne(context.Background(), "https://cdn.example.com/x.mp4"); err == nil {
		t.Error("fetchOne() with pathless output succeeded, want error")
	}
}
