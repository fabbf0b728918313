// Package fetcher downloads videos for pending ledger sources into the
// pending directory using yt-dlp, with content-hash duplicate detection.
package fetcher

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"vibeflow/ledger"
)

// defaultFormat caps quality at 1080p with graceful fallback.
const defaultFormat = "bestvideo[height<=1080]+bestaudio/best[height<=1080]/best"

// Runner executes the download command and returns its stdout. Injectable
// so tests run without yt-dlp installed.
type Runner func(ctx context.Context, name string, args ...string) (string, error)

// execRunner runs the real command.
func execRunner(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if s := strings.TrimSpace(stderr.String()); s != "" {
			return "", fmt.Errorf("%w: %s", err, s)
		}
		return "", err
	}
	return stdout.String(), nil
}

// Stats summarizes one FetchAll run.
type Stats struct {
	Attempted  int `json:"attempted"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
}

// Fetcher downloads pending sources into the pending directory.
type Fetcher struct {
	pendingDir string
	ledger     ledger.Ledger

	ytdlpPath string
	timeout   time.Duration
	run       Runner
}

// New creates a fetcher. ytdlpPath empty means "yt-dlp" from PATH; timeout
// zero means 10 minutes per download.
func New(pendingDir string, led ledger.Ledger, ytdlpPath string, timeout time.Duration) *Fetcher {
	if ytdlpPath == "" {
		ytdlpPath = "yt-dlp"
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Fetcher{
		pendingDir: pendingDir,
		ledger:     led,
		ytdlpPath:  ytdlpPath,
		timeout:    timeout,
		run:        execRunner,
	}
}

// UsingRunner replaces the command runner. Intended for tests.
func (f *Fetcher) UsingRunner(run Runner) { f.run = run }

// CheckInstalled verifies the downloader binary is reachable.
func (f *Fetcher) CheckInstalled() error {
	if _, err := exec.LookPath(f.ytdlpPath); err != nil {
		return fmt.Errorf("fetcher: yt-dlp not found (install it or set the path): %w", err)
	}
	return nil
}

// FetchAll downloads every pending ledger source. Each outcome is recorded
// in the ledger; a byte-identical duplicate of an existing file is deleted
// and its URL marked done so it is never fetched again.
func (f *Fetcher) FetchAll(ctx context.Context) (Stats, error) {
	var stats Stats

	if err := os.MkdirAll(f.pendingDir, 0755); err != nil {
		return stats, fmt.Errorf("fetcher: create pending directory: %w", err)
	}

	sources, err := f.ledger.PendingSources(ctx)
	if err != nil {
		return stats, err
	}
	if len(sources) == 0 {
		log.Printf("fetcher: no pending sources")
		return stats, nil
	}

	hashes, err := f.knownHashes()
	if err != nil {
		return stats, err
	}

	for _, src := range sources {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		done, err := f.ledger.IsDownloaded(ctx, src.URL)
		if err != nil {
			return stats, err
		}
		if done {
			stats.Skipped++
			continue
		}

		stats.Attempted++
		path, err := f.fetchOne(ctx, src.URL)
		if err != nil {
			log.Printf("fetcher: download failed for %s: %v", src.URL, err)
			if recErr := f.ledger.RecordDownload(ctx, src.URL, "", false); recErr != nil {
				return stats, recErr
			}
			stats.Failed++
			continue
		}

		name := filepath.Base(path)
		sum, err := fileHash(path)
		if err != nil {
			return stats, fmt.Errorf("fetcher: hash %s: %w", name, err)
		}
		if existing, dup := hashes[sum]; dup {
			log.Printf("fetcher: %s duplicates %s, discarding", name, existing)
			os.Remove(path)
			// Record against the existing file so the URL is never retried.
			if recErr := f.ledger.RecordDownload(ctx, src.URL, existing, true); recErr != nil {
				return stats, recErr
			}
			stats.Duplicates++
			continue
		}
		hashes[sum] = name

		if err := f.ledger.RecordDownload(ctx, src.URL, name, true); err != nil {
			return stats, err
		}
		log.Printf("fetcher: downloaded %s", name)
		stats.Succeeded++
	}

	log.Printf("fetcher: done: %d succeeded, %d failed, %d duplicates", stats.Succeeded, stats.Failed, stats.Duplicates)
	return stats, nil
}

// fetchOne downloads a single URL and returns the written file path.
func (f *Fetcher) fetchOne(parent context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(parent, f.timeout)
	defer cancel()

	args := []string{
		"-o", filepath.Join(f.pendingDir, "%(title)s.%(ext)s"),
		"--no-warnings",
		"--print", "after_move:filepath",
		"-f", defaultFormat,
		url,
	}

	out, err := f.run(ctx, f.ytdlpPath, args...)
	if err != nil {
		return "", err
	}

	// The filepath is the last path-looking line of output.
	lines := strings.Split(out, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" && strings.Contains(line, string(os.PathSeparator)) {
			return line, nil
		}
	}
	return "", fmt.Errorf("no output path reported")
}

// knownHashes hashes every file already in the pending directory.
func (f *Fetcher) knownHashes() (map[string]string, error) {
	hashes := make(map[string]string)

	entries, err := os.ReadDir(f.pendingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return hashes, nil
		}
		return nil, fmt.Errorf("fetcher: read pending directory: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		sum, err := fileHash(filepath.Join(f.pendingDir, e.Name()))
		if err != nil {
			continue
		}
		hashes[sum] = e.Name()
	}
	return hashes, nil
}

// fileHash returns the hex SHA-256 of a file's contents.
func fileHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
