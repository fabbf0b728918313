package store

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"vibeflow/internal/retry"
)

// collisionSuffixLayout is appended to a filename when the destination
// already exists, e.g. clip.mp4 -> clip_20260115_180204.mp4.
const collisionSuffixLayout = "20060102_150405"

// Relocate moves an uploaded video out of the pending directory. The journal
// entry for the video must already exist; it is cleared only after the move
// succeeds, so a crash at any point leaves either the file in place or the
// entry behind, never a lost video.
//
// The rename is retried on failure, then a copy-and-delete fallback is
// attempted for cases rename cannot handle (cross-device moves, transient
// locks that outlast the retries). If everything fails the journal entry
// stays put and the video will not be re-uploaded.
func (s *Store) Relocate(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	e := s.find(name)
	if e == nil {
		s.mu.Unlock()
		return "", fmt.Errorf("store: relocate %s: %w", name, ErrNotFound)
	}
	if e.VideoID == "" {
		s.mu.Unlock()
		return "", fmt.Errorf("store: relocate %s: %w", name, ErrNotUploaded)
	}
	s.mu.Unlock()

	src := filepath.Join(s.pendingDir, name)
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			// The move completed before a crash wiped the journal update.
			log.Printf("store: %s already left pending, clearing journal entry", name)
			s.mu.Lock()
			defer s.mu.Unlock()
			return "", s.remove(name)
		}
		return "", fmt.Errorf("store: relocate %s: %w", name, err)
	}

	dst := s.destPath(name)

	err := retry.Do(ctx, s.relocRetry, nil, func(ctx context.Context) error {
		return os.Rename(src, dst)
	})
	if err != nil {
		log.Printf("store: rename %s failed after retries, trying copy: %v", name, err)
		if err := copyThenDelete(src, dst); err != nil {
			return "", fmt.Errorf("store: relocate %s: %w", name, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.remove(name); err != nil {
		return dst, err
	}
	return dst, nil
}

// RecoverPending drains the journal left by earlier crashed or failed
// cycles: every journaled video is moved out of the pending directory
// without being uploaded again. Returns the number of entries cleared.
func (s *Store) RecoverPending(ctx context.Context) (int, error) {
	journal := s.Journal()
	if len(journal) == 0 {
		return 0, nil
	}

	cleared := 0
	for _, je := range journal {
		if _, err := s.Relocate(ctx, je.Name); err != nil {
			log.Printf("store: recovery of %s failed, will retry next cycle: %v", je.Name, err)
			continue
		}
		log.Printf("store: recovered %s (video %s) without re-upload", je.Name, je.VideoID)
		cleared++
	}
	return cleared, nil
}

// destPath picks the destination path, appending a timestamp suffix when a
// file of the same name already sits in the uploaded directory.
func (s *Store) destPath(name string) string {
	dst := filepath.Join(s.uploadedDir, name)
	if _, err := os.Stat(dst); os.IsNotExist(err) {
		return dst
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	stamped := fmt.Sprintf("%s_%s%s", base, s.now().Format(collisionSuffixLayout), ext)
	return filepath.Join(s.uploadedDir, stamped)
}

// copyThenDelete copies src to dst and removes src. The copy is synced
// before the source is deleted.
func copyThenDelete(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copy: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("sync: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("close: %w", err)
	}

	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove source: %w", err)
	}
	return nil
}
