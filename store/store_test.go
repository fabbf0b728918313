package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vibeflow/internal/retry"
)

// noSleepRetry is the relocation schedule with sleeps disabled for tests.
var noSleepRetry = retry.Config{
	MaxRetries: 4,
	Sleep:      func(ctx context.Context, d time.Duration) error { return nil },
}

func newTestStore(t *testing.T) (*Store, string, string) {
	t.Helper()
	root := t.TempDir()
	pending := filepath.Join(root, "pending")
	uploaded := filepath.Join(root, "uploaded")
	s, err := New(pending, uploaded, filepath.Join(root, "queue.json"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	s.UsingRelocateRetry(noSleepRetry)
	t.Cleanup(func() { s.Close() })
	return s, pending, uploaded
}

func writeVideo(t *testing.T, dir, name string, modTime time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("video-bytes"), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", name, err)
	}
	if !modTime.IsZero() {
		if err := os.Chtimes(path, modTime, modTime); err != nil {
			t.Fatalf("Chtimes(%s) error = %v", name, err)
		}
	}
}

func TestNew_RejectsSameDirectory(t *testing.T) {
	dir := t.TempDir()
	if _, err := New(dir, dir, filepath.Join(dir, "queue.json")); err == nil {
		t.Error("New() with identical directories succeeded, want error")
	}
}

func TestScan_SeedsDiscoveryOrderFromModTime(t *testing.T) {
	s, pending, _ := newTestStore(t)

	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	writeVideo(t, pending, "newest.mp4", base.Add(2*time.Hour))
	writeVideo(t, pending, "oldest.mp4", base)
	writeVideo(t, pending, "middle.mp4", base.Add(time.Hour))
	writeVideo(t, pending, "notes.txt", base) // ignored

	if err := s.Scan(); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	assets, err := s.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"oldest.mp4", "middle.mp4", "newest.mp4"}
	if len(assets) != len(want) {
		t.Fatalf("List() len = %d, want %d", len(assets), len(want))
	}
	for i, a := range assets {
		if a.Name != want[i] {
			t.Errorf("assets[%d].Name = %q, want %q", i, a.Name, want[i])
		}
	}
}

func TestScan_PreservesOrderAcrossRescan(t *testing.T) {
	s, pending, _ := newTestStore(t)

	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	writeVideo(t, pending, "first.mp4", base)
	if err := s.Scan(); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	// A later file with an earlier modtime still queues behind first.mp4.
	writeVideo(t, pending, "backdated.mp4", base.Add(-time.Hour))
	if err := s.Scan(); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	assets, _ := s.List()
	if len(assets) != 2 || assets[0].Name != "first.mp4" {
		t.Errorf("List() order = %v, want first.mp4 first", assetNames(assets))
	}
}

func TestScan_DropsVanishedFiles(t *testing.T) {
	s, pending, _ := newTestStore(t)

	writeVideo(t, pending, "gone.mp4", time.Time{})
	if err := s.Scan(); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if err := os.Remove(filepath.Join(pending, "gone.mp4")); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := s.Scan(); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	assets, _ := s.List()
	if len(assets) != 0 {
		t.Errorf("List() after vanish = %v, want empty", assetNames(assets))
	}
}

func TestCommitUpload(t *testing.T) {
	s, pending, _ := newTestStore(t)

	writeVideo(t, pending, "clip.mp4", time.Time{})
	if err := s.Scan(); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if err := s.CommitUpload("clip.mp4", "vid-123"); err != nil {
		t.Fatalf("CommitUpload() error = %v", err)
	}

	// Journaled videos leave the pending list.
	assets, _ := s.List()
	if len(assets) != 0 {
		t.Errorf("List() after commit = %v, want empty", assetNames(assets))
	}

	journal := s.Journal()
	if len(journal) != 1 || journal[0].VideoID != "vid-123" {
		t.Errorf("Journal() = %+v, want one entry with vid-123", journal)
	}

	// Double commit is rejected.
	if err := s.CommitUpload("clip.mp4", "vid-456"); !errors.Is(err, ErrAlreadyUploaded) {
		t.Errorf("CommitUpload() twice error = %v, want ErrAlreadyUploaded", err)
	}

	// Unknown name is rejected.
	if err := s.CommitUpload("missing.mp4", "vid-789"); !errors.Is(err, ErrNotFound) {
		t.Errorf("CommitUpload() unknown error = %v, want ErrNotFound", err)
	}
}

func TestRelocate(t *testing.T) {
	s, pending, uploaded := newTestStore(t)
	ctx := context.Background()

	writeVideo(t, pending, "clip.mp4", time.Time{})
	if err := s.Scan(); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if err := s.CommitUpload("clip.mp4", "vid-123"); err != nil {
		t.Fatalf("CommitUpload() error = %v", err)
	}

	dst, err := s.Relocate(ctx, "clip.mp4")
	if err != nil {
		t.Fatalf("Relocate() error = %v", err)
	}
	if dst != filepath.Join(uploaded, "clip.mp4") {
		t.Errorf("Relocate() dst = %q, want plain name in uploaded dir", dst)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Errorf("relocated file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(pending, "clip.mp4")); !os.IsNotExist(err) {
		t.Error("source file still in pending directory")
	}
	if len(s.Journal()) != 0 {
		t.Error("journal entry survived relocation")
	}
}

func TestRelocate_RequiresUpload(t *testing.T) {
	s, pending, _ := newTestStore(t)

	writeVideo(t, pending, "clip.mp4", time.Time{})
	if err := s.Scan(); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if _, err := s.Relocate(context.Background(), "clip.mp4"); !errors.Is(err, ErrNotUploaded) {
		t.Errorf("Relocate() before upload error = %v, want ErrNotUploaded", err)
	}
}

func TestRelocate_CollisionSuffix(t *testing.T) {
	s, pending, uploaded := newTestStore(t)
	ctx := context.Background()

	fixed := time.Date(2026, 1, 15, 18, 2, 4, 0, time.UTC)
	s.UsingClock(func() time.Time { return fixed })

	// Occupy the natural destination.
	writeVideo(t, uploaded, "clip.mp4", time.Time{})

	writeVideo(t, pending, "clip.mp4", time.Time{})
	if err := s.Scan(); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if err := s.CommitUpload("clip.mp4", "vid-123"); err != nil {
		t.Fatalf("CommitUpload() error = %v", err)
	}

	dst, err := s.Relocate(ctx, "clip.mp4")
	if err != nil {
		t.Fatalf("Relocate() error = %v", err)
	}
	want := filepath.Join(uploaded, "clip_20260115_180204.mp4")
	if dst != want {
		t.Errorf("Relocate() dst = %q, want %q", dst, want)
	}

	// The occupant was not overwritten.
	if _, err := os.Stat(filepath.Join(uploaded, "clip.mp4")); err != nil {
		t.Errorf("original uploaded file lost: %v", err)
	}
}

func TestRelocate_FailureKeepsJournal(t *testing.T) {
	s, pending, uploaded := newTestStore(t)
	ctx := context.Background()

	writeVideo(t, pending, "clip.mp4", time.Time{})
	if err := s.Scan(); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if err := s.CommitUpload("clip.mp4", "vid-123"); err != nil {
		t.Fatalf("CommitUpload() error = %v", err)
	}

	// Destroy the destination directory so both rename and copy fail.
	if err := os.RemoveAll(uploaded); err != nil {
		t.Fatalf("RemoveAll() error = %v", err)
	}

	if _, err := s.Relocate(ctx, "clip.mp4"); err == nil {
		t.Fatal("Relocate() with no destination succeeded, want error")
	}

	// The journal entry survives so the video is never re-uploaded.
	journal := s.Journal()
	if len(journal) != 1 || journal[0].VideoID != "vid-123" {
		t.Errorf("Journal() after failure = %+v, want entry preserved", journal)
	}
	if _, err := os.Stat(filepath.Join(pending, "clip.mp4")); err != nil {
		t.Errorf("source file lost after failed relocation: %v", err)
	}
}

func TestRelocate_SourceAlreadyGone(t *testing.T) {
	s, pending, _ := newTestStore(t)
	ctx := context.Background()

	writeVideo(t, pending, "clip.mp4", time.Time{})
	if err := s.Scan(); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if err := s.CommitUpload("clip.mp4", "vid-123"); err != nil {
		t.Fatalf("CommitUpload() error = %v", err)
	}

	// Simulate a crash after the move but before the journal update.
	if err := os.Remove(filepath.Join(pending, "clip.mp4")); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	if _, err := s.Relocate(ctx, "clip.mp4"); err != nil {
		t.Fatalf("Relocate() error = %v", err)
	}
	if len(s.Journal()) != 0 {
		t.Error("journal entry survived for already-moved file")
	}
}

func TestRecoverPending(t *testing.T) {
	s, pending, uploaded := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"a.mp4", "b.mp4", "c.mp4"} {
		writeVideo(t, pending, name, time.Time{})
	}
	if err := s.Scan(); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	// a and b uploaded but stuck in pending; c never uploaded.
	if err := s.CommitUpload("a.mp4", "vid-a"); err != nil {
		t.Fatalf("CommitUpload() error = %v", err)
	}
	if err := s.CommitUpload("b.mp4", "vid-b"); err != nil {
		t.Fatalf("CommitUpload() error = %v", err)
	}

	cleared, err := s.RecoverPending(ctx)
	if err != nil {
		t.Fatalf("RecoverPending() error = %v", err)
	}
	if cleared != 2 {
		t.Errorf("RecoverPending() cleared = %d, want 2", cleared)
	}

	for _, name := range []string{"a.mp4", "b.mp4"} {
		if _, err := os.Stat(filepath.Join(uploaded, name)); err != nil {
			t.Errorf("recovered file %s missing from uploaded dir: %v", name, err)
		}
	}

	// c.mp4 remains pending and untouched.
	assets, _ := s.List()
	if len(assets) != 1 || assets[0].Name != "c.mp4" {
		t.Errorf("List() after recovery = %v, want only c.mp4", assetNames(assets))
	}
}

func TestQueuePersistence(t *testing.T) {
	root := t.TempDir()
	pending := filepath.Join(root, "pending")
	uploaded := filepath.Join(root, "uploaded")
	queuePath := filepath.Join(root, "queue.json")

	s, err := New(pending, uploaded, queuePath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	writeVideo(t, pending, "clip.mp4", time.Time{})
	if err := s.Scan(); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if err := s.CommitUpload("clip.mp4", "vid-123"); err != nil {
		t.Fatalf("CommitUpload() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s2, err := New(pending, uploaded, queuePath)
	if err != nil {
		t.Fatalf("New() reopen error = %v", err)
	}
	defer s2.Close()

	journal := s2.Journal()
	if len(journal) != 1 || journal[0].VideoID != "vid-123" {
		t.Errorf("Journal() after reopen = %+v, want persisted entry", journal)
	}
}

func TestCopyThenDelete(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.mp4")
	dst := filepath.Join(dir, "dst.mp4")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if err := copyThenDelete(src, dst); err != nil {
		t.Fatalf("copyThenDelete() error = %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("ReadFile(dst) error = %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("dst contents = %q, want %q", data, "payload")
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source still exists after copyThenDelete")
	}
}

func assetNames(assets []Asset) []string {
	names := make([]string, len(assets))
	for i, a := range assets {
		names[i] = a.Name
	}
	return names
}
