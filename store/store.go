// Package store manages the pending and uploaded video directories and the
// queue file that records discovery order and upload progress.
//
// The queue file is the source of truth for two things: the FIFO order in
// which pending videos were discovered, and a journal of videos that were
// uploaded but whose file has not yet been moved out of the pending
// directory. A journal entry is written before the file is moved, so a crash
// between upload and move leaves a durable record that prevents re-upload.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"vibeflow/internal/fsutil"
	"vibeflow/internal/retry"
)

const (
	schemaVersion = "1.0"
	lockTimeout   = 5 * time.Second
)

// Sentinel errors for store conditions.
var (
	// ErrNotFound indicates the named video is not in the queue.
	ErrNotFound = errors.New("store: not found")
	// ErrNotUploaded indicates the video has no journal entry.
	ErrNotUploaded = errors.New("store: not uploaded")
	// ErrAlreadyUploaded indicates the video already has a journal entry.
	ErrAlreadyUploaded = errors.New("store: already uploaded")
	// ErrCorrupt indicates queue file corruption was detected.
	ErrCorrupt = errors.New("store: queue file corruption detected")
)

// videoExts are the file extensions treated as video assets.
var videoExts = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".webm": true,
	".mkv":  true,
	".avi":  true,
}

// Asset is a video file in the pending directory.
type Asset struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// entry is one queue record. VideoID is empty until the video is uploaded;
// a non-empty VideoID with the entry still present means the file has not
// been relocated yet.
type entry struct {
	Name         string    `json:"name"`
	DiscoveredAt time.Time `json:"discovered_at"`
	VideoID      string    `json:"video_id,omitempty"`
	UploadedAt   time.Time `json:"uploaded_at,omitempty"`
}

// JournalEntry describes an uploaded-but-not-relocated video.
type JournalEntry struct {
	Name       string    `json:"name"`
	VideoID    string    `json:"video_id"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// queueData is the top-level queue file structure. Entries preserve
// discovery order.
type queueData struct {
	Version   string    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
	Entries   []*entry  `json:"entries"`
}

// Store manages pending videos, the discovery queue, and relocation into the
// uploaded directory. Safe for concurrent use within a process; the queue
// file is additionally guarded by an advisory lock across processes.
type Store struct {
	pendingDir  string
	uploadedDir string
	queuePath   string

	lock *fsutil.FileLock
	mu   sync.Mutex
	data *queueData

	// relocRetry controls the rename retry schedule during relocation.
	relocRetry retry.Config
	now        func() time.Time
}

// New opens the store, creating the directories and queue file as needed.
func New(pendingDir, uploadedDir, queuePath string) (*Store, error) {
	if pendingDir == uploadedDir {
		return nil, errors.New("store: pending and uploaded directories must differ")
	}
	for _, dir := range []string{pendingDir, uploadedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("store: create directory %s: %w", dir, err)
		}
	}

	s := &Store{
		pendingDir:  pendingDir,
		uploadedDir: uploadedDir,
		queuePath:   queuePath,
		lock:        fsutil.NewFileLock(queuePath),
		relocRetry: retry.Config{
			MaxRetries:     4,
			InitialBackoff: 2 * time.Second,
			Increment:      3 * time.Second,
		},
		now: time.Now,
	}

	if err := s.lock.Lock(lockTimeout); err != nil {
		return nil, fmt.Errorf("store: lock queue file: %w", err)
	}
	if err := s.load(); err != nil {
		s.lock.Unlock()
		return nil, err
	}
	return s, nil
}

// Close releases the queue file lock.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lock.Unlock()
}

func (s *Store) load() error {
	raw, err := os.ReadFile(s.queuePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.data = &queueData{Version: schemaVersion, UpdatedAt: time.Now()}
			return s.save()
		}
		return fmt.Errorf("store: read queue file: %w", err)
	}

	s.data = &queueData{}
	if err := json.Unmarshal(raw, s.data); err != nil {
		return fmt.Errorf("store: parse queue file: %w", ErrCorrupt)
	}
	return nil
}

func (s *Store) save() error {
	s.data.UpdatedAt = time.Now()

	writer, err := fsutil.NewAtomicWriter(s.queuePath)
	if err != nil {
		return fmt.Errorf("store: write queue file: %w", err)
	}
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s.data); err != nil {
		writer.Abort()
		return fmt.Errorf("store: write queue file: %w", err)
	}
	if err := writer.Commit(); err != nil {
		return fmt.Errorf("store: write queue file: %w", err)
	}
	return nil
}

// isVideo reports whether the directory entry is a video file we track.
func isVideo(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	return videoExts[strings.ToLower(filepath.Ext(name))]
}

// Scan reconciles the queue with the pending directory. New files are
// appended in modification-time order, which seeds discovery order for files
// that predate the queue. Queue entries whose file vanished without an
// upload record are dropped.
func (s *Store) Scan() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dirEntries, err := os.ReadDir(s.pendingDir)
	if err != nil {
		return fmt.Errorf("store: scan pending directory: %w", err)
	}

	present := make(map[string]time.Time)
	for _, de := range dirEntries {
		if de.IsDir() || !isVideo(de.Name()) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		present[de.Name()] = info.ModTime()
	}

	known := make(map[string]bool, len(s.data.Entries))
	for _, e := range s.data.Entries {
		known[e.Name] = true
	}

	changed := false

	// Drop entries for files that disappeared before upload. Journal
	// entries are kept; RecoverPending decides their fate.
	kept := s.data.Entries[:0]
	for _, e := range s.data.Entries {
		if _, ok := present[e.Name]; !ok && e.VideoID == "" {
			log.Printf("store: pending file %s vanished, dropping from queue", e.Name)
			changed = true
			continue
		}
		kept = append(kept, e)
	}
	s.data.Entries = kept

	var fresh []*entry
	for name, modTime := range present {
		if known[name] {
			continue
		}
		fresh = append(fresh, &entry{Name: name, DiscoveredAt: modTime})
	}
	sort.Slice(fresh, func(i, j int) bool {
		if !fresh[i].DiscoveredAt.Equal(fresh[j].DiscoveredAt) {
			return fresh[i].DiscoveredAt.Before(fresh[j].DiscoveredAt)
		}
		return fresh[i].Name < fresh[j].Name
	})
	if len(fresh) > 0 {
		s.data.Entries = append(s.data.Entries, fresh...)
		changed = true
	}

	if !changed {
		return nil
	}
	return s.save()
}

// List returns pending assets in discovery order, oldest first. Videos that
// already have a journal entry are excluded.
func (s *Store) List() ([]Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var assets []Asset
	for _, e := range s.data.Entries {
		if e.VideoID != "" {
			continue
		}
		path := filepath.Join(s.pendingDir, e.Name)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		assets = append(assets, Asset{
			Name:         e.Name,
			Path:         path,
			Size:         info.Size(),
			DiscoveredAt: e.DiscoveredAt,
		})
	}
	return assets, nil
}

// CommitUpload journals a successful upload. This is written before the file
// is moved so a crash cannot cause a duplicate upload.
func (s *Store) CommitUpload(name, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.find(name)
	if e == nil {
		return fmt.Errorf("store: commit upload %s: %w", name, ErrNotFound)
	}
	if e.VideoID != "" {
		return fmt.Errorf("store: commit upload %s: %w", name, ErrAlreadyUploaded)
	}

	e.VideoID = videoID
	e.UploadedAt = s.now()
	return s.save()
}

// Journal returns uploaded-but-not-relocated entries in upload order.
func (s *Store) Journal() []JournalEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []JournalEntry
	for _, e := range s.data.Entries {
		if e.VideoID == "" {
			continue
		}
		out = append(out, JournalEntry{Name: e.Name, VideoID: e.VideoID, UploadedAt: e.UploadedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.Before(out[j].UploadedAt) })
	return out
}

// Uploaded lists the contents of the uploaded directory.
func (s *Store) Uploaded() ([]Asset, error) {
	dirEntries, err := os.ReadDir(s.uploadedDir)
	if err != nil {
		return nil, fmt.Errorf("store: read uploaded directory: %w", err)
	}

	var assets []Asset
	for _, de := range dirEntries {
		if de.IsDir() || !isVideo(de.Name()) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		assets = append(assets, Asset{
			Name:         de.Name(),
			Path:         filepath.Join(s.uploadedDir, de.Name()),
			Size:         info.Size(),
			DiscoveredAt: info.ModTime(),
		})
	}
	return assets, nil
}

// find returns the queue entry for name, or nil. Caller holds s.mu.
func (s *Store) find(name string) *entry {
	for _, e := range s.data.Entries {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// remove drops the queue entry for name and persists. Caller holds s.mu.
func (s *Store) remove(name string) error {
	for i, e := range s.data.Entries {
		if e.Name == name {
			s.data.Entries = append(s.data.Entries[:i], s.data.Entries[i+1:]...)
			return s.save()
		}
	}
	return nil
}

// UsingClock replaces the store's clock. Intended for tests.
func (s *Store) UsingClock(now func() time.Time) { s.now = now }

// UsingRelocateRetry replaces the relocation retry schedule. Intended for
// tests; production uses the fixed 2s base plus 3s per attempt schedule.
func (s *Store) UsingRelocateRetry(cfg retry.Config) { s.relocRetry = cfg }
