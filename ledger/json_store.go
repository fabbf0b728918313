package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"vibeflow/internal/fsutil"
)

const (
	schemaVersion = "1.0"
	lockTimeout   = 5 * time.Second
)

// JSONLedger implements Ledger using a single JSON file guarded by an
// advisory file lock and written atomically.
type JSONLedger struct {
	path string
	lock *fsutil.FileLock
	data *ledgerData
	mu   sync.RWMutex
}

// ledgerData is the top-level JSON structure.
type ledgerData struct {
	Version   string               `json:"version"`
	UpdatedAt time.Time            `json:"updated_at"`
	Sources   map[string]*Source   `json:"sources"`   // url -> source
	Downloads map[string]*Download `json:"downloads"` // url -> download record
}

// NewJSONLedger creates a JSON file ledger at the given path.
// If the file exists, it is loaded; otherwise an empty ledger is created.
func NewJSONLedger(path string) (*JSONLedger, error) {
	l := &JSONLedger{
		path: path,
		lock: fsutil.NewFileLock(path),
	}

	if err := l.lock.Lock(lockTimeout); err != nil {
		if errors.Is(err, ErrLockTimeout) {
			return nil, err
		}
		return nil, &StorageError{Op: "lock", Entity: "ledger", Err: err}
	}

	if err := l.load(); err != nil {
		l.lock.Unlock()
		return nil, err
	}

	return l, nil
}

// load reads the JSON file into memory. Creates empty data if file doesn't exist.
func (l *JSONLedger) load() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			l.data = newLedgerData()
			// Save immediately to catch permission errors early
			return l.save()
		}
		return &StorageError{Op: "read", Entity: "ledger", Err: err}
	}

	l.data = &ledgerData{}
	if err := json.Unmarshal(data, l.data); err != nil {
		return &StorageError{Op: "read", Entity: "ledger", Err: ErrCorrupt}
	}

	if l.data.Sources == nil {
		l.data.Sources = make(map[string]*Source)
	}
	if l.data.Downloads == nil {
		l.data.Downloads = make(map[string]*Download)
	}

	return nil
}

// save persists the data to disk atomically.
func (l *JSONLedger) save() error {
	l.data.UpdatedAt = time.Now()

	writer, err := fsutil.NewAtomicWriter(l.path)
	if err != nil {
		return &StorageError{Op: "write", Entity: "ledger", Err: err}
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(l.data); err != nil {
		writer.Abort()
		return &StorageError{Op: "write", Entity: "ledger", Err: err}
	}

	if err := writer.Commit(); err != nil {
		return &StorageError{Op: "write", Entity: "ledger", Err: err}
	}

	return nil
}

// Close releases the file lock.
func (l *JSONLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lock.Unlock()
}

func newLedgerData() *ledgerData {
	return &ledgerData{
		Version:   schemaVersion,
		UpdatedAt: time.Now(),
		Sources:   make(map[string]*Source),
		Downloads: make(map[string]*Download),
	}
}

func (l *JSONLedger) AddSources(ctx context.Context, urls []string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	added := 0
	now := time.Now()
	for _, url := range urls {
		if url == "" {
			continue
		}
		if _, exists := l.data.Sources[url]; exists {
			continue
		}
		l.data.Sources[url] = &Source{
			ID:        uuid.NewString(),
			URL:       url,
			ScrapedAt: now,
			Status:    SourceStatusPending,
		}
		added++
	}

	if added == 0 {
		return 0, nil
	}
	return added, l.save()
}

func (l *JSONLedger) PendingSources(ctx context.Context) ([]*Source, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var pending []*Source
	for _, src := range l.data.Sources {
		if dl, ok := l.data.Downloads[src.URL]; ok && dl.Success {
			continue
		}
		if src.Status == SourceStatusDownloaded {
			continue
		}
		pending = append(pending, src)
	}

	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].ScrapedAt.Equal(pending[j].ScrapedAt) {
			return pending[i].ScrapedAt.Before(pending[j].ScrapedAt)
		}
		return pending[i].URL < pending[j].URL
	})

	return pending, nil
}

func (l *JSONLedger) RecordDownload(ctx context.Context, url, filename string, success bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.data.Downloads[url]; ok && existing.Success {
		// A successful record is final; never downgrade it.
		return &StorageError{Op: "write", Entity: "download", ID: url, Err: ErrAlreadyExists}
	}

	l.data.Downloads[url] = &Download{
		URL:       url,
		Filename:  filename,
		Timestamp: time.Now(),
		Success:   success,
	}

	if src, ok := l.data.Sources[url]; ok {
		if success {
			src.Status = SourceStatusDownloaded
		} else {
			src.Status = SourceStatusFailed
		}
	}

	return l.save()
}

func (l *JSONLedger) GetDownload(ctx context.Context, url string) (*Download, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	dl, exists := l.data.Downloads[url]
	if !exists {
		return nil, &StorageError{Op: "read", Entity: "download", ID: url, Err: ErrNotFound}
	}
	return dl, nil
}

func (l *JSONLedger) IsDownloaded(ctx context.Context, url string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	dl, exists := l.data.Downloads[url]
	return exists && dl.Success, nil
}

func (l *JSONLedger) Stats(ctx context.Context) (Stats, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Stats{Sources: len(l.data.Sources)}
	for _, dl := range l.data.Downloads {
		if dl.Success {
			s.Downloaded++
		} else {
			s.Failed++
		}
	}
	for _, src := range l.data.Sources {
		if dl, ok := l.data.Downloads[src.URL]; ok && dl.Success {
			continue
		}
		s.Pending++
	}
	return s, nil
}

func (l *JSONLedger) ClearFailed(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for url, dl := range l.data.Downloads {
		if dl.Success {
			continue
		}
		delete(l.data.Downloads, url)
		if src, ok := l.data.Sources[url]; ok {
			src.Status = SourceStatusPending
		}
		removed++
	}

	if removed == 0 {
		return 0, nil
	}
	return removed, l.save()
}

// MarkSource sets the status of a known source URL.
func (l *JSONLedger) MarkSource(ctx context.Context, url, status string) error {
	switch status {
	case SourceStatusPending, SourceStatusDownloaded, SourceStatusFailed:
	default:
		return &StorageError{Op: "write", Entity: "source", ID: url,
			Err: fmt.Errorf("invalid status %q", status)}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	src, ok := l.data.Sources[url]
	if !ok {
		return &StorageError{Op: "write", Entity: "source", ID: url, Err: ErrNotFound}
	}
	if src.Status == status {
		return nil
	}
	src.Status = status
	return l.save()
}
