// Package ledger persists the scraped-URL list and the per-URL download
// record so the pipeline never fetches the same source twice.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vibeflow/internal/fsutil"
)

// Sentinel errors for common ledger conditions.
var (
	// ErrNotFound indicates the requested record was not found.
	ErrNotFound = errors.New("ledger: not found")
	// ErrAlreadyExists indicates the record already exists.
	ErrAlreadyExists = errors.New("ledger: already exists")
	// ErrCorrupt indicates data corruption was detected.
	ErrCorrupt = errors.New("ledger: data corruption detected")
	// ErrLockTimeout indicates a timeout acquiring the file lock.
	ErrLockTimeout = fsutil.ErrLockTimeout
)

// StorageError wraps ledger errors with operation and entity context.
// Use errors.As() to extract operation details.
type StorageError struct {
	// Op is the operation that failed ("read", "write", "lock").
	Op string
	// Entity is the entity type ("source", "download", "ledger").
	Entity string
	// ID is the record key if applicable (usually a URL).
	ID string
	// Err is the underlying error.
	Err error
}

func (e *StorageError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("ledger: %s %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
	}
	return fmt.Sprintf("ledger: %s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// SourceStatus values for Source.Status.
const (
	SourceStatusPending    = "pending"
	SourceStatusDownloaded = "downloaded"
	SourceStatusFailed     = "failed"
)

// Source is a scraped candidate video URL.
type Source struct {
	ID        string    `json:"id"` // Internal UUID
	URL       string    `json:"url"`
	ScrapedAt time.Time `json:"scraped_at"`
	Status    string    `json:"status"`
}

// Download records the outcome of one fetch attempt for a URL.
// At most one record exists per URL; a successful record is final.
type Download struct {
	URL       string    `json:"url"`
	Filename  string    `json:"filename,omitempty"` // Empty on failure
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
}

// Stats summarizes the ledger contents.
type Stats struct {
	Sources    int `json:"sources"`
	Pending    int `json:"pending"`
	Downloaded int `json:"downloaded"`
	Failed     int `json:"failed"`
}

// Ledger is the storage interface consumed by the scraper and fetcher.
// Implementations must be safe for concurrent use.
type Ledger interface {
	// AddSources records new URLs with pending status, skipping known ones.
	// Returns the number of URLs actually added.
	AddSources(ctx context.Context, urls []string) (int, error)
	// PendingSources returns sources without a successful download, oldest first.
	PendingSources(ctx context.Context) ([]*Source, error)
	// RecordDownload stores the outcome of a fetch attempt. A failed record
	// may be overwritten by a later attempt; a successful record is final.
	RecordDownload(ctx context.Context, url, filename string, success bool) error
	// GetDownload retrieves the download record for a URL.
	GetDownload(ctx context.Context, url string) (*Download, error)
	// IsDownloaded reports whether the URL has a successful download record.
	IsDownloaded(ctx context.Context, url string) (bool, error)
	// Stats summarizes the ledger contents.
	Stats(ctx context.Context) (Stats, error)
	// ClearFailed drops failed download records so their URLs become pending again.
	ClearFailed(ctx context.Context) (int, error)
	// MarkSource sets the status of a known source URL.
	MarkSource(ctx context.Context, url, status string) error

	// Close releases any resources held by the ledger.
	Close() error
}
