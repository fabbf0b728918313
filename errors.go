package vibeflow

import (
	"vibeflow/ledger"
	"vibeflow/youtube"
)

// Error types exported for embedders of the pipeline packages.
//
// All error types support the standard error handling patterns:
//
// Using errors.Is() for sentinel errors:
//
//	if errors.Is(err, youtube.ErrQuotaExceeded) {
//		fmt.Println("out of quota, try tomorrow")
//	}
//
// Using errors.As() for wrapped errors:
//
//	var pubErr *youtube.PublishError
//	if errors.As(err, &pubErr) {
//		fmt.Printf("publishing %s failed: %v\n", pubErr.File, pubErr.Err)
//	}

// Sentinels from sub-packages:
//
// From youtube:
//   - youtube.ErrQuotaExceeded: daily API quota exhausted
//   - youtube.ErrUploadLimit: channel upload limit reached
//
// From ledger:
//   - ledger.ErrNotFound: record not found
//   - ledger.ErrAlreadyExists: record already exists
//   - ledger.ErrCorrupt: data corruption detected
//   - ledger.ErrLockTimeout: file lock timeout
//
// From store:
//   - store.ErrNotFound: asset not in the pending queue
//   - store.ErrNotUploaded: relocation requested before upload
//   - store.ErrAlreadyUploaded: upload committed twice

// Type aliases for convenient error handling.
type (
	// PublishError wraps errors during YouTube uploads.
	PublishError = youtube.PublishError
	// StorageError wraps errors during ledger operations.
	StorageError = ledger.StorageError
)
