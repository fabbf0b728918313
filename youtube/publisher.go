// Package youtube uploads videos through the YouTube Data API v3 and probes
// the daily quota before each upload batch.
package youtube

import (
	"context"
	"time"
)

// QuotaStatus is the result of a quota probe.
type QuotaStatus int

const (
	// QuotaUnknown means the probe could not decide either way. Callers
	// proceed and let individual uploads fail if quota really is gone.
	QuotaUnknown QuotaStatus = iota
	// QuotaAvailable means the probe call succeeded.
	QuotaAvailable
	// QuotaExhausted means the API reported the daily quota as spent.
	QuotaExhausted
)

func (q QuotaStatus) String() string {
	switch q {
	case QuotaAvailable:
		return "available"
	case QuotaExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// UploadRequest describes one video upload.
type UploadRequest struct {
	// FilePath is the local video file to upload.
	FilePath string
	Title    string
	Description string
	Tags        []string
	// CategoryID is the numeric YouTube category, e.g. "22".
	CategoryID string
	// Privacy is "public", "private", or "unlisted". Ignored when
	// PublishAt is set: scheduled videos must start private.
	Privacy     string
	MadeForKids bool
	// PublishAt schedules the video. Zero means publish per Privacy now.
	PublishAt time.Time
	// OnProgress, when non-nil, receives resumable upload progress.
	OnProgress func(uploaded, total int64)
}

// Publisher is the remote video platform as seen by the upload cycle.
type Publisher interface {
	// UploadScheduled uploads the file and returns the platform video ID.
	UploadScheduled(ctx context.Context, req UploadRequest) (string, error)
	// ProbeQuota makes a cheap API call to test whether quota remains.
	ProbeQuota(ctx context.Context) QuotaStatus
}
