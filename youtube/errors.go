package youtube

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"
)

// Sentinel errors for upload failures.
var (
	// ErrQuotaExceeded indicates the daily API quota is spent.
	ErrQuotaExceeded = errors.New("youtube: quota exceeded")
	// ErrUploadLimit indicates the channel hit its upload limit.
	ErrUploadLimit = errors.New("youtube: upload limit reached")
)

// PublishError wraps upload failures with the file they concern.
type PublishError struct {
	Op   string
	File string
	Err  error
}

func (e *PublishError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("youtube: %s %s: %v", e.Op, e.File, e.Err)
	}
	return fmt.Sprintf("youtube: %s: %v", e.Op, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// quotaReasons are googleapi error reasons that mean the daily quota is gone.
var quotaReasons = map[string]bool{
	"quotaExceeded":      true,
	"dailyLimitExceeded": true,
}

// isQuotaError reports whether err means the daily quota is exhausted.
// rateLimitExceeded is deliberately excluded: it is transient and retryable.
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrQuotaExceeded) {
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		for _, e := range apiErr.Errors {
			if quotaReasons[e.Reason] {
				return true
			}
		}
	}

	// Some failures surface only as text, keep the string check as backstop.
	return strings.Contains(err.Error(), "quotaExceeded")
}

// isUploadLimitError reports whether the channel cannot accept more uploads
// today. Distinct from quota: the API key still works for reads.
func isUploadLimitError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUploadLimit) {
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		for _, e := range apiErr.Errors {
			if e.Reason == "uploadLimitExceeded" {
				return true
			}
		}
	}
	return strings.Contains(err.Error(), "uploadLimitExceeded")
}

// apiErrorClassifier decides whether an API error is worth retrying.
// Quota and upload-limit failures will not clear within a retry window.
func apiErrorClassifier(err error) bool {
	if err == nil {
		return false
	}
	if isQuotaError(err) || isUploadLimitError(err) {
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code >= 500 || apiErr.Code == 429 {
			return true
		}
		for _, e := range apiErr.Errors {
			if e.Reason == "rateLimitExceeded" || e.Reason == "backendError" {
				return true
			}
		}
		return false
	}

	// Network-level errors default to retryable.
	return true
}
