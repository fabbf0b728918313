package youtube

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"vibeflow/internal/retry"
)

// Service publishes videos via the YouTube Data API v3.
type Service struct {
	svc       *youtube.Service
	chunkSize int64

	RetryConfig *retry.Config
}

// NewService creates a publisher backed by the real API. The token source
// must carry the youtube.upload scope.
func NewService(ctx context.Context, ts oauth2.TokenSource, chunkSize int64, opts ...option.ClientOption) (*Service, error) {
	if ts == nil {
		return nil, fmt.Errorf("youtube: token source required")
	}
	if chunkSize <= 0 {
		chunkSize = 1 << 20
	}

	allOpts := append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)
	svc, err := youtube.NewService(ctx, allOpts...)
	if err != nil {
		return nil, fmt.Errorf("youtube: create service: %w", err)
	}

	cfg := retry.DefaultConfig()
	return &Service{
		svc:         svc,
		chunkSize:   chunkSize,
		RetryConfig: &cfg,
	}, nil
}

// UploadScheduled uploads the file as a resumable upload and returns the new
// video ID. When req.PublishAt is set the video is created private with a
// publish time; otherwise req.Privacy applies immediately.
func (s *Service) UploadScheduled(ctx context.Context, req UploadRequest) (string, error) {
	f, err := os.Open(req.FilePath)
	if err != nil {
		return "", &PublishError{Op: "open", File: req.FilePath, Err: err}
	}
	defer f.Close()

	privacy := req.Privacy
	if privacy == "" {
		privacy = "private"
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       req.Title,
			Description: req.Description,
			Tags:        req.Tags,
			CategoryId:  req.CategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           privacy,
			MadeForKids:             req.MadeForKids,
			SelfDeclaredMadeForKids: req.MadeForKids,
		},
	}
	if !req.PublishAt.IsZero() {
		// Scheduled publishing requires the video to start private.
		video.Status.PrivacyStatus = "private"
		video.Status.PublishAt = req.PublishAt.UTC().Format(time.RFC3339)
	}

	call := s.svc.Videos.Insert([]string{"snippet", "status"}, video).
		Media(f, googleapi.ChunkSize(int(s.chunkSize))).
		Context(ctx)
	if req.OnProgress != nil {
		call = call.ProgressUpdater(func(current, total int64) {
			req.OnProgress(current, total)
		})
	}

	name := filepath.Base(req.FilePath)
	log.Printf("youtube: uploading %s (%q)", name, req.Title)

	resp, err := call.Do()
	if err != nil {
		switch {
		case isQuotaError(err):
			err = fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		case isUploadLimitError(err):
			err = fmt.Errorf("%w: %v", ErrUploadLimit, err)
		}
		return "", &PublishError{Op: "upload", File: name, Err: err}
	}

	log.Printf("youtube: uploaded %s as video %s", name, resp.Id)
	return resp.Id, nil
}

// ProbeQuota issues a one-unit Channels.List call for the authorized channel.
// Success means quota remains; a quota error means it is spent; anything
// else is inconclusive and reported as unknown.
func (s *Service) ProbeQuota(ctx context.Context) QuotaStatus {
	cfg := s.RetryConfig
	if cfg == nil {
		defaultCfg := retry.DefaultConfig()
		cfg = &defaultCfg
	}

	err := retry.Do(ctx, *cfg, apiErrorClassifier, func(ctx context.Context) error {
		_, err := s.svc.Channels.List([]string{"id"}).Mine(true).Context(ctx).Do()
		return err
	})
	switch {
	case err == nil:
		return QuotaAvailable
	case isQuotaError(err):
		log.Printf("youtube: quota probe reports exhaustion: %v", err)
		return QuotaExhausted
	default:
		log.Printf("youtube: quota probe inconclusive: %v", err)
		return QuotaUnknown
	}
}
