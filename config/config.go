// Package config manages application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration for the scrape/download/upload
// pipeline. It is constructed once and passed explicitly into components;
// there is no ambient global state.
type Config struct {
	// PendingDir is the directory holding downloaded, not-yet-uploaded videos.
	PendingDir string `json:"pending_dir"`
	// UploadedDir is the directory where videos land after a confirmed upload.
	UploadedDir string `json:"uploaded_dir"`
	// QueueFile is the content-store state file (discovery order + upload journal).
	QueueFile string `json:"queue_file"`
	// LedgerFile is the scraped-URL and download ledger state file.
	LedgerFile string `json:"ledger_file"`

	// UploadTimes is the ordered daily time table, entries in 24h "HH:MM".
	// One slot schedules at most one video per cycle.
	UploadTimes []string `json:"upload_times"`
	// PollInterval is how often the scheduler loop checks the clock.
	PollInterval time.Duration `json:"poll_interval"`

	// CategoryID is the YouTube category assigned to uploads.
	CategoryID string `json:"category_id"`
	// Privacy is the privacy status for immediate uploads ("public", "private", "unlisted").
	// Scheduled uploads always start private and flip at publish time.
	Privacy string `json:"privacy"`
	// MadeForKids sets the self-declared made-for-kids flag.
	MadeForKids bool `json:"made_for_kids"`
	// BusinessEmail is embedded in generated descriptions.
	BusinessEmail string `json:"business_email"`
	// DefaultTags seed the generated tag set.
	DefaultTags []string `json:"default_tags"`
	// ChunkSize is the resumable upload chunk size in bytes.
	ChunkSize int `json:"chunk_size"`

	// CredentialsFile is the OAuth client secret JSON.
	CredentialsFile string `json:"credentials_file"`
	// TokenFile stores the OAuth token between runs.
	TokenFile string `json:"token_file"`

	// ScrapeURL is the page the scraper harvests video URLs from.
	ScrapeURL string `json:"scrape_url"`
	// ScrapeTarget is how many new URLs a scrape run aims for.
	ScrapeTarget int `json:"scrape_target"`

	// YtdlpPath is the path to the yt-dlp executable (default: "yt-dlp").
	YtdlpPath string `json:"ytdlp_path"`
	// YtdlpTimeout is the maximum time to wait for one download.
	YtdlpTimeout time.Duration `json:"ytdlp_timeout"`

	// MaxRetries is the maximum number of retries for failed operations.
	MaxRetries int `json:"max_retries"`
	// InitialBackoff is the initial backoff duration for retries.
	InitialBackoff time.Duration `json:"initial_backoff"`
	// MaxBackoff is the maximum backoff duration for retries.
	MaxBackoff time.Duration `json:"max_backoff"`
	// BackoffMultiplier is the multiplier for exponential backoff (must be > 1).
	BackoffMultiplier float64 `json:"backoff_multiplier"`
}

// DefaultConfig returns configuration with safe defaults.
func DefaultConfig() *Config {
	return &Config{
		PendingDir:  "videos",
		UploadedDir: "uploaded",
		QueueFile:   "queue.json",
		LedgerFile:  "ledger.json",

		UploadTimes:  []string{"14:00", "15:30", "18:00", "20:00", "21:30"},
		PollInterval: 30 * time.Second,

		CategoryID:    "22", // People & Blogs
		Privacy:       "public",
		MadeForKids:   false,
		BusinessEmail: "",
		DefaultTags: []string{
			"viral", "trending", "entertainment", "amazing", "incredible",
			"must watch", "fyp", "for you", "content", "video",
		},
		ChunkSize: 1 << 20, // 1 MiB

		CredentialsFile: "credentials.json",
		TokenFile:       "token.json",

		ScrapeTarget: 20,

		YtdlpPath:    "yt-dlp",
		YtdlpTimeout: 10 * time.Minute,

		MaxRetries:        5,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Load loads configuration from environment variables, config file, and applies
// defaults. Priority: env vars > config file > defaults. A .env file in the
// working directory is folded into the environment first.
func Load() (*Config, error) {
	// Missing .env is fine; env vars may come from the shell or the deployment.
	godotenv.Load()

	cfg := DefaultConfig()

	if err := cfg.loadFromFile(); err != nil {
		// Config file is optional
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile attempts to load config from vibeflow.json in the current
// directory or the user config directory.
func (c *Config) loadFromFile() error {
	paths := []string{
		"vibeflow.json",
		filepath.Join(os.Getenv("HOME"), ".config", "vibeflow", "vibeflow.json"),
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}

		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		return nil
	}

	return os.ErrNotExist
}

// loadFromEnv overrides config with environment variables.
func (c *Config) loadFromEnv() {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setString("VIBEFLOW_PENDING_DIR", &c.PendingDir)
	setString("VIBEFLOW_UPLOADED_DIR", &c.UploadedDir)
	setString("VIBEFLOW_QUEUE_FILE", &c.QueueFile)
	setString("VIBEFLOW_LEDGER_FILE", &c.LedgerFile)
	setString("VIBEFLOW_CATEGORY_ID", &c.CategoryID)
	setString("VIBEFLOW_PRIVACY", &c.Privacy)
	setString("VIBEFLOW_BUSINESS_EMAIL", &c.BusinessEmail)
	setString("VIBEFLOW_CREDENTIALS_FILE", &c.CredentialsFile)
	setString("VIBEFLOW_TOKEN_FILE", &c.TokenFile)
	setString("VIBEFLOW_SCRAPE_URL", &c.ScrapeURL)
	setString("VIBEFLOW_YTDLP_PATH", &c.YtdlpPath)

	setDuration("VIBEFLOW_POLL_INTERVAL", &c.PollInterval)
	setDuration("VIBEFLOW_YTDLP_TIMEOUT", &c.YtdlpTimeout)
	setDuration("VIBEFLOW_INITIAL_BACKOFF", &c.InitialBackoff)
	setDuration("VIBEFLOW_MAX_BACKOFF", &c.MaxBackoff)

	setInt("VIBEFLOW_CHUNK_SIZE", &c.ChunkSize)
	setInt("VIBEFLOW_SCRAPE_TARGET", &c.ScrapeTarget)
	setInt("VIBEFLOW_MAX_RETRIES", &c.MaxRetries)

	if v := os.Getenv("VIBEFLOW_UPLOAD_TIMES"); v != "" {
		var times []string
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				times = append(times, t)
			}
		}
		if len(times) > 0 {
			c.UploadTimes = times
		}
	}
	if v := os.Getenv("VIBEFLOW_MADE_FOR_KIDS"); v != "" {
		c.MadeForKids = v == "true" || v == "1"
	}
	if v := os.Getenv("VIBEFLOW_DEFAULT_TAGS"); v != "" {
		var tags []string
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
		if len(tags) > 0 {
			c.DefaultTags = tags
		}
	}
}

// Validate checks that configuration values are valid and consistent.
func (c *Config) Validate() error {
	if c.PendingDir == "" {
		return fmt.Errorf("pending_dir must not be empty")
	}
	if c.UploadedDir == "" {
		return fmt.Errorf("uploaded_dir must not be empty")
	}
	if c.PendingDir == c.UploadedDir {
		return fmt.Errorf("pending_dir and uploaded_dir must differ")
	}
	if len(c.UploadTimes) == 0 {
		return fmt.Errorf("upload_times must not be empty")
	}
	for _, s := range c.UploadTimes {
		if _, err := time.Parse("15:04", s); err != nil {
			return fmt.Errorf("upload_times entry %q: want 24h HH:MM", s)
		}
	}
	switch c.Privacy {
	case "public", "private", "unlisted":
	default:
		return fmt.Errorf("privacy must be public, private or unlisted, got %q", c.Privacy)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive")
	}
	if c.ScrapeTarget < 0 {
		return fmt.Errorf("scrape_target must be non-negative")
	}
	if c.YtdlpTimeout <= 0 {
		return fmt.Errorf("ytdlp_timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	if c.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff must be positive")
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("max_backoff must be >= initial_backoff")
	}
	if c.BackoffMultiplier <= 1 {
		return fmt.Errorf("backoff_multiplier must be > 1")
	}
	return nil
}
