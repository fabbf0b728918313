// Package vibeflow is a content pipeline that scrapes short-video URLs,
// downloads them with yt-dlp, and uploads them to YouTube on a fixed
// daily schedule.
//
// Pipeline
//
// The pipeline runs in three stages, each usable on its own:
//
//   - scraper: harvest video URLs from a page into the source ledger
//   - fetcher: download pending URLs into the pending directory
//   - scheduler: upload pending videos at the configured slot times and
//     relocate them to the uploaded directory
//
// The vibeflow command exposes each stage as a subcommand (scrape,
// download, cycle, run) plus auth, status, quota, and serve.
//
// Configuration
//
// Settings load from multiple sources, later sources overriding earlier:
//
//   1. Built-in defaults
//   2. Config file (vibeflow.json or ~/.config/vibeflow/vibeflow.json)
//   3. Environment variables (VIBEFLOW_*)
//
// A .env file in the working directory is loaded before the environment
// is read.
//
// Crash Safety
//
// Every upload is journaled in the queue file before the video file is
// moved out of the pending directory. If the process dies between upload
// and relocation, the next cycle finishes the move instead of uploading
// the video a second time.
//
// Sub-packages:
//
//   - config: configuration management
//   - ledger: persistent source and download records
//   - store: pending video queue, upload journal, and relocation
//   - metadata: title, description, and tag generation
//   - youtube: Data API upload, quota probing, and OAuth
//   - scheduler: slot timetable and the upload cycle
//   - scraper, fetcher: URL harvesting and yt-dlp downloads
//   - api: dashboard HTTP API
//
// Dependencies
//
// vibeflow requires yt-dlp to be installed and available in PATH or
// specified via VIBEFLOW_YTDLP_PATH.
//
// Install yt-dlp: https://github.com/yt-dlp/yt-dlp
package vibeflow
