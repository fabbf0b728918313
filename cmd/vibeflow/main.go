// Command vibeflow runs the content pipeline: scrape video URLs, download
// them, and upload on the daily schedule.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"vibeflow/api"
	"vibeflow/config"
	"vibeflow/fetcher"
	"vibeflow/internal/httpx"
	"vibeflow/internal/retry"
	"vibeflow/ledger"
	"vibeflow/metadata"
	"vibeflow/scheduler"
	"vibeflow/scraper"
	"vibeflow/store"
	"vibeflow/youtube"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "auth":
		cmdAuth(args)
	case "scrape":
		cmdScrape(args)
	case "download":
		cmdDownload(args)
	case "cycle":
		cmdCycle(args)
	case "run":
		cmdRun(args)
	case "serve":
		cmdServe(args)
	case "status":
		cmdStatus(args)
	case "quota":
		cmdQuota(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `vibeflow - scrape, download, and schedule video uploads

Usage:
  vibeflow auth                    Run the OAuth flow and save the token
  vibeflow scrape [flags]          Harvest video URLs into the ledger
  vibeflow download                Download pending URLs into the pending dir
  vibeflow cycle                   Run one upload cycle now
  vibeflow run                     Run the scheduler loop (cycles at slot times)
  vibeflow serve [flags]           Start the dashboard HTTP API
  vibeflow status                  Show pipeline state
  vibeflow quota                   Probe remaining API quota
  vibeflow help                    Show this help message

Configuration is read from vibeflow.json (working directory or
~/.config/vibeflow/), overridden by VIBEFLOW_* environment variables.
A .env file in the working directory is honored.
`)
}

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fatal("load config: %v", err)
	}
	return cfg
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func openLedger(cfg *config.Config) *ledger.JSONLedger {
	led, err := ledger.NewJSONLedger(cfg.LedgerFile)
	if err != nil {
		fatal("open ledger: %v", err)
	}
	return led
}

func openStore(cfg *config.Config) *store.Store {
	st, err := store.New(cfg.PendingDir, cfg.UploadedDir, cfg.QueueFile)
	if err != nil {
		fatal("open content store: %v", err)
	}
	return st
}

func newPublisher(ctx context.Context, cfg *config.Config) *youtube.Service {
	ts, err := youtube.TokenSource(ctx, cfg.CredentialsFile, cfg.TokenFile)
	if err != nil {
		fatal("%v", err)
	}
	svc, err := youtube.NewService(ctx, ts, int64(cfg.ChunkSize))
	if err != nil {
		fatal("%v", err)
	}
	svc.RetryConfig = &retry.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		Multiplier:     cfg.BackoffMultiplier,
		JitterFraction: 0.2,
	}
	return svc
}

func newOrchestrator(ctx context.Context, cfg *config.Config, st *store.Store) *scheduler.Orchestrator {
	table, err := scheduler.ParseTimeTable(cfg.UploadTimes)
	if err != nil {
		fatal("%v", err)
	}

	gen := metadata.NewGenerator(cfg.BusinessEmail, cfg.DefaultTags, nil)
	pub := newPublisher(ctx, cfg)

	return scheduler.New(st, pub, gen, table, scheduler.Options{
		CategoryID:  cfg.CategoryID,
		Privacy:     cfg.Privacy,
		MadeForKids: cfg.MadeForKids,
	})
}

func cmdAuth(args []string) {
	cfg := loadConfig()
	ctx, cancel := signalContext()
	defer cancel()

	if err := youtube.Authorize(ctx, cfg.CredentialsFile, cfg.TokenFile, os.Stdin); err != nil {
		fatal("%v", err)
	}
}

func cmdScrape(args []string) {
	fs := flag.NewFlagSet("scrape", flag.ExitOnError)
	pageURL := fs.String("url", "", "Page to scrape (default: configured scrape URL)")
	fs.Parse(args)

	cfg := loadConfig()
	target := *pageURL
	if target == "" {
		target = cfg.ScrapeURL
	}
	if target == "" {
		fatal("no scrape URL configured (set scrape_url or pass --url)")
	}

	ctx, cancel := signalContext()
	defer cancel()

	led := openLedger(cfg)
	defer led.Close()

	s := scraper.New(httpx.New(nil), led, "")
	s.Target = cfg.ScrapeTarget
	added, err := s.Scrape(ctx, target)
	if err != nil {
		fatal("%v", err)
	}
	fmt.Printf("Added %d new URLs\n", added)
}

func cmdDownload(args []string) {
	cfg := loadConfig()
	ctx, cancel := signalContext()
	defer cancel()

	led := openLedger(cfg)
	defer led.Close()

	f := fetcher.New(cfg.PendingDir, led, cfg.YtdlpPath, cfg.YtdlpTimeout)
	if err := f.CheckInstalled(); err != nil {
		fatal("%v", err)
	}

	stats, err := f.FetchAll(ctx)
	if err != nil {
		fatal("%v", err)
	}
	fmt.Printf("Downloaded %d, failed %d, duplicates %d\n", stats.Succeeded, stats.Failed, stats.Duplicates)
}

func cmdCycle(args []string) {
	cfg := loadConfig()
	ctx, cancel := signalContext()
	defer cancel()

	st := openStore(cfg)
	defer st.Close()

	orch := newOrchestrator(ctx, cfg, st)
	res, err := orch.RunCycle(ctx)
	if err != nil {
		fatal("cycle: %v", err)
	}

	fmt.Printf("Uploaded %d, failed %d, recovered %d", res.Uploaded, res.Failed, res.Recovered)
	if res.Aborted {
		fmt.Printf(" (stopped early: quota exhausted)")
	}
	fmt.Println()
}

func cmdRun(args []string) {
	cfg := loadConfig()
	ctx, cancel := signalContext()
	defer cancel()

	st := openStore(cfg)
	defer st.Close()

	orch := newOrchestrator(ctx, cfg, st)
	if err := orch.Loop(ctx, cfg.PollInterval); err != nil && err != context.Canceled {
		fatal("scheduler: %v", err)
	}
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", ":8080", "Listen address")
	origins := fs.String("origins", "http://localhost:5173", "Allowed CORS origin")
	fs.Parse(args)

	cfg := loadConfig()
	ctx, cancel := signalContext()
	defer cancel()

	st := openStore(cfg)
	defer st.Close()
	led := openLedger(cfg)
	defer led.Close()

	pub := newPublisher(ctx, cfg)
	orch := newOrchestrator(ctx, cfg, st)
	f := fetcher.New(cfg.PendingDir, led, cfg.YtdlpPath, cfg.YtdlpTimeout)
	s := scraper.New(httpx.New(nil), led, "")
	s.Target = cfg.ScrapeTarget

	srv := api.New(api.Config{
		Addr:           *addr,
		AllowedOrigins: []string{*origins},
		ScrapeURL:      cfg.ScrapeURL,
		Store:          st,
		Ledger:         led,
		Publisher:      pub,
		Scraper:        s,
		Fetcher:        f,
		Cycler:         orch,
	})
	if err := srv.Run(ctx); err != nil {
		fatal("serve: %v", err)
	}
}

func cmdStatus(args []string) {
	cfg := loadConfig()
	ctx, cancel := signalContext()
	defer cancel()

	st := openStore(cfg)
	defer st.Close()
	led := openLedger(cfg)
	defer led.Close()

	if err := st.Scan(); err != nil {
		fatal("%v", err)
	}
	pending, err := st.List()
	if err != nil {
		fatal("%v", err)
	}
	uploaded, err := st.Uploaded()
	if err != nil {
		fatal("%v", err)
	}
	stats, err := led.Stats(ctx)
	if err != nil {
		fatal("%v", err)
	}
	journal := st.Journal()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Sources known:\t%d\n", stats.Sources)
	fmt.Fprintf(w, "Downloads pending:\t%d\n", stats.Pending)
	fmt.Fprintf(w, "Downloads done:\t%d\n", stats.Downloaded)
	fmt.Fprintf(w, "Downloads failed:\t%d\n", stats.Failed)
	fmt.Fprintf(w, "Videos pending upload:\t%d\n", len(pending))
	fmt.Fprintf(w, "Videos uploaded:\t%d\n", len(uploaded))
	fmt.Fprintf(w, "Awaiting relocation:\t%d\n", len(journal))
	w.Flush()

	if len(pending) > 0 {
		fmt.Println("\nNext uploads:")
		n := len(pending)
		if n > len(cfg.UploadTimes) {
			n = len(cfg.UploadTimes)
		}
		for i := 0; i < n; i++ {
			fmt.Printf("  %s -> slot %s\n", pending[i].Name, cfg.UploadTimes[i])
		}
	}
}

func cmdQuota(args []string) {
	cfg := loadConfig()
	ctx, cancel := signalContext()
	defer cancel()

	pub := newPublisher(ctx, cfg)

	start := time.Now()
	status := pub.ProbeQuota(ctx)
	fmt.Printf("Quota: %s (probe took %s)\n", status, time.Since(start).Round(time.Millisecond))
}
