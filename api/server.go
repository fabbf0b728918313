// Package api exposes the pipeline over HTTP for the dashboard frontend:
// read-only status endpoints plus triggers for scrape, download, and upload
// cycles.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"vibeflow/fetcher"
	"vibeflow/ledger"
	"vibeflow/scheduler"
	"vibeflow/store"
	"vibeflow/youtube"
)

// Scraper triggers URL discovery.
type Scraper interface {
	Scrape(ctx context.Context, pageURL string) (int, error)
}

// Fetcher triggers downloads of pending sources.
type Fetcher interface {
	FetchAll(ctx context.Context) (fetcher.Stats, error)
}

// Cycler runs one upload cycle.
type Cycler interface {
	RunCycle(ctx context.Context) (scheduler.CycleResult, error)
}

// Config wires the server's dependencies.
type Config struct {
	Addr           string
	AllowedOrigins []string
	ScrapeURL      string

	Store     *store.Store
	Ledger    ledger.Ledger
	Publisher youtube.Publisher
	Scraper   Scraper
	Fetcher   Fetcher
	Cycler    Cycler
}

// Server is the dashboard HTTP server.
type Server struct {
	cfg Config
	srv *http.Server
}

// New builds the server and its routes.
func New(cfg Config) *Server {
	s := &Server{cfg: cfg}

	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)

	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      cors(s.Router()),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute, // cycle trigger waits for uploads
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Router returns the route table, exposed separately for tests.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/videos", s.handleVideos).Methods("GET")
	api.HandleFunc("/uploads", s.handleUploads).Methods("GET")
	api.HandleFunc("/quota", s.handleQuota).Methods("GET")
	api.HandleFunc("/scrape", s.handleScrape).Methods("POST")
	api.HandleFunc("/download", s.handleDownload).Methods("POST")
	api.HandleFunc("/cycle", s.handleCycle).Methods("POST")
	return r
}

// Run serves until the context is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		log.Printf("api: listening on %s", s.cfg.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Printf("api: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	pending, err := s.cfg.Store.List()
	if err != nil {
		writeError(w, err)
		return
	}
	uploaded, err := s.cfg.Store.Uploaded()
	if err != nil {
		writeError(w, err)
		return
	}
	stats, err := s.cfg.Ledger.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"pending":   len(pending),
		"uploaded":  len(uploaded),
		"journaled": len(s.cfg.Store.Journal()),
		"sources":   stats,
	})
}

func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Store.Scan(); err != nil {
		writeError(w, err)
		return
	}
	assets, err := s.cfg.Store.List()
	if err != nil {
		writeError(w, err)
		return
	}
	if assets == nil {
		assets = []store.Asset{}
	}
	writeJSON(w, http.StatusOK, assets)
}

func (s *Server) handleUploads(w http.ResponseWriter, r *http.Request) {
	uploaded, err := s.cfg.Store.Uploaded()
	if err != nil {
		writeError(w, err)
		return
	}
	if uploaded == nil {
		uploaded = []store.Asset{}
	}
	journal := s.cfg.Store.Journal()
	if journal == nil {
		journal = []store.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"uploaded":  uploaded,
		"journaled": journal,
	})
}

func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request) {
	status := s.cfg.Publisher.ProbeQuota(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"quota": status.String()})
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	// Optional body override of the configured page URL.
	var req struct {
		URL string `json:"url"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}
	pageURL := req.URL
	if pageURL == "" {
		pageURL = s.cfg.ScrapeURL
	}
	if pageURL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no scrape URL configured"})
		return
	}

	added, err := s.cfg.Scraper.Scrape(r.Context(), pageURL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"added": added})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	stats, err := s.cfg.Fetcher.FetchAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCycle(w http.ResponseWriter, r *http.Request) {
	res, err := s.cfg.Cycler.RunCycle(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	log.Printf("api: %v", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
