// Package api exposes scanning over HTTP: callers post a listing URL or
// an HTML snapshot and get the scan result back.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/IshaanNene/dealscout/internal/config"
	"github.com/IshaanNene/dealscout/internal/dom"
	"github.com/IshaanNene/dealscout/internal/observability"
	"github.com/IshaanNene/dealscout/internal/parser"
	"github.com/IshaanNene/dealscout/internal/rank"
	"github.com/IshaanNene/dealscout/internal/scan"
	"github.com/IshaanNene/dealscout/internal/storage"
	"github.com/IshaanNene/dealscout/internal/types"
)

const maxRecentScans = 100

// SourceOpener loads a listing URL as a card source.
type SourceOpener interface {
	Open(ctx context.Context, rawURL string) (dom.Source, error)
}

// Server provides a REST API for running scans.
type Server struct {
	mux     *http.ServeMux
	port    int
	maxBody int64
	logger  *slog.Logger

	scanner *scan.Scanner
	opts    scan.Options
	opener  SourceOpener
	store   storage.Storage
	metrics *observability.Metrics

	// recent scans by ID, oldest first in order
	recent   map[string]*types.ScanResult
	order    []string
	recentMu sync.RWMutex
}

// ScanRequest is the body of POST /api/scan. Exactly one of URL or HTML
// must be set.
type ScanRequest struct {
	URL      string `json:"url,omitempty"`
	HTML     string `json:"html,omitempty"`
	BaseURL  string `json:"base_url,omitempty"`
	RankMode string `json:"rank_mode,omitempty"`
	Profile  string `json:"profile,omitempty"`
	WaitMS   *int   `json:"wait_ms,omitempty"`
	Embedded *bool  `json:"embedded,omitempty"`
}

// NewServer creates a new API server. opener, store and metrics may be nil.
func NewServer(cfg config.APIConfig, scanner *scan.Scanner, opts scan.Options, opener SourceOpener, store storage.Storage, metrics *observability.Metrics, logger *slog.Logger) *Server {
	s := &Server{
		mux:     http.NewServeMux(),
		port:    cfg.Port,
		maxBody: cfg.MaxBodySize,
		logger:  logger.With("component", "api_server"),
		scanner: scanner,
		opts:    opts,
		opener:  opener,
		store:   store,
		metrics: metrics,
		recent:  make(map[string]*types.ScanResult),
	}

	s.registerRoutes()
	return s
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves the API until ctx is cancelled.
func (s *Server) Start(ctx context.Context) *http.Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server starting", "addr", srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return srv
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/profiles", s.handleProfiles)
	s.mux.HandleFunc("POST /api/scan", s.handleScan)
	s.mux.HandleFunc("GET /api/scans", s.handleListScans)
	s.mux.HandleFunc("GET /api/scans/{id}", s.handleGetScan)
	if s.metrics != nil {
		s.mux.Handle("GET /api/metrics", s.metrics)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": config.Version,
	})
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	ps := s.scanner.Profiles()
	out := make([]*parser.Profile, 0, len(ps.IDs()))
	for _, id := range ps.IDs() {
		p, _ := ps.Get(id)
		out = append(out, p)
	}
	s.jsonResponse(w, http.StatusOK, out)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if s.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	}
	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	opts, err := s.options(&req)
	if err != nil {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var res *types.ScanResult
	switch {
	case req.HTML != "" && req.URL != "":
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "set url or html, not both"})
		return
	case req.HTML != "":
		res = s.scanSnapshot(r.Context(), &req, opts)
	case req.URL != "":
		if err := config.ValidateURL(req.URL); err != nil {
			s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if s.opener == nil {
			s.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"error": "page loading not configured"})
			return
		}
		res = s.scanURL(r.Context(), req.URL, opts)
	default:
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "url or html is required"})
		return
	}

	s.remember(res)
	if s.store != nil {
		if err := s.store.Store(res); err != nil {
			s.logger.Error("store failed", "scan_id", res.ID, "error", err)
		}
	}
	// a failed scan is still a well-formed answer
	s.jsonResponse(w, http.StatusOK, res)
}

func (s *Server) options(req *ScanRequest) (scan.Options, error) {
	opts := s.opts
	if req.RankMode != "" {
		mode, err := rank.ParseMode(req.RankMode)
		if err != nil {
			return opts, err
		}
		opts.RankMode = mode
	}
	if req.WaitMS != nil {
		if *req.WaitMS < 0 {
			return opts, fmt.Errorf("wait_ms must be >= 0")
		}
		opts.WaitTimeout = time.Duration(*req.WaitMS) * time.Millisecond
	}
	if req.Embedded != nil {
		opts.EmbeddedFallback = *req.Embedded
	}
	if req.Profile != "" {
		p, ok := s.scanner.Profiles().Get(req.Profile)
		if !ok {
			return opts, fmt.Errorf("unknown profile %q", req.Profile)
		}
		opts.Profile = p
	}
	return opts, nil
}

func (s *Server) scanSnapshot(ctx context.Context, req *ScanRequest, opts scan.Options) *types.ScanResult {
	src, err := dom.NewDocumentSource(types.NewSnapshotResponse(req.BaseURL, []byte(req.HTML)), s.logger)
	if err != nil {
		return types.Failed(uuid.NewString(), req.BaseURL, err.Error())
	}
	opts.WaitTimeout = 0
	return s.scanner.Scan(ctx, src, opts)
}

func (s *Server) scanURL(ctx context.Context, rawURL string, opts scan.Options) *types.ScanResult {
	src, err := s.opener.Open(ctx, rawURL)
	if err != nil {
		return types.Failed(uuid.NewString(), rawURL, err.Error())
	}
	if c, ok := src.(interface{ Close() error }); ok {
		defer c.Close()
	}
	return s.scanner.Scan(ctx, src, opts)
}

func (s *Server) remember(res *types.ScanResult) {
	s.recentMu.Lock()
	defer s.recentMu.Unlock()

	s.recent[res.ID] = res
	s.order = append(s.order, res.ID)
	if len(s.order) > maxRecentScans {
		delete(s.recent, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	s.recentMu.RLock()
	defer s.recentMu.RUnlock()

	type summary struct {
		ID        string    `json:"id"`
		URL       string    `json:"url"`
		OK        bool      `json:"ok"`
		Records   int       `json:"records"`
		StartedAt time.Time `json:"startedAt"`
	}
	out := make([]summary, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		res := s.recent[s.order[i]]
		out = append(out, summary{ID: res.ID, URL: res.URL, OK: res.OK, Records: len(res.Records), StartedAt: res.StartedAt})
	}
	s.jsonResponse(w, http.StatusOK, out)
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.recentMu.RLock()
	res, ok := s.recent[id]
	s.recentMu.RUnlock()

	if !ok {
		s.jsonResponse(w, http.StatusNotFound, map[string]string{"error": "scan not found"})
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
