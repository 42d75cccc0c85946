// Package web serves the search API and the built site.
package web

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/physical-ai-textbook/textbook-search/internal/config"
	"github.com/physical-ai-textbook/textbook-search/internal/loader"
	"github.com/physical-ai-textbook/textbook-search/internal/search"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	location string
	loader   *loader.Loader

	state   atomic.Pointer[engineState]
	cache   *lru.Cache[string, []search.Result]
	limiter *rate.Limiter
}

// NewServer returns a server for the index at location, which may be a
// file path, a SQLite mirror or an http(s) URL. It serves an empty index
// until Reload succeeds.
func NewServer(cfg *config.Config, location string, logger *slog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		location: location,
		loader:   &loader.Loader{Logger: logger},
	}
	if cfg.Server.CacheSize > 0 {
		cache, err := lru.New[string, []search.Result](cfg.Server.CacheSize)
		if err != nil {
			logger.Warn("result cache disabled", "error", err)
		} else {
			s.cache = cache
		}
	}
	if cfg.Server.RateLimit > 0 {
		burst := cfg.Server.Burst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.Server.RateLimit), burst)
	}
	s.state.Store(emptyState(cfg.Search))
	return s
}

// Handler returns the full route table wrapped in logging and gzip
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/robots.txt", s.handleRobotsTxt)
	mux.HandleFunc("/llms.txt", s.handleLlmsTxt)
	mux.Handle("/api/search", s.rateLimit(http.HandlerFunc(s.handleSearch)))
	mux.Handle("/api/suggest", s.rateLimit(http.HandlerFunc(s.handleSuggest)))
	mux.Handle("/api/index/status", s.rateLimit(http.HandlerFunc(s.handleStatus)))
	mux.HandleFunc("/"+filepath.Base(s.cfg.IndexPath()), s.handleArtifact)
	sitemapDir := filepath.Join(s.cfg.OutputDir, "sitemaps")
	mux.Handle("/sitemaps/", http.StripPrefix("/sitemaps/", http.FileServer(http.Dir(sitemapDir))))
	mux.Handle("/", http.FileServer(http.Dir(s.cfg.PublicDir())))
	return s.logRequests(gzipHandler(mux))
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleArtifact serves the raw JSON index for clients that search
// locally, using the precompressed copy when the client accepts gzip.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	path := s.cfg.IndexPath()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Header().Add("Vary", "Accept-Encoding")
	if strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		if _, err := os.Stat(path + ".gz"); err == nil {
			w.Header().Set("Content-Encoding", "gzip")
			http.ServeFile(w, r, path+".gz")
			return
		}
	}
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "search index not built")
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) handleRobotsTxt(w http.ResponseWriter, _ *http.Request) {
	siteURL := s.cfg.SiteURL()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(w, `User-agent: *
Allow: /
Disallow: /api/
Disallow: /healthz

Sitemap: %s/sitemaps/sitemap-index.xml
`, siteURL)
}

func (s *Server) handleLlmsTxt(w http.ResponseWriter, _ *http.Request) {
	siteURL := s.cfg.SiteURL()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	_, _ = fmt.Fprintf(w, `# Physical AI & Humanoid Robotics Textbook

> An open textbook on embodied intelligence: robot foundations, kinematics, perception, control and humanoid systems.

## Content Structure

- %[1]s/docs/{module}/ — Module landing page
- %[1]s/docs/{module}/{chapter} — Chapter or section
- %[1]s/search?q={query} — Search across the textbook

## Modules

`, siteURL)

	meta := s.state.Load().engine.Metadata()
	for _, module := range meta.Modules {
		_, _ = fmt.Fprintf(w, "- %s/docs/%s\n", siteURL, module)
	}

	_, _ = fmt.Fprintf(w, `
## API

- GET /api/search?q={query}&limit={n}&fuzzy={0..1}&type={type}&module={module}
  Returns JSON with fields: loaded, total, results (array of {id, title, type, module, url, description, highlights, matches, score})
- GET /api/suggest?q={prefix}&limit={n}
  Returns JSON with field suggestions (array of terms)
- GET /%s
  The full search index for client-side search
`, filepath.Base(s.cfg.IndexPath()))
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.statusCode = http.StatusOK
		rw.written = true
	}
	return rw.ResponseWriter.Write(b)
}

// Flush implements http.Flusher, delegating to the underlying writer.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w}
		next.ServeHTTP(rw, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", filepath.Clean(r.URL.Path),
			"status", rw.statusCode,
			"duration", time.Since(start),
		)
	})
}

// gzipResponseWriter conditionally compresses responses for compressible content types.
type gzipResponseWriter struct {
	http.ResponseWriter
	gw      *gzip.Writer
	sniffed bool
}

func (grw *gzipResponseWriter) WriteHeader(code int) {
	if code != http.StatusNotModified {
		grw.sniff()
	}
	grw.ResponseWriter.WriteHeader(code)
}

func (grw *gzipResponseWriter) Write(b []byte) (int, error) {
	grw.sniff()
	if grw.gw != nil {
		return grw.gw.Write(b)
	}
	return grw.ResponseWriter.Write(b)
}

func (grw *gzipResponseWriter) sniff() {
	if grw.sniffed {
		return
	}
	grw.sniffed = true

	h := grw.ResponseWriter.Header()
	if h.Get("Content-Encoding") != "" {
		// Already encoded by the handler.
		grw.gw = nil
		return
	}
	ct := h.Get("Content-Type")
	if strings.HasPrefix(ct, "text/") ||
		strings.HasPrefix(ct, "application/json") ||
		strings.HasPrefix(ct, "application/xml") ||
		strings.HasPrefix(ct, "application/javascript") {
		h.Set("Content-Encoding", "gzip")
		h.Del("Content-Length")
	} else {
		grw.gw = nil
	}
}

func (grw *gzipResponseWriter) Flush() {
	if grw.gw != nil {
		_ = grw.gw.Flush()
	}
	if f, ok := grw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func gzipHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		gw := gzip.NewWriter(w)
		grw := &gzipResponseWriter{ResponseWriter: w, gw: gw}
		next.ServeHTTP(grw, r)
		if grw.gw != nil {
			_ = grw.gw.Close()
		}
	})
}

// parseIntQuery reads an integer parameter. Negative values are passed
// through for the engine to reject.
func parseIntQuery(r *http.Request, key string, fallback int) (int, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, &search.InvalidQueryError{Field: key, Reason: fmt.Sprintf("not an integer: %q", value)}
	}
	return parsed, nil
}

func parseFloatQuery(r *http.Request, key string) (float64, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, &search.InvalidQueryError{Field: key, Reason: fmt.Sprintf("not a number: %q", value)}
	}
	return parsed, nil
}
