package web

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/physical-ai-textbook/textbook-search/internal/index"
	"github.com/physical-ai-textbook/textbook-search/internal/search"
)

const reloadDebounce = 250 * time.Millisecond

// engineState is swapped as a whole so a request never sees an engine
// paired with another build's loaded flag or generation.
type engineState struct {
	engine *search.Engine
	loaded bool
	gen    uint64
}

func emptyState(cfg search.Config) *engineState {
	engine, err := search.New(index.Empty(), cfg)
	if err != nil {
		// The config was validated on load; fall back to defaults.
		engine, _ = search.New(index.Empty(), search.DefaultConfig())
	}
	return &engineState{engine: engine}
}

// Reload loads the index again and swaps the engine. When a previous load
// succeeded and this one fails, the previous engine stays in place.
// It reports whether the served index is a loaded one.
func (s *Server) Reload(ctx context.Context) bool {
	idx, loaded := s.loader.OpenOrEmpty(ctx, s.location)
	prev := s.state.Load()
	if !loaded && prev.loaded {
		s.logger.Warn("keeping previously loaded search index", "location", s.location)
		return true
	}

	engine, err := search.New(idx, s.cfg.Search)
	if err != nil {
		s.logger.Error("search engine rejected config", "error", err)
		return prev.loaded
	}
	next := &engineState{engine: engine, loaded: loaded, gen: prev.gen + 1}
	s.state.Store(next)
	if s.cache != nil {
		s.cache.Purge()
	}
	return loaded
}

// Watch reloads the index whenever the artifact in its directory is
// replaced. It blocks until ctx is done. Remote locations are not watched.
func (s *Server) Watch(ctx context.Context) error {
	if strings.Contains(s.location, "://") {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(s.location)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	name := filepath.Base(s.location)
	s.logger.Info("watching search index", "path", s.location)

	timer := time.NewTimer(reloadDebounce)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename) {
				timer.Reset(reloadDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("index watcher error", "error", err)
		case <-timer.C:
			if s.Reload(ctx) {
				meta := s.state.Load().engine.Metadata()
				s.logger.Info("search index reloaded", "documents", meta.TotalDocuments, "build_id", meta.BuildID)
			}
		}
	}
}
