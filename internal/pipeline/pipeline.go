// Package pipeline runs an index build: read the content tree, parse every
// file, build the index and hand it to each storage sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/physical-ai-textbook/textbook-search/internal/content"
	"github.com/physical-ai-textbook/textbook-search/internal/index"
	"github.com/physical-ai-textbook/textbook-search/internal/sitemap"
	"github.com/physical-ai-textbook/textbook-search/internal/storage"
)

type Runner struct {
	Reader  *content.Reader
	Builder *index.Builder
	// Sinks[0] is the published artifact. The others are mirrors and are
	// written first, so a failed mirror leaves the previous artifact live.
	Sinks            []storage.Sink
	SitemapGenerator *sitemap.Generator
	// Lock, when set, is held for the whole run.
	Lock    *storage.BuildLock
	Logger  *slog.Logger
	Workers int
}

type parsed struct {
	unit index.Unit
	ok   bool
}

// Run builds the index once. A BuildError from any unit stops the build
// before anything is written.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if r.Reader == nil || r.Builder == nil || len(r.Sinks) == 0 {
		return nil, errors.New("pipeline runner missing dependencies")
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	started := time.Now()

	if r.Lock != nil {
		if err := r.Lock.TryLock(); err != nil {
			return nil, err
		}
		defer func() { _ = r.Lock.Unlock() }()
	}

	logger.Info("scanning content", "root", r.Reader.Root)
	sources, err := r.Reader.Scan(ctx)
	if err != nil {
		return nil, err
	}

	results, err := r.parseAll(ctx, sources)
	if err != nil {
		return nil, err
	}

	units := make([]index.Unit, 0, len(results))
	drafts := 0
	for _, res := range results {
		if !res.ok {
			drafts++
			continue
		}
		units = append(units, res.unit)
	}

	idx, err := r.Builder.Build(units)
	if err != nil {
		return nil, err
	}
	logger.Info("index built", "documents", idx.Metadata.TotalDocuments, "modules", len(idx.Metadata.Modules), "drafts", drafts)

	if err := r.write(ctx, idx); err != nil {
		return nil, err
	}

	if r.SitemapGenerator != nil {
		if err := r.SitemapGenerator.Generate(ctx, idx); err != nil {
			logger.Error("sitemap generation failed", "error", err)
			// Non-fatal: the index is already published.
		}
	}

	return &Report{
		Sources:   len(sources),
		Documents: idx.Metadata.TotalDocuments,
		Drafts:    drafts,
		Modules:   idx.Metadata.Modules,
		BuildID:   idx.Metadata.BuildID,
		Duration:  time.Since(started),
	}, nil
}

// parseAll parses sources on a bounded worker pool. Results keep walk
// order so the index is deterministic.
func (r *Runner) parseAll(ctx context.Context, sources []content.Source) ([]parsed, error) {
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]parsed, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, src := range sources {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			unit, ok, err := r.Reader.Parse(src)
			if err != nil {
				return err
			}
			results[i] = parsed{unit: unit, ok: ok}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// write hands idx to the mirrors, then to the primary sink, and closes
// them all. The primary is skipped once any write fails. The first failure
// is returned after every sink has been closed.
func (r *Runner) write(ctx context.Context, idx *index.SearchIndex) error {
	order := make([]int, 0, len(r.Sinks))
	for i := 1; i < len(r.Sinks); i++ {
		order = append(order, i)
	}
	order = append(order, 0)

	var firstErr error
	for _, i := range order {
		sink := r.Sinks[i]
		if firstErr == nil {
			if err := sink.WriteIndex(ctx, idx); err != nil {
				firstErr = fmt.Errorf("write index (sink %d): %w", i, err)
			}
		}
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close sink %d: %w", i, err)
		}
	}
	return firstErr
}
