// Package loader opens a search index from wherever it was published.
package loader

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/physical-ai-textbook/textbook-search/internal/fetcher"
	"github.com/physical-ai-textbook/textbook-search/internal/index"
	"github.com/physical-ai-textbook/textbook-search/internal/storage"
)

// Loader resolves an index location: an http(s) URL, a SQLite mirror
// (".db") or a JSON artifact, optionally gzipped.
type Loader struct {
	Client *http.Client
	Logger *slog.Logger
}

// Open loads the index at location. Failures are *index.LoadError.
func (l *Loader) Open(ctx context.Context, location string) (*index.SearchIndex, error) {
	if location == "" {
		return nil, &index.LoadError{Source: location, Err: errors.New("no index location configured")}
	}
	lower := strings.ToLower(location)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		f := fetcher.New(l.Logger)
		if l.Client != nil {
			f.Client = l.Client
		}
		return f.FetchIndex(ctx, location)
	case strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"):
		return storage.LoadSQLite(ctx, location)
	default:
		return index.LoadFile(location)
	}
}

// OpenOrEmpty loads the index at location and falls back to an empty index
// when it cannot be loaded. The boolean reports whether the real index was
// loaded. Metadata that had to be recomputed is logged.
func (l *Loader) OpenOrEmpty(ctx context.Context, location string) (*index.SearchIndex, bool) {
	idx, err := l.Open(ctx, location)
	if err != nil {
		if l.Logger != nil {
			l.Logger.Warn("search index unavailable, serving empty index", "location", location, "error", err)
		}
		return index.Empty(), false
	}
	if idx.Repaired && l.Logger != nil {
		l.Logger.Warn("search index metadata was inconsistent and has been recomputed", "location", location)
	}
	if l.Logger != nil {
		l.Logger.Info("search index loaded", "location", location,
			"documents", idx.Metadata.TotalDocuments, "modules", len(idx.Metadata.Modules),
			"last_updated", idx.Metadata.LastUpdated)
	}
	return idx, true
}
