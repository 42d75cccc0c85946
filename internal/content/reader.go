// Package content reads a Docusaurus docs tree and turns each Markdown or
// MDX file into an index.Unit.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/physical-ai-textbook/textbook-search/internal/index"
	"github.com/physical-ai-textbook/textbook-search/internal/transform"
)

// DefaultBaseURL is the route prefix Docusaurus serves the docs plugin on.
const DefaultBaseURL = "/docs"

const categoryFile = "_category_.json"

// Reader walks a content root. Top-level directories are modules; files at
// the root belong to RootModule.
type Reader struct {
	Root       string
	BaseURL    string
	RootModule string
	Logger     *slog.Logger
}

// Source is one entry found by Scan. Category is set when the entry stands
// for a module that has a _category_.json but no index page.
type Source struct {
	Path     string // slash-separated, relative to Root
	Module   string
	Category *Category
}

// Category is the subset of a Docusaurus _category_.json the index uses.
type Category struct {
	Label       string  `json:"label"`
	Position    float64 `json:"position"`
	Description string  `json:"description"`
	Link        *struct {
		Type        string `json:"type"`
		Slug        string `json:"slug"`
		Description string `json:"description"`
	} `json:"link"`
}

// Scan lists every source under Root in lexical walk order. Files and
// directories whose names start with "_" or "." are skipped, as Docusaurus
// does. An unreadable root is a BuildError.
func (r *Reader) Scan(ctx context.Context) ([]Source, error) {
	info, err := os.Stat(r.Root)
	if err != nil {
		return nil, &index.BuildError{Path: r.Root, Reason: "unreadable content root", Err: err}
	}
	if !info.IsDir() {
		return nil, &index.BuildError{Path: r.Root, Reason: "content root is not a directory"}
	}

	var sources []Source
	categories := map[string]*Category{}
	hasIndex := map[string]bool{}

	err = filepath.WalkDir(r.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(r.Root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		name := d.Name()

		if name == categoryFile && strings.Count(rel, "/") == 1 {
			cat, err := readCategory(p)
			if err != nil {
				return &index.BuildError{Path: rel, Reason: "parse category", Err: err}
			}
			categories[path.Dir(rel)] = cat
			return nil
		}
		if strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !transform.IsSource(name) {
			return nil
		}

		module := r.moduleOf(rel)
		if isModuleIndex(rel) {
			hasIndex[module] = true
		}
		sources = append(sources, Source{Path: rel, Module: module})
		return nil
	})
	if err != nil {
		var be *index.BuildError
		if errors.As(err, &be) {
			return nil, be
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &index.BuildError{Path: r.Root, Reason: "walk content root", Err: err}
	}

	return withCategories(sources, categories, hasIndex), nil
}

// withCategories inserts a module source for every category that has no
// index page, ahead of the first file of that module.
func withCategories(sources []Source, categories map[string]*Category, hasIndex map[string]bool) []Source {
	if len(categories) == 0 {
		return sources
	}
	out := make([]Source, 0, len(sources)+len(categories))
	added := map[string]bool{}
	for _, src := range sources {
		if cat, ok := categories[src.Module]; ok && !hasIndex[src.Module] && !added[src.Module] {
			out = append(out, Source{Path: src.Module + "/" + categoryFile, Module: src.Module, Category: cat})
			added[src.Module] = true
		}
		out = append(out, src)
	}
	return out
}

func (r *Reader) moduleOf(rel string) string {
	if i := strings.IndexByte(rel, '/'); i > 0 {
		return rel[:i]
	}
	return r.RootModule
}

func (r *Reader) baseURL() string {
	if r.BaseURL == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(r.BaseURL, "/")
}

func readCategory(p string) (*Category, error) {
	raw, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	var cat Category
	if err := json.Unmarshal(raw, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}
