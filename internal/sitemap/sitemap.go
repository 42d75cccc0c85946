// Package sitemap writes sitemap XML for every page in a search index.
package sitemap

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio"

	"github.com/physical-ai-textbook/textbook-search/internal/index"
	"github.com/physical-ai-textbook/textbook-search/internal/transform"
)

const maxSitemapURLs = 50000

const sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"

type sitemapURL struct {
	XMLName xml.Name `xml:"url"`
	Loc     string   `xml:"loc"`
	LastMod string   `xml:"lastmod,omitempty"`
}

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapIndex struct {
	XMLName  xml.Name          `xml:"sitemapindex"`
	XMLNS    string            `xml:"xmlns,attr"`
	Sitemaps []sitemapIndexRef `xml:"sitemap"`
}

type sitemapIndexRef struct {
	XMLName xml.Name `xml:"sitemap"`
	Loc     string   `xml:"loc"`
	LastMod string   `xml:"lastmod,omitempty"`
}

// Generator writes {Root}/sitemaps/: a static sitemap, one sitemap per
// module listing its documents, and a sitemap index over all of them.
type Generator struct {
	Root    string
	SiteURL string // e.g. "https://textbook.example.org"
	Logger  *slog.Logger
}

func (g *Generator) Generate(ctx context.Context, idx *index.SearchIndex) error {
	sitemapDir := filepath.Join(g.Root, "sitemaps")
	if err := os.MkdirAll(sitemapDir, 0o755); err != nil {
		return fmt.Errorf("create sitemaps dir: %w", err)
	}
	site := strings.TrimRight(g.SiteURL, "/")

	lastmod := idx.Metadata.LastUpdated.UTC().Format("2006-01-02")
	var indexRefs []sitemapIndexRef

	staticURLs := []sitemapURL{
		{Loc: site + "/", LastMod: lastmod},
		{Loc: site + "/search", LastMod: lastmod},
	}
	staticFile := "sitemap-static.xml"
	if err := writeSitemap(filepath.Join(sitemapDir, staticFile), staticURLs); err != nil {
		return fmt.Errorf("write static sitemap: %w", err)
	}
	indexRefs = append(indexRefs, sitemapIndexRef{Loc: site + "/sitemaps/" + staticFile, LastMod: lastmod})

	byModule := map[string][]sitemapURL{}
	seen := map[string]bool{}
	for _, doc := range idx.Documents {
		// Anchored URLs point into a page that is already listed.
		loc := site + strings.SplitN(doc.URL, "#", 2)[0]
		if seen[loc] {
			continue
		}
		seen[loc] = true
		byModule[doc.Module] = append(byModule[doc.Module], sitemapURL{Loc: loc, LastMod: lastmod})
	}

	for _, module := range idx.Metadata.Modules {
		if err := ctx.Err(); err != nil {
			return err
		}
		refs, err := g.writeModule(sitemapDir, site, module, byModule[module], lastmod)
		if err != nil {
			if g.Logger != nil {
				g.Logger.Warn("sitemap module error", "module", module, "error", err)
			}
			continue
		}
		indexRefs = append(indexRefs, refs...)
	}

	sitemaps := sitemapIndex{XMLNS: sitemapNS, Sitemaps: indexRefs}
	return writeXML(filepath.Join(sitemapDir, "sitemap-index.xml"), sitemaps)
}

func (g *Generator) writeModule(sitemapDir, site, module string, urls []sitemapURL, lastmod string) ([]sitemapIndexRef, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	name := transform.Slugify(module)
	if name == "" {
		name = "root"
	}

	var refs []sitemapIndexRef
	chunks := splitURLs(urls, maxSitemapURLs)
	for i, chunk := range chunks {
		filename := "sitemap-" + name
		if len(chunks) > 1 {
			filename = fmt.Sprintf("%s-%d", filename, i+1)
		}
		filename += ".xml"

		if err := writeSitemap(filepath.Join(sitemapDir, filename), chunk); err != nil {
			return nil, err
		}
		refs = append(refs, sitemapIndexRef{Loc: site + "/sitemaps/" + filename, LastMod: lastmod})
	}
	return refs, nil
}

func writeSitemap(path string, urls []sitemapURL) error {
	return writeXML(path, sitemapURLSet{XMLNS: sitemapNS, URLs: urls})
}

// writeXML replaces path atomically so a server never serves a partial
// sitemap.
func writeXML(path string, v any) error {
	f, err := renameio.TempFile("", path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Cleanup() }()

	if _, err := f.WriteString(xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if err := f.Chmod(0o644); err != nil {
		return err
	}
	return f.CloseAtomicallyReplace()
}

func splitURLs(urls []sitemapURL, maxPerFile int) [][]sitemapURL {
	if len(urls) <= maxPerFile {
		return [][]sitemapURL{urls}
	}
	var chunks [][]sitemapURL
	for i := 0; i < len(urls); i += maxPerFile {
		end := min(i+maxPerFile, len(urls))
		chunks = append(chunks, urls[i:end])
	}
	return chunks
}
