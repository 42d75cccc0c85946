package content

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/physical-ai-textbook/textbook-search/internal/index"
	"github.com/physical-ai-textbook/textbook-search/internal/transform"
)

// numberPrefix is the ordering prefix Docusaurus strips from URL segments,
// e.g. "02-kinematics" -> "kinematics".
var numberPrefix = regexp.MustCompile(`^\d+[-_. ]+`)

// indexNames mark the landing page of a directory.
var indexNames = map[string]bool{"index": true, "intro": true, "readme": true}

// Parse turns a source into a unit. It returns false for drafts, which are
// not indexed. Read and parse failures are BuildErrors naming the source.
func (r *Reader) Parse(src Source) (index.Unit, bool, error) {
	if src.Category != nil {
		return r.categoryUnit(src), true, nil
	}

	raw, err := os.ReadFile(filepath.Join(r.Root, filepath.FromSlash(src.Path)))
	if err != nil {
		return index.Unit{}, false, &index.BuildError{Path: src.Path, Reason: "unreadable source", Err: err}
	}
	doc, err := transform.Pipeline(src.Path, raw)
	if err != nil {
		return index.Unit{}, false, &index.BuildError{Path: src.Path, Reason: "parse source", Err: err}
	}
	if doc.Meta.Draft {
		if r.Logger != nil {
			r.Logger.Info("skipping draft", "path", src.Path)
		}
		return index.Unit{}, false, nil
	}

	module := src.Module
	if m := strings.TrimSpace(doc.Meta.Module); m != "" {
		module = m
	}

	docType := inferType(src.Path)
	if t := strings.TrimSpace(doc.Meta.Type); t != "" {
		// An unknown value is passed through so the builder rejects it.
		docType = index.DocType(strings.ToLower(t))
	}

	keywords := make([]string, 0, len(doc.Meta.Keywords)+len(doc.Meta.Tags))
	keywords = append(keywords, doc.Meta.Keywords...)
	keywords = append(keywords, doc.Meta.Tags...)

	return index.Unit{
		Path:               src.Path,
		ID:                 docID(src.Path, doc.Meta.ID),
		Title:              doc.Title,
		Description:        doc.Desc,
		Type:               docType,
		Module:             module,
		URL:                r.docURL(src.Path, doc.Meta.Slug),
		Headings:           doc.Headings,
		Body:               doc.Text,
		Keywords:           keywords,
		LearningObjectives: doc.Meta.LearningObjectives,
	}, true, nil
}

func (r *Reader) categoryUnit(src Source) index.Unit {
	cat := src.Category
	title := strings.TrimSpace(cat.Label)
	if title == "" {
		title = src.Module
	}
	desc := cat.Description
	url := r.baseURL() + "/" + stripNumberPrefixes(src.Module)
	if cat.Link != nil {
		if cat.Link.Description != "" {
			desc = cat.Link.Description
		}
		if cat.Link.Slug != "" {
			url = r.baseURL() + "/" + strings.Trim(cat.Link.Slug, "/")
		}
	}
	return index.Unit{
		Path:        src.Path,
		ID:          transform.Slugify(src.Module) + "-intro",
		Title:       title,
		Description: desc,
		Type:        index.TypeModule,
		Module:      src.Module,
		URL:         url,
	}
}

// inferType derives a document type from where the file sits: the landing
// page of a module is the module, files directly in a module are chapters,
// anything deeper is a section. Exercise and resource directories win.
func inferType(rel string) index.DocType {
	segments := strings.Split(rel, "/")
	base := strings.ToLower(transform.TrimSourceExt(segments[len(segments)-1]))
	for _, seg := range segments {
		seg = strings.ToLower(numberPrefix.ReplaceAllString(transform.TrimSourceExt(seg), ""))
		switch {
		case strings.HasPrefix(seg, "exercise"):
			return index.TypeExercise
		case seg == "resources" || seg == "references" || seg == "glossary":
			return index.TypeResource
		}
	}
	switch {
	case len(segments) == 2 && indexNames[base]:
		return index.TypeModule
	case len(segments) <= 2:
		return index.TypeChapter
	case len(segments) == 3 && indexNames[base]:
		return index.TypeChapter
	default:
		return index.TypeSection
	}
}

func isModuleIndex(rel string) bool {
	return inferType(rel) == index.TypeModule
}

// docID qualifies the front matter id (or file name) with its directory so
// ids stay unique across modules. Landing pages become "<dir>-intro".
func docID(rel, metaID string) string {
	dir := path.Dir(rel)
	name := strings.TrimSpace(metaID)
	if name == "" {
		name = transform.TrimSourceExt(path.Base(rel))
	}
	if indexNames[strings.ToLower(name)] {
		name = "intro"
	}
	if dir == "." {
		return transform.Slugify(name)
	}
	return transform.Slugify(dir + "-" + name)
}

// docURL follows Docusaurus routing: a slug in front matter wins, landing
// pages map to their directory and ordering prefixes are dropped.
func (r *Reader) docURL(rel, slug string) string {
	base := r.baseURL()
	dir := path.Dir(rel)
	if dir == "." {
		dir = ""
	}
	if slug = strings.TrimSpace(slug); slug != "" {
		if strings.HasPrefix(slug, "/") {
			return base + strings.TrimRight(slug, "/")
		}
		return base + "/" + strings.Trim(path.Join(stripNumberPrefixes(dir), slug), "/")
	}

	name := transform.TrimSourceExt(path.Base(rel))
	if indexNames[strings.ToLower(name)] && strings.ToLower(name) != "intro" {
		name = ""
	}
	p := strings.Trim(path.Join(stripNumberPrefixes(dir), stripNumberPrefixes(name)), "/")
	if p == "" {
		return base
	}
	return fmt.Sprintf("%s/%s", base, p)
}

func stripNumberPrefixes(p string) string {
	if p == "" {
		return ""
	}
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		if stripped := numberPrefix.ReplaceAllString(seg, ""); stripped != "" {
			segments[i] = stripped
		}
	}
	return strings.Join(segments, "/")
}
