// Package transform implements the text pipeline that turns a Markdown or
// MDX source file into the plain-text fields of a search document.
//
// The pipeline runs as a sequence of named stages:
//  1. Split YAML front matter from the body
//  2. Drop MDX import/export lines and JSX components
//  3. Extract ATX headings in document order
//  4. Resolve the title (front matter, first h1, filename)
//  5. Strip Markdown syntax down to plain text
//  6. Resolve the description (front matter, first paragraph)
package transform

import (
	"fmt"
	"path/filepath"
)

// Doc holds the state of one source file as it passes through the
// pipeline.
type Doc struct {
	Path     string
	Meta     FrontMatter
	Body     []byte   // Markdown body without front matter
	Title    string   // set by stage 4
	Desc     string   // set by stage 6
	Headings []string // set by stage 3, excludes the title heading
	Text     string   // plain text body, set by stage 5
}

// Pipeline runs all transformation stages on a raw source file.
func Pipeline(path string, raw []byte) (Doc, error) {
	doc := Doc{Path: path}

	// Stage 1: Split front matter.
	if err := stageFrontMatter(&doc, raw); err != nil {
		return doc, fmt.Errorf("front matter: %w", err)
	}

	// Stage 2: Drop MDX-only syntax.
	doc.Body = bStripMDX(doc.Body)

	// Stage 3: Extract headings.
	headings := bExtractHeadings(doc.Body)

	// Stage 4: Resolve title, removing it from the heading list when it
	// came from the first h1.
	stageTitle(&doc, headings)

	// Stage 5: Strip Markdown.
	doc.Text = stripMarkdown(string(doc.Body))

	// Stage 6: Resolve description.
	doc.Desc = doc.Meta.Description
	if doc.Desc == "" {
		doc.Desc = firstParagraph(doc.Text, doc.Title)
	}
	doc.Desc = capDescription(collapseWhitespace(doc.Desc))

	return doc, nil
}

func stageFrontMatter(doc *Doc, raw []byte) error {
	meta, body, err := SplitFrontMatter(raw)
	if err != nil {
		return err
	}
	doc.Meta = meta
	doc.Body = body
	return nil
}

func stageTitle(doc *Doc, headings []heading) {
	title := collapseWhitespace(doc.Meta.Title)
	rest := headings
	if len(headings) > 0 && headings[0].level == 1 {
		if title == "" {
			title = headings[0].text
		}
		rest = headings[1:]
	}
	if title == "" {
		title = titleFromFilename(filepath.Base(doc.Path))
	}
	doc.Title = title

	doc.Headings = make([]string, 0, len(rest))
	for _, h := range rest {
		doc.Headings = append(doc.Headings, h.text)
	}
}
