package index

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generator is recorded in the metadata of every index this package builds.
const Generator = "textbook-search"

// Unit is one content unit handed to the Builder by a content source.
type Unit struct {
	// Path locates the unit in the content source; used in errors only.
	Path string

	ID                 string
	Title              string
	Description        string
	Type               DocType
	Module             string
	URL                string
	Headings           []string
	Body               string
	Keywords           []string
	LearningObjectives []string
}

// BuildError identifies the content unit that stopped a build.
type BuildError struct {
	Path   string
	ID     string
	Reason string
	Err    error
}

func (e *BuildError) Error() string {
	unit := e.ID
	if e.Path != "" {
		if unit != "" {
			unit = e.Path + " (" + e.ID + ")"
		} else {
			unit = e.Path
		}
	}
	msg := "build index"
	if unit != "" {
		msg += ": " + unit
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BuildError) Unwrap() error { return e.Err }

// Builder turns content units into a SearchIndex.
type Builder struct {
	// Now stamps metadata.lastUpdated. Defaults to time.Now.
	Now func() time.Time
	// NewBuildID names a build. Defaults to a random UUID.
	NewBuildID func() string
}

func NewBuilder() *Builder {
	return &Builder{
		Now:        time.Now,
		NewBuildID: func() string { return uuid.NewString() },
	}
}

// Build normalizes every unit into a Document in input order. It fails on
// the first invalid unit; no document is ever dropped silently.
func (b *Builder) Build(units []Unit) (*SearchIndex, error) {
	docs := make([]Document, 0, len(units))
	seen := make(map[string]string, len(units))
	for _, u := range units {
		doc, err := b.Document(u)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[doc.ID]; dup {
			return nil, &BuildError{Path: u.Path, ID: doc.ID, Reason: "duplicate id, first defined by " + prev}
		}
		seen[doc.ID] = u.Path
		docs = append(docs, doc)
	}

	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	idx := New(docs, now())
	idx.Metadata.Generator = Generator
	if b.NewBuildID != nil {
		idx.Metadata.BuildID = b.NewBuildID()
	}
	return idx, nil
}

// Document validates and normalizes a single unit.
func (b *Builder) Document(u Unit) (Document, error) {
	id := strings.TrimSpace(u.ID)
	url := strings.TrimSpace(u.URL)
	switch {
	case id == "":
		return Document{}, &BuildError{Path: u.Path, Reason: "missing required field id"}
	case url == "":
		return Document{}, &BuildError{Path: u.Path, ID: id, Reason: "missing required field url"}
	case strings.TrimSpace(u.Module) == "":
		return Document{}, &BuildError{Path: u.Path, ID: id, Reason: "not inside a module"}
	case !u.Type.Valid():
		return Document{}, &BuildError{Path: u.Path, ID: id, Reason: fmt.Sprintf("unknown type %q", u.Type)}
	}

	title := CollapseWhitespace(u.Title)
	if title == "" {
		title = id
	}
	description := CollapseWhitespace(u.Description)
	headings := collapseAll(u.Headings)

	texts := make([]string, 0, len(headings)+len(u.Keywords)+2)
	texts = append(texts, title, description)
	texts = append(texts, headings...)
	texts = append(texts, u.Keywords...)
	keywords := Terms(texts...)
	if keywords == nil {
		keywords = []string{}
	}

	return Document{
		ID:                 id,
		Title:              title,
		Type:               u.Type,
		Module:             strings.TrimSpace(u.Module),
		URL:                url,
		Description:        description,
		Keywords:           keywords,
		Headings:           headings,
		Content:            strings.ToLower(CollapseWhitespace(u.Body)),
		LearningObjectives: collapseAll(u.LearningObjectives),
	}, nil
}

func collapseAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = CollapseWhitespace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
