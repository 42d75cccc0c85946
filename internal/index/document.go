// Package index defines the search index data model, the builder that
// produces it from content units, and the decoder for the serialized
// artifact.
package index

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DocType is the kind of content unit a Document was built from.
type DocType string

const (
	TypeModule   DocType = "module"
	TypeChapter  DocType = "chapter"
	TypeSection  DocType = "section"
	TypeExercise DocType = "exercise"
	TypeResource DocType = "resource"
)

// docTypePriority orders types for tie-breaking: lower sorts first.
var docTypePriority = map[DocType]int{
	TypeModule:   0,
	TypeChapter:  1,
	TypeSection:  2,
	TypeExercise: 3,
	TypeResource: 4,
}

// ParseDocType accepts a type name case-insensitively.
func ParseDocType(s string) (DocType, error) {
	t := DocType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown document type %q", s)
	}
	return t, nil
}

func (t DocType) Valid() bool {
	_, ok := docTypePriority[t]
	return ok
}

// Priority returns the tie-break rank of t. Unknown types rank last.
func (t DocType) Priority() int {
	if p, ok := docTypePriority[t]; ok {
		return p
	}
	return len(docTypePriority)
}

// Document is one indexable content unit.
type Document struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Type               DocType  `json:"type"`
	Module             string   `json:"module"`
	URL                string   `json:"url"`
	Description        string   `json:"description,omitempty"`
	Keywords           []string `json:"keywords"`
	Headings           []string `json:"headings"`
	Content            string   `json:"content"`
	LearningObjectives []string `json:"learningObjectives"`
}

// Metadata summarises an index. TotalDocuments and Modules are derived from
// the documents and must never be maintained by hand.
type Metadata struct {
	TotalDocuments int       `json:"totalDocuments"`
	LastUpdated    time.Time `json:"lastUpdated"`
	Modules        []string  `json:"modules"`
	BuildID        string    `json:"buildId,omitempty"`
	Generator      string    `json:"generator,omitempty"`
}

// SearchIndex is the serializable artifact shared between the builder and
// the search engine. Documents keep build order.
type SearchIndex struct {
	Documents []Document `json:"documents"`
	Metadata  Metadata   `json:"metadata"`

	// Repaired is set by loaders when the stored metadata disagreed with
	// the documents and was recomputed.
	Repaired bool `json:"-"`
}

// New returns an index over docs with computed metadata.
func New(docs []Document, lastUpdated time.Time) *SearchIndex {
	if docs == nil {
		docs = []Document{}
	}
	return &SearchIndex{
		Documents: docs,
		Metadata: Metadata{
			TotalDocuments: len(docs),
			LastUpdated:    lastUpdated.UTC(),
			Modules:        moduleSet(docs),
		},
	}
}

// Empty returns an index with no documents. It is what the engine falls
// back to when an artifact cannot be loaded.
func Empty() *SearchIndex {
	return New(nil, time.Now())
}

// Consistent reports whether the metadata matches the documents.
func (idx *SearchIndex) Consistent() bool {
	if idx.Metadata.TotalDocuments != len(idx.Documents) {
		return false
	}
	want := moduleSet(idx.Documents)
	got := append([]string(nil), idx.Metadata.Modules...)
	sort.Strings(got)
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// Repair recomputes the derived metadata fields when they disagree with the
// documents. It reports whether anything changed.
func (idx *SearchIndex) Repair() bool {
	if idx.Documents == nil {
		idx.Documents = []Document{}
	}
	if idx.Consistent() {
		return false
	}
	idx.Metadata.TotalDocuments = len(idx.Documents)
	idx.Metadata.Modules = moduleSet(idx.Documents)
	return true
}

func moduleSet(docs []Document) []string {
	seen := make(map[string]bool, 8)
	modules := make([]string, 0, 8)
	for _, d := range docs {
		if d.Module == "" || seen[d.Module] {
			continue
		}
		seen[d.Module] = true
		modules = append(modules, d.Module)
	}
	sort.Strings(modules)
	return modules
}
