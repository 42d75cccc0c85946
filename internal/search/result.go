package search

import "github.com/physical-ai-textbook/textbook-search/internal/index"

// Searched field names, as they appear in Result.Matches.
const (
	FieldTitle       = "title"
	FieldHeadings    = "headings"
	FieldDescription = "description"
	FieldKeywords    = "keywords"
	FieldContent     = "content"
)

type field int

const (
	fTitle field = iota
	fHeadings
	fDescription
	fKeywords
	fContent
	numFields
)

var fieldNames = [numFields]string{FieldTitle, FieldHeadings, FieldDescription, FieldKeywords, FieldContent}

// short fields are also compared against the query as a whole.
func (f field) short() bool {
	return f == fTitle || f == fHeadings || f == fKeywords
}

func (c Config) weight(f field) float64 {
	switch f {
	case fTitle:
		return c.Weights.Title
	case fHeadings:
		return c.Weights.Headings
	case fDescription:
		return c.Weights.Description
	case fKeywords:
		return c.Weights.Keywords
	default:
		return c.Weights.Content
	}
}

// Result is a ranked document. It holds copies of the document fields and
// never aliases the index.
type Result struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Type        index.DocType   `json:"type"`
	Module      string          `json:"module"`
	URL         string          `json:"url"`
	Description string          `json:"description,omitempty"`
	Highlights  []string        `json:"highlights"`
	Matches     map[string]bool `json:"matches"`
	Score       float64         `json:"score"`
}
