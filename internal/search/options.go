package search

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/physical-ai-textbook/textbook-search/internal/index"
)

// Options is one search request. Nil Limit and FuzzyThreshold select the
// engine defaults; set values, zero included, are taken literally.
type Options struct {
	Query string
	// Limit caps the number of results after ranking. Negative is invalid.
	Limit *int
	// FuzzyThreshold is the similarity in [0,1] a fuzzy match needs.
	FuzzyThreshold *float64
	// Types and Modules restrict the candidates when non-empty.
	Types   []index.DocType
	Modules []string
}

// WithLimit returns a copy of o with Limit set to n.
func (o Options) WithLimit(n int) Options {
	o.Limit = &n
	return o
}

// WithFuzzyThreshold returns a copy of o with FuzzyThreshold set to t.
func (o Options) WithFuzzyThreshold(t float64) Options {
	o.FuzzyThreshold = &t
	return o
}

// InvalidQueryError reports search options that break the caller
// contract.
type InvalidQueryError struct {
	Field  string
	Reason string
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid query: %s: %s", e.Field, e.Reason)
}

// query is a validated request with defaults applied.
type query struct {
	text      string
	tokens    []string
	limit     int
	threshold float64
	types     map[index.DocType]bool
	modules   map[string]bool
}

func (e *Engine) prepare(opts Options) (*query, error) {
	if !utf8.ValidString(opts.Query) {
		return nil, &InvalidQueryError{Field: "query", Reason: "not valid UTF-8 text"}
	}
	q := &query{
		text:      lower(index.CollapseWhitespace(opts.Query)),
		limit:     e.cfg.DefaultLimit,
		threshold: e.cfg.FuzzyThreshold,
	}
	if opts.Limit != nil {
		if *opts.Limit < 0 {
			return nil, &InvalidQueryError{Field: "limit", Reason: fmt.Sprintf("must not be negative, got %d", *opts.Limit)}
		}
		q.limit = *opts.Limit
	}
	if opts.FuzzyThreshold != nil {
		t := *opts.FuzzyThreshold
		if math.IsNaN(t) || t < 0 || t > 1 {
			return nil, &InvalidQueryError{Field: "fuzzyThreshold", Reason: fmt.Sprintf("must be within [0,1], got %v", t)}
		}
		q.threshold = t
	}
	q.tokens = index.Words(q.text)

	if len(opts.Types) > 0 {
		q.types = make(map[index.DocType]bool, len(opts.Types))
		for _, t := range opts.Types {
			if !t.Valid() {
				return nil, &InvalidQueryError{Field: "types", Reason: fmt.Sprintf("unknown type %q", t)}
			}
			q.types[t] = true
		}
	}
	if len(opts.Modules) > 0 {
		q.modules = make(map[string]bool, len(opts.Modules))
		for _, m := range opts.Modules {
			q.modules[strings.TrimSpace(m)] = true
		}
	}
	return q, nil
}

func (q *query) accepts(doc *index.Document) bool {
	if q.types != nil && !q.types[doc.Type] {
		return false
	}
	if q.modules != nil && !q.modules[doc.Module] {
		return false
	}
	return true
}
