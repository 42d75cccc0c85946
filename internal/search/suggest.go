package search

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/physical-ai-textbook/textbook-search/internal/index"
)

type suggestion struct {
	term  string
	count int
}

// buildSuggestions counts every keyword and title word across the index
// and orders the terms most frequent first, then alphabetically.
func buildSuggestions(docs []index.Document) []suggestion {
	counts := map[string]int{}
	for _, doc := range docs {
		for _, kw := range doc.Keywords {
			if kw = lower(strings.TrimSpace(kw)); kw != "" {
				counts[kw]++
			}
		}
		for _, w := range index.Words(doc.Title) {
			if index.IsTerm(w) {
				counts[w]++
			}
		}
	}

	out := make([]suggestion, 0, len(counts))
	for term, n := range counts {
		out = append(out, suggestion{term: term, count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].term < out[j].term
	})
	return out
}

// Suggestions returns up to limit index terms for partially typed input.
// Only the last word of input is completed. A term qualifies when it
// starts with that word or is similar enough to it, either whole or in its
// leading characters. Limit 0 selects the default; negative is invalid.
func (e *Engine) Suggestions(input string, limit int) ([]string, error) {
	if !utf8.ValidString(input) {
		return nil, &InvalidQueryError{Field: "prefix", Reason: "not valid UTF-8 text"}
	}
	if limit < 0 {
		return nil, &InvalidQueryError{Field: "limit", Reason: fmt.Sprintf("must not be negative, got %d", limit)}
	}
	if limit == 0 {
		limit = e.cfg.DefaultSuggestions
	}

	words := index.Words(lower(input))
	if len(words) == 0 {
		return []string{}, nil
	}
	word := words[len(words)-1]

	out := make([]string, 0, limit)
	for _, s := range e.suggestions {
		if len(out) == limit {
			break
		}
		if e.suggests(word, s.term) {
			out = append(out, s.term)
		}
	}
	return out, nil
}

func (e *Engine) suggests(word, term string) bool {
	if strings.HasPrefix(term, word) {
		return true
	}
	t := e.cfg.SuggestionThreshold
	return similarity(word, term) >= t || prefixSimilarity(word, term) >= t
}
