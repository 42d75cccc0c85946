// Package search ranks the documents of a loaded index against free-text
// queries and suggests index terms for partial input.
//
// An Engine is built once from an index and is read-only afterwards, so a
// single Engine can serve concurrent Search and Suggestions calls. Every
// call allocates its own scoring state.
package search

import (
	"sort"
	"strings"

	"github.com/physical-ai-textbook/textbook-search/internal/index"
)

type Engine struct {
	cfg  Config
	meta index.Metadata
	docs []entry

	// vocab holds every distinct token of every searched field; entries
	// refer to it by id.
	vocab []string

	suggestions []suggestion
}

// entry is the precomputed, lowercased view of one document.
type entry struct {
	doc      *index.Document
	order    int
	priority int

	title       folded
	headings    []string
	description folded
	keywords    []string
	content     folded

	terms [numFields][]termRef
}

// termRef is a distinct token of a field and where it first occurs.
type termRef struct {
	id    int
	start int
	end   int
}

// New prepares an engine over idx. A nil index behaves as an empty one.
func New(idx *index.SearchIndex, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if idx == nil {
		idx = index.Empty()
	}

	e := &Engine{
		cfg:  cfg,
		meta: idx.Metadata,
		docs: make([]entry, len(idx.Documents)),
	}
	ids := map[string]int{}
	intern := func(term string) int {
		id, ok := ids[term]
		if !ok {
			id = len(e.vocab)
			ids[term] = id
			e.vocab = append(e.vocab, term)
		}
		return id
	}

	for i := range idx.Documents {
		doc := &idx.Documents[i]
		d := &e.docs[i]
		d.doc = doc
		d.order = i
		d.priority = doc.Type.Priority()
		d.title = fold(doc.Title)
		d.description = fold(doc.Description)
		d.content = fold(doc.Content)
		d.headings = make([]string, len(doc.Headings))
		for j, h := range doc.Headings {
			d.headings[j] = lower(h)
		}
		d.keywords = make([]string, len(doc.Keywords))
		for j, k := range doc.Keywords {
			d.keywords[j] = lower(k)
		}

		d.terms[fTitle] = fieldTerms(intern, d.title.lower)
		d.terms[fHeadings] = fieldTerms(intern, d.headings...)
		d.terms[fDescription] = fieldTerms(intern, d.description.lower)
		d.terms[fKeywords] = fieldTerms(intern, d.keywords...)
		d.terms[fContent] = fieldTerms(intern, d.content.lower)
	}

	e.suggestions = buildSuggestions(idx.Documents)
	return e, nil
}

// fieldTerms lists the distinct tokens of a field. Offsets are only
// meaningful for single-valued fields.
func fieldTerms(intern func(string) int, values ...string) []termRef {
	seen := map[string]bool{}
	var refs []termRef
	for _, v := range values {
		for _, tok := range index.Tokenize(v) {
			if seen[tok.Text] {
				continue
			}
			seen[tok.Text] = true
			refs = append(refs, termRef{id: intern(tok.Text), start: tok.Start, end: tok.End})
		}
	}
	return refs
}

// Metadata describes the index the engine was built from.
func (e *Engine) Metadata() index.Metadata {
	return e.meta
}

// Len is the number of searchable documents.
func (e *Engine) Len() int {
	return len(e.docs)
}

// span is a match location in the lowercased text of a field.
type span struct {
	start, end int
}

type scored struct {
	entry *entry
	hit   [numFields]bool
	score float64
	// spans feed highlight extraction for description and content.
	spans [numFields][]span
}

func (s *scored) matched() int {
	n := 0
	for _, h := range s.hit {
		if h {
			n++
		}
	}
	return n
}

// Search ranks every document against opts.Query. An empty query or a
// limit of 0 yields no results; no match is not an error.
func (e *Engine) Search(opts Options) ([]Result, error) {
	q, err := e.prepare(opts)
	if err != nil {
		return nil, err
	}
	if q.text == "" || q.limit == 0 || len(e.docs) == 0 {
		return []Result{}, nil
	}

	var sims [][]float64
	candidates := make([]scored, 0, 16)
	for i := range e.docs {
		d := &e.docs[i]
		if !q.accepts(d.doc) {
			continue
		}
		s := scored{entry: d}
		e.substringPass(&s, q.text)
		if s.matched() == 0 {
			if sims == nil {
				sims = e.tokenSimilarities(q.tokens)
			}
			e.fuzzyPass(&s, q, sims)
		}
		if n := s.matched(); n > 0 {
			s.score += e.cfg.MultiFieldBonus * float64(n-1)
			candidates = append(candidates, s)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := &candidates[i], &candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.entry.priority != b.entry.priority {
			return a.entry.priority < b.entry.priority
		}
		return a.entry.order < b.entry.order
	})
	if len(candidates) > q.limit {
		candidates = candidates[:q.limit]
	}

	results := make([]Result, len(candidates))
	for i := range candidates {
		results[i] = e.result(&candidates[i])
	}
	return results, nil
}

// positional weights a substring hit at byte offset off of a field of
// length n: hits at the start earn the full position bonus.
func (e *Engine) positional(f field, off, n int) float64 {
	rel := 0.0
	if n > 0 {
		rel = float64(off) / float64(n)
	}
	return e.cfg.weight(f) * (1 + e.cfg.PositionBonus*(1-rel))
}

func (e *Engine) substringPass(s *scored, q string) {
	d := s.entry

	if off := strings.Index(d.title.lower, q); off >= 0 {
		s.hit[fTitle] = true
		s.score += e.positional(fTitle, off, len(d.title.lower))
	}

	if best := bestListHit(d.headings, q); best >= 0 {
		s.hit[fHeadings] = true
		s.score += e.cfg.Weights.Headings * (1 + e.cfg.PositionBonus*(1-best))
	}

	if off := strings.Index(d.description.lower, q); off >= 0 {
		s.hit[fDescription] = true
		s.score += e.positional(fDescription, off, len(d.description.lower))
		s.spans[fDescription] = occurrences(d.description.lower, q, off, e.cfg.MaxHighlights)
	}

	if best := bestListHit(d.keywords, q); best >= 0 {
		s.hit[fKeywords] = true
		s.score += e.cfg.Weights.Keywords * (1 + e.cfg.PositionBonus*(1-best))
	}

	if off := strings.Index(d.content.lower, q); off >= 0 {
		s.hit[fContent] = true
		spans := occurrences(d.content.lower, q, off, e.cfg.MaxContentHits)
		for _, sp := range spans {
			s.score += e.positional(fContent, sp.start, len(d.content.lower))
		}
		s.spans[fContent] = spans
	}
}

// bestListHit returns the smallest relative offset of q in any value, or
// -1 when no value contains it.
func bestListHit(values []string, q string) float64 {
	best := -1.0
	for _, v := range values {
		off := strings.Index(v, q)
		if off < 0 {
			continue
		}
		rel := float64(off) / float64(len(v))
		if best < 0 || rel < best {
			best = rel
		}
	}
	return best
}

// occurrences lists up to limit non-overlapping hits of q in s, starting
// with the one already found at first.
func occurrences(s, q string, first, limit int) []span {
	spans := []span{{first, first + len(q)}}
	for from := first + len(q); len(spans) < limit && from < len(s); {
		off := strings.Index(s[from:], q)
		if off < 0 {
			break
		}
		start := from + off
		spans = append(spans, span{start, start + len(q)})
		from = start + len(q)
	}
	return spans
}

// tokenSimilarities compares each query token with every vocabulary term
// once per search, so per-document fuzzy scoring is a table lookup.
func (e *Engine) tokenSimilarities(tokens []string) [][]float64 {
	sims := make([][]float64, len(tokens))
	for i, tok := range tokens {
		row := make([]float64, len(e.vocab))
		for id, term := range e.vocab {
			row[id] = similarity(tok, term)
		}
		sims[i] = row
	}
	return sims
}

// fuzzyPass scores a document that had no substring hit. A field's
// similarity is the mean, over query tokens, of each token's best match
// among the field's tokens; short fields may also match the query whole.
func (e *Engine) fuzzyPass(s *scored, q *query, sims [][]float64) {
	d := s.entry
	for f := field(0); f < numFields; f++ {
		refs := d.terms[f]
		if len(refs) == 0 {
			continue
		}

		sim := 0.0
		bestRef, bestSim := -1, 0.0
		if len(q.tokens) > 0 {
			total := 0.0
			for qi := range q.tokens {
				tokBest := 0.0
				for ri, r := range refs {
					v := sims[qi][r.id]
					if v > tokBest {
						tokBest = v
					}
					if v > bestSim {
						bestSim, bestRef = v, ri
					}
				}
				total += tokBest
			}
			sim = total / float64(len(q.tokens))
		}
		if f.short() {
			for _, v := range e.shortValues(d, f) {
				if whole := similarity(q.text, v); whole > sim {
					sim = whole
				}
			}
		}

		if sim < q.threshold {
			continue
		}
		s.hit[f] = true
		s.score += e.cfg.weight(f) * sim * e.cfg.FuzzyPenalty
		if bestRef >= 0 && (f == fDescription || f == fContent) {
			r := refs[bestRef]
			s.spans[f] = []span{{r.start, r.end}}
		}
	}
}

func (e *Engine) shortValues(d *entry, f field) []string {
	switch f {
	case fTitle:
		return []string{d.title.lower}
	case fHeadings:
		return d.headings
	case fKeywords:
		return d.keywords
	}
	return nil
}

func (e *Engine) result(s *scored) Result {
	doc := s.entry.doc
	matches := make(map[string]bool, numFields)
	for f, name := range fieldNames {
		matches[name] = s.hit[f]
	}
	return Result{
		ID:          doc.ID,
		Title:       doc.Title,
		Type:        doc.Type,
		Module:      doc.Module,
		URL:         doc.URL,
		Description: doc.Description,
		Highlights:  e.highlights(s),
		Matches:     matches,
		Score:       s.score,
	}
}
