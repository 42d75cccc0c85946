package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/physical-ai-textbook/textbook-search/internal/index"
	"github.com/physical-ai-textbook/textbook-search/internal/search"
)

type searchResponse struct {
	Loaded  bool            `json:"loaded"`
	Total   int             `json:"total"`
	Results []search.Result `json:"results"`
}

type suggestResponse struct {
	Loaded      bool     `json:"loaded"`
	Suggestions []string `json:"suggestions"`
}

type statusResponse struct {
	Loaded    bool           `json:"loaded"`
	Location  string         `json:"location"`
	Documents int            `json:"documents"`
	Metadata  index.Metadata `json:"metadata"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	opts, err := searchOptions(r)
	if err != nil {
		writeQueryError(w, err)
		return
	}

	st := s.state.Load()
	key := cacheKey(st.gen, opts)
	results, ok := s.cachedResults(key)
	if !ok {
		results, err = st.engine.Search(opts)
		if err != nil {
			writeQueryError(w, err)
			return
		}
		if s.cache != nil {
			s.cache.Add(key, results)
		}
	}
	if results == nil {
		results = []search.Result{}
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Loaded:  st.loaded,
		Total:   len(results),
		Results: results,
	})
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	limit, err := parseIntQuery(r, "limit", 0)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	st := s.state.Load()
	suggestions, err := st.engine.Suggestions(r.URL.Query().Get("q"), limit)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	writeJSON(w, http.StatusOK, suggestResponse{Loaded: st.loaded, Suggestions: suggestions})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := s.state.Load()
	meta := st.engine.Metadata()
	writeJSON(w, http.StatusOK, statusResponse{
		Loaded:    st.loaded,
		Location:  s.location,
		Documents: st.engine.Len(),
		Metadata:  meta,
	})
}

func (s *Server) cachedResults(key string) ([]search.Result, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(key)
}

// rateLimit answers 429 once the shared token bucket is empty.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func searchOptions(r *http.Request) (search.Options, error) {
	q := r.URL.Query()
	opts := search.Options{Query: q.Get("q")}

	if q.Get("limit") != "" {
		limit, err := parseIntQuery(r, "limit", 0)
		if err != nil {
			return opts, err
		}
		opts = opts.WithLimit(limit)
	}
	if q.Get("fuzzy") != "" {
		fuzzy, err := parseFloatQuery(r, "fuzzy")
		if err != nil {
			return opts, err
		}
		opts = opts.WithFuzzyThreshold(fuzzy)
	}
	for _, t := range splitList(q["type"]) {
		opts.Types = append(opts.Types, index.DocType(strings.ToLower(t)))
	}
	opts.Modules = splitList(q["module"])
	return opts, nil
}

// splitList accepts both repeated parameters and comma separated values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func cacheKey(gen uint64, opts search.Options) string {
	types := make([]string, len(opts.Types))
	for i, t := range opts.Types {
		types[i] = string(t)
	}
	limit, fuzzy := "-", "-"
	if opts.Limit != nil {
		limit = strconv.Itoa(*opts.Limit)
	}
	if opts.FuzzyThreshold != nil {
		fuzzy = strconv.FormatFloat(*opts.FuzzyThreshold, 'g', -1, 64)
	}
	return fmt.Sprintf("%d\x00%s\x00%s\x00%s\x00%s\x00%s", gen,
		strings.ToLower(strings.TrimSpace(opts.Query)), limit, fuzzy,
		strings.Join(types, ","), strings.Join(opts.Modules, ","))
}

func writeQueryError(w http.ResponseWriter, err error) {
	var qe *search.InvalidQueryError
	if errors.As(err, &qe) {
		writeError(w, http.StatusBadRequest, qe.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
