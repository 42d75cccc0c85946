package search

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const ellipsis = "…"

// highlights cuts excerpts around the description matches first, then the
// content matches, up to MaxHighlights in total. Title, heading and
// keyword matches produce none.
func (e *Engine) highlights(s *scored) []string {
	out := []string{}
	for _, f := range []field{fDescription, fContent} {
		if !s.hit[f] {
			continue
		}
		text := s.entry.description
		if f == fContent {
			text = s.entry.content
		}
		covered := -1
		for _, sp := range s.spans[f] {
			if len(out) >= e.cfg.MaxHighlights {
				return out
			}
			if sp.start < covered {
				continue
			}
			start, end := window(text.lower, sp, e.cfg.HighlightWindow)
			covered = end
			if excerpt := excerpt(text, start, end); excerpt != "" {
				out = append(out, excerpt)
			}
		}
	}
	return out
}

// window returns a range of about size bytes of s centred on sp and
// shrunk to word boundaries. The match itself is never cut.
func window(s string, sp span, size int) (int, int) {
	if size < sp.end-sp.start {
		size = sp.end - sp.start
	}
	pad := (size - (sp.end - sp.start)) / 2
	start, end := sp.start-pad, sp.end+pad
	if start < 0 {
		end -= start
		start = 0
	}
	if end > len(s) {
		start -= end - len(s)
		end = len(s)
	}
	start = max(start, 0)

	if start > 0 && !isSpaceBefore(s, start) {
		if i := strings.IndexFunc(s[start:sp.start], unicode.IsSpace); i >= 0 {
			start += i + 1
		} else {
			for start < sp.start && !utf8.RuneStart(s[start]) {
				start++
			}
		}
	}
	if end < len(s) && !isSpaceAt(s, end) {
		if i := strings.LastIndexFunc(s[sp.end:end], unicode.IsSpace); i >= 0 {
			end = sp.end + i
		} else {
			for end > sp.end && !utf8.RuneStart(s[end]) {
				end--
			}
		}
	}
	return start, end
}

func isSpaceBefore(s string, i int) bool {
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return unicode.IsSpace(r)
}

func isSpaceAt(s string, i int) bool {
	r, _ := utf8.DecodeRuneInString(s[i:])
	return unicode.IsSpace(r)
}

// excerpt slices the original text for a window of its lowercased copy,
// marking cut ends with an ellipsis.
func excerpt(text folded, start, end int) string {
	body := strings.TrimSpace(text.orig[text.origOffset(start):text.origOffset(end)])
	if body == "" {
		return ""
	}
	if start > 0 {
		body = ellipsis + body
	}
	if end < len(text.lower) {
		body += ellipsis
	}
	return body
}
