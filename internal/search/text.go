package search

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// folded is a lowercased copy of a field that can map offsets back into
// the original text. pos is nil when both share the same byte layout.
type folded struct {
	orig  string
	lower string
	pos   []int
}

func fold(s string) folded {
	var b strings.Builder
	b.Grow(len(s))
	var pos []int
	for i := 0; i < len(s); {
		r, w := utf8.DecodeRuneInString(s[i:])
		n := w
		if lr := unicode.ToLower(r); lr != r && r != utf8.RuneError {
			n, _ = b.WriteRune(lr)
		} else {
			b.WriteString(s[i : i+w])
		}
		if pos == nil && n != w {
			// First change of layout: backfill the identical prefix.
			pos = make([]int, i, len(s)+1)
			for j := range pos {
				pos[j] = j
			}
		}
		if pos != nil {
			for k := 0; k < n; k++ {
				pos = append(pos, i)
			}
		}
		i += w
	}
	if pos == nil {
		return folded{orig: s, lower: b.String()}
	}
	return folded{orig: s, lower: b.String(), pos: append(pos, len(s))}
}

// origOffset maps a byte offset in lower to one in orig.
func (f folded) origOffset(i int) int {
	if f.pos == nil {
		return i
	}
	return f.pos[i]
}

func lower(s string) string {
	return fold(s).lower
}
