package transform

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// collapseWhitespace replaces runs of whitespace (including newlines)
// with a single space.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// MaxDescriptionLen is the maximum length in bytes of a description
// before truncation.
const MaxDescriptionLen = 200

func capDescription(desc string) string {
	if len(desc) <= MaxDescriptionLen {
		return desc
	}
	cut := strings.LastIndex(desc[:MaxDescriptionLen], " ")
	if cut <= 0 {
		cut = MaxDescriptionLen
		for cut > 0 && !utf8.RuneStart(desc[cut]) {
			cut--
		}
	}
	return strings.TrimRight(desc[:cut], ".,;: ") + " …"
}

// sourceExtensions are stripped from filenames before they are used as a
// title or id.
var sourceExtensions = []string{".mdx", ".md", ".markdown"}

// TrimSourceExt removes a Markdown extension from name.
func TrimSourceExt(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range sourceExtensions {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}

// IsSource reports whether name carries a Markdown extension.
func IsSource(name string) bool {
	return TrimSourceExt(name) != name
}

// titleFromFilename turns "02-forward_kinematics.md" into
// "Forward Kinematics". Leading ordering numbers are dropped.
func titleFromFilename(filename string) string {
	name := TrimSourceExt(filename)
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == '-' || r == '_' || r == ' ' || r == '.'
	})
	for len(words) > 1 && isDigits(words[0]) {
		words = words[1:]
	}
	if len(words) == 0 {
		return "Untitled"
	}
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
