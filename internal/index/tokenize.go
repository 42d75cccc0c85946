package index

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Token is a lowercase word with its byte span in the source text.
type Token struct {
	Text  string
	Start int
	End   int
}

// Tokenize splits text on anything that is not a letter or a digit.
// Tokens are lowercased; offsets refer to the original text.
func Tokenize(text string) []Token {
	var tokens []Token
	start := -1
	for i, r := range text {
		word := unicode.IsLetter(r) || unicode.IsDigit(r)
		switch {
		case word && start < 0:
			start = i
		case !word && start >= 0:
			tokens = append(tokens, Token{Text: strings.ToLower(text[start:i]), Start: start, End: i})
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, Token{Text: strings.ToLower(text[start:]), Start: start, End: len(text)})
	}
	return tokens
}

// Words returns the token texts of text in order, duplicates included.
func Words(text string) []string {
	tokens := Tokenize(text)
	words := make([]string, len(tokens))
	for i, t := range tokens {
		words[i] = t.Text
	}
	return words
}

// IsTerm reports whether a lowercase word is worth indexing as a keyword:
// at least two characters, not purely numeric and not a stop word.
func IsTerm(word string) bool {
	if utf8.RuneCountInString(word) < 2 {
		return false
	}
	if _, stop := stopWords[word]; stop {
		return false
	}
	for _, r := range word {
		if !unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// Terms extracts the distinct indexable words of texts in first-seen order.
func Terms(texts ...string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, text := range texts {
		for _, w := range Words(text) {
			if seen[w] || !IsTerm(w) {
				continue
			}
			seen[w] = true
			terms = append(terms, w)
		}
	}
	return terms
}

// CollapseWhitespace replaces runs of whitespace (including newlines)
// with a single space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
