package transform

import (
	"bytes"
	htmlutil "html"
	"regexp"
	"strings"
)

var (
	// ATX headings outside code fences: "## Title", optional closing #s.
	headingPattern = regexp.MustCompile(`^(#{1,6})[ \t]+(.+?)[ \t]*#*[ \t]*$`)
	// Docusaurus heading ids: "## Title {#custom-id}".
	headingIDPattern = regexp.MustCompile(`\s*\{#[^}]*\}\s*$`)
	headingIDLines   = regexp.MustCompile(`(?m)[ \t]*\{#[^}]*\}[ \t]*$`)
	fencePattern     = regexp.MustCompile("^\\s*(```|~~~)")

	mdxImportPattern  = regexp.MustCompile(`(?m)^(import|export)\s.*$`)
	jsxBlockPattern   = regexp.MustCompile(`(?s)<([A-Z][A-Za-z0-9]*)\b[^>]*>(.*?)</([A-Z][A-Za-z0-9]*)>`)
	jsxSelfClosing    = regexp.MustCompile(`<[A-Z][A-Za-z0-9]*[^>]*/\s*>`)
	admonitionPattern = regexp.MustCompile(`(?m)^:::\s*\w*.*$`)

	codeBlockPattern    = regexp.MustCompile("(?s)(```|~~~).*?(```|~~~)")
	inlineCodePattern   = regexp.MustCompile("`([^`]+)`")
	imagePattern        = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	linkPattern         = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	refLinkDefPattern   = regexp.MustCompile(`(?m)^[ \t]*\[[^\]]+\]:[ \t]*\S+.*$`)
	headingMarkPattern  = regexp.MustCompile(`(?m)^#{1,6}[ \t]+`)
	emphasisPattern     = regexp.MustCompile(`(\*\*|__|\*|~~)`)
	blockquotePattern   = regexp.MustCompile(`(?m)^[ \t]*>[ \t]?`)
	hrPattern           = regexp.MustCompile(`(?m)^[ \t]*([-*_][ \t]*){3,}$`)
	listMarkerPattern   = regexp.MustCompile(`(?m)^[ \t]*([-*+]|\d+[.)])[ \t]+`)
	tableRulePattern    = regexp.MustCompile(`(?m)^[ \t]*\|?[ \t:|-]+\|[ \t:|-]*$`)
	htmlTagPattern      = regexp.MustCompile(`(?s)<[^>]+>`)
	htmlCommentPattern  = regexp.MustCompile(`(?s)<!--.*?-->`)
	mathBlockPattern    = regexp.MustCompile(`(?s)\$\$.*?\$\$`)
	multiNewlinePattern = regexp.MustCompile(`\n{3,}`)
)

type heading struct {
	level int
	text  string
}

// bStripMDX removes import/export statements and JSX components, keeping
// the text children of block components.
func bStripMDX(body []byte) []byte {
	body = mdxImportPattern.ReplaceAll(body, nil)
	body = jsxSelfClosing.ReplaceAll(body, nil)
	for {
		next := jsxBlockPattern.ReplaceAll(body, []byte("$2"))
		if bytes.Equal(next, body) {
			break
		}
		body = next
	}
	return admonitionPattern.ReplaceAll(body, nil)
}

// bExtractHeadings returns ATX headings in order, skipping fenced code.
func bExtractHeadings(body []byte) []heading {
	var headings []heading
	inFence := false
	for _, line := range strings.Split(string(body), "\n") {
		if fencePattern.MatchString(line) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		m := headingPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		text := headingIDPattern.ReplaceAllString(m[2], "")
		text = collapseWhitespace(stripInline(text))
		if text == "" {
			continue
		}
		headings = append(headings, heading{level: len(m[1]), text: text})
	}
	return headings
}

// stripInline removes inline Markdown from a single line of text.
func stripInline(s string) string {
	s = inlineCodePattern.ReplaceAllString(s, "$1")
	s = imagePattern.ReplaceAllString(s, "$1")
	s = linkPattern.ReplaceAllString(s, "$1")
	s = emphasisPattern.ReplaceAllString(s, "")
	s = htmlTagPattern.ReplaceAllString(s, "")
	return htmlutil.UnescapeString(s)
}

// stripMarkdown reduces a Markdown body to plain text, keeping paragraph
// breaks. Code blocks and display math are dropped.
func stripMarkdown(content string) string {
	content = htmlCommentPattern.ReplaceAllString(content, "")
	content = codeBlockPattern.ReplaceAllString(content, "")
	content = mathBlockPattern.ReplaceAllString(content, "")
	content = refLinkDefPattern.ReplaceAllString(content, "")
	content = headingIDLines.ReplaceAllString(content, "")
	content = headingMarkPattern.ReplaceAllString(content, "")
	content = tableRulePattern.ReplaceAllString(content, "")
	content = hrPattern.ReplaceAllString(content, "")
	content = blockquotePattern.ReplaceAllString(content, "")
	content = listMarkerPattern.ReplaceAllString(content, "")
	content = stripInline(content)
	content = strings.ReplaceAll(content, "|", " ")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	content = multiNewlinePattern.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(content)
}

// firstParagraph returns the first paragraph of text that is not just the
// title repeated.
func firstParagraph(text, title string) string {
	for _, para := range strings.Split(text, "\n\n") {
		para = collapseWhitespace(para)
		if para == "" || strings.EqualFold(para, title) {
			continue
		}
		return para
	}
	return ""
}
