package transform

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// FrontMatter is the subset of Docusaurus front matter the index uses.
// Unknown keys are ignored.
type FrontMatter struct {
	ID                 string   `yaml:"id"`
	Title              string   `yaml:"title"`
	Description        string   `yaml:"description"`
	Slug               string   `yaml:"slug"`
	Type               string   `yaml:"type"`
	Module             string   `yaml:"module"`
	Keywords           []string `yaml:"keywords"`
	Tags               []string `yaml:"tags"`
	LearningObjectives []string `yaml:"learning_objectives"`
	SidebarPosition    float64  `yaml:"sidebar_position"`
	Draft              bool     `yaml:"draft"`
	Unlisted           bool     `yaml:"unlisted"`
}

var frontMatterFence = []byte("---")

// SplitFrontMatter separates a leading "---" delimited YAML block from the
// Markdown body. Sources without front matter return a zero FrontMatter and
// the input unchanged.
func SplitFrontMatter(raw []byte) (FrontMatter, []byte, error) {
	var meta FrontMatter

	content := bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(content, frontMatterFence) {
		return meta, content, nil
	}
	first := bytes.IndexByte(content, '\n')
	if first < 0 || len(bytes.TrimSpace(content[:first])) != len(frontMatterFence) {
		return meta, content, nil
	}

	rest := content[first+1:]
	end := -1
	for offset := 0; offset < len(rest); {
		line := rest[offset:]
		if nl := bytes.IndexByte(line, '\n'); nl >= 0 {
			line = line[:nl]
		}
		if bytes.Equal(bytes.TrimRight(line, " \t"), frontMatterFence) {
			end = offset
			break
		}
		offset += len(line) + 1
	}
	if end < 0 {
		return meta, nil, fmt.Errorf("unterminated front matter")
	}

	if err := yaml.Unmarshal(rest[:end], &meta); err != nil {
		return meta, nil, fmt.Errorf("parse yaml: %w", err)
	}

	body := rest[end+len(frontMatterFence):]
	body = bytes.TrimLeft(body, " \t")
	body = bytes.TrimPrefix(body, []byte("\n"))
	return meta, body, nil
}
