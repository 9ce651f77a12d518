// Package markdown imports markdown documents into editor content. Math
// written as $...$ or $$...$$ becomes raw math sources, ready for a
// reconciliation pass.
package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"gopkg.in/yaml.v3"
)

// FrontMatter is the optional YAML header of an imported document.
type FrontMatter struct {
	Title      string `yaml:"title"`
	EditorType string `yaml:"editor_type"`
}

// Document is the result of an import.
type Document struct {
	FrontMatter
	HTML string
}

// Converter turns markdown into editor HTML.
type Converter struct {
	md goldmark.Markdown
}

// NewConverter returns a converter with GFM, code highlighting and math.
func NewConverter() *Converter {
	return &Converter{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				highlighting.NewHighlighting(
					highlighting.WithStyle("github"),
				),
				Math,
			),
			goldmark.WithRendererOptions(
				html.WithUnsafe(),
			),
		),
	}
}

// Convert parses src. The title comes from front matter, else from the
// first level-one heading.
func (c *Converter) Convert(src []byte) (*Document, error) {
	fm, body, err := splitFrontMatter(src)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := c.md.Convert(body, &buf); err != nil {
		return nil, fmt.Errorf("converting markdown: %w", err)
	}

	doc := &Document{FrontMatter: fm, HTML: buf.String()}
	if doc.Title == "" {
		doc.Title = firstHeading(body)
	}
	return doc, nil
}

// splitFrontMatter separates a leading "---" YAML block from the body.
func splitFrontMatter(src []byte) (FrontMatter, []byte, error) {
	var fm FrontMatter
	rest, ok := bytes.CutPrefix(src, []byte("---\n"))
	if !ok {
		rest, ok = bytes.CutPrefix(src, []byte("---\r\n"))
	}
	if !ok {
		return fm, src, nil
	}

	header, body, found := bytes.Cut(rest, []byte("\n---"))
	if !found {
		return fm, src, nil
	}
	// drop the remainder of the closing fence line
	if i := bytes.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		body = nil
	}

	if err := yaml.Unmarshal(header, &fm); err != nil {
		return fm, nil, fmt.Errorf("parsing front matter: %w", err)
	}
	return fm, body, nil
}

func firstHeading(body []byte) string {
	for _, line := range strings.Split(string(body), "\n") {
		if title, ok := strings.CutPrefix(strings.TrimSpace(line), "# "); ok {
			return strings.TrimSpace(title)
		}
	}
	return ""
}
