package batch

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Page is a parsed HTML file. Fragments are edited as-is; full documents
// keep their <html> and <head> and only the body content is edited.
type Page struct {
	root *html.Node
	body *html.Node
	full bool
	raw  string
}

func isFullDocument(src string) bool {
	head := strings.ToLower(src[:min(len(src), 512)])
	return strings.Contains(head, "<!doctype") || strings.Contains(head, "<html")
}

// ParsePage parses an HTML file, fragment or full document.
func ParsePage(src string) (*Page, error) {
	if !isFullDocument(src) {
		return &Page{raw: src}, nil
	}
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}
	body := findBody(root)
	if body == nil {
		return nil, fmt.Errorf("parsing page: no body")
	}
	return &Page{root: root, body: body, full: true}, nil
}

// Content returns the markup the editor document is built from.
func (p *Page) Content() string {
	if !p.full {
		return p.raw
	}
	var b strings.Builder
	for c := p.body.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&b, c)
	}
	return b.String()
}

// Render returns the whole file with content in place of the old body.
func (p *Page) Render(content string) (string, error) {
	if !p.full {
		return content, nil
	}
	nodes, err := html.ParseFragment(strings.NewReader(content), p.body)
	if err != nil {
		return "", fmt.Errorf("parsing body: %w", err)
	}
	for c := p.body.FirstChild; c != nil; c = p.body.FirstChild {
		p.body.RemoveChild(c)
	}
	for _, n := range nodes {
		p.body.AppendChild(n)
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, p.root); err != nil {
		return "", fmt.Errorf("rendering page: %w", err)
	}
	return buf.String(), nil
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

// markdownPage wraps converted markdown in a minimal standalone document.
func markdownPage(title, body string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"/><title>")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</title></head><body>\n")
	b.WriteString(body)
	b.WriteString("</body></html>\n")
	return b.String()
}
