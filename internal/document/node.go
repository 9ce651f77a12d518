package document

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ErrNoElement is returned by ParseElement when markup has no element.
var ErrNoElement = errors.New("markup holds no element")

// Select wraps a single node in a goquery selection.
func Select(n *html.Node) *goquery.Selection {
	return goquery.NewDocumentFromNode(n).Selection
}

// Attr returns the value of key on n, or "".
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

// HasClass reports whether n carries class cls.
func HasClass(n *html.Node, cls string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	for _, c := range strings.Fields(Attr(n, "class")) {
		if c == cls {
			return true
		}
	}
	return false
}

// Text returns the text content of n.
func Text(n *html.Node) string {
	return Select(n).Text()
}

// OuterHTML renders n including its own tag.
func OuterHTML(n *html.Node) string {
	var b strings.Builder
	if err := html.Render(&b, n); err != nil {
		return ""
	}
	return b.String()
}

// ParseElement parses markup expected to hold exactly one element in the
// context of parent and returns it. Surrounding whitespace is dropped.
func ParseElement(markup string, parent *html.Node) (*html.Node, error) {
	if parent == nil {
		parent = newBody()
	}
	nodes, err := html.ParseFragment(strings.NewReader(strings.TrimSpace(markup)), parent)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			return n, nil
		}
	}
	return nil, ErrNoElement
}
