// Package document holds the editable HTML content of one editor instance
// and exposes it through the narrow Host interface the math pipeline uses.
package document

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrUnknownCommand is returned by ExecCommand for unregistered names.
var ErrUnknownCommand = errors.New("unknown editor command")

// Host is what the math pipeline needs from a rich-text editor.
type Host interface {
	GetData() string
	SetData(data string) error
	InsertHTML(markup string) error
	OnChange(fn func(data string))
	OnReady(fn func())
	AddCommand(name string, exec func() error)
	ExecCommand(name string) error
	Ascendant(n *html.Node, match func(*html.Node) bool) *html.Node
}

// Document is an in-memory editor body. All access to the tree goes through
// its methods, which serialize on an internal mutex.
type Document struct {
	id string

	mu   sync.Mutex
	root *html.Node

	// New content is inserted under cursorParent, before cursorBefore
	// (appended when cursorBefore is nil).
	cursorParent *html.Node
	cursorBefore *html.Node

	ready    bool
	onChange []func(string)
	onReady  []func()
	commands map[string]func() error
}

var _ Host = (*Document)(nil)

// New returns an empty document with the given id.
func New(id string) *Document {
	root := newBody()
	return &Document{
		id:           id,
		root:         root,
		cursorParent: root,
		commands:     make(map[string]func() error),
	}
}

// Parse returns a ready document holding data.
func Parse(id, data string) (*Document, error) {
	d := New(id)
	if err := d.SetData(data); err != nil {
		return nil, err
	}
	d.MarkReady()
	return d, nil
}

func newBody() *html.Node {
	return &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
}

// ID returns the document id.
func (d *Document) ID() string { return d.id }

// GetData serializes the body content.
func (d *Document) GetData() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return renderChildren(d.root)
}

// SetData replaces the whole body with data and moves the cursor to the end.
func (d *Document) SetData(data string) error {
	nodes, err := html.ParseFragment(strings.NewReader(data), newBody())
	if err != nil {
		return fmt.Errorf("parsing document %s: %w", d.id, err)
	}

	d.mu.Lock()
	root := newBody()
	for _, n := range nodes {
		root.AppendChild(n)
	}
	d.root = root
	d.cursorParent, d.cursorBefore = root, nil
	out := renderChildren(root)
	d.mu.Unlock()

	d.fireChange(out)
	return nil
}

// InsertHTML parses markup in the context of the cursor position and inserts
// it there. The cursor ends up after the inserted content.
func (d *Document) InsertHTML(markup string) error {
	d.mu.Lock()
	if !d.attached(d.cursorParent) || (d.cursorBefore != nil && d.cursorBefore.Parent != d.cursorParent) {
		d.cursorParent, d.cursorBefore = d.root, nil
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), d.cursorParent)
	if err != nil {
		d.mu.Unlock()
		return fmt.Errorf("parsing inserted markup: %w", err)
	}
	for _, n := range nodes {
		d.cursorParent.InsertBefore(n, d.cursorBefore)
	}
	out := renderChildren(d.root)
	d.mu.Unlock()

	d.fireChange(out)
	return nil
}

// MoveCursorAfter places the cursor right after n. It reports false if n is
// not part of the document.
func (d *Document) MoveCursorAfter(n *html.Node) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n == nil || n == d.root || !d.attached(n) {
		return false
	}
	d.cursorParent, d.cursorBefore = n.Parent, n.NextSibling
	return true
}

// MoveCursorToEnd places the cursor at the end of the body.
func (d *Document) MoveCursorToEnd() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cursorParent, d.cursorBefore = d.root, nil
}

// OnChange registers fn to receive the serialized content after each edit.
func (d *Document) OnChange(fn func(data string)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onChange = append(d.onChange, fn)
}

// OnReady registers fn to run once the document is ready. If it already is,
// fn runs immediately.
func (d *Document) OnReady(fn func()) {
	d.mu.Lock()
	if d.ready {
		d.mu.Unlock()
		fn()
		return
	}
	d.onReady = append(d.onReady, fn)
	d.mu.Unlock()
}

// MarkReady flags the document as initialized and runs OnReady callbacks.
// Later calls do nothing.
func (d *Document) MarkReady() {
	d.mu.Lock()
	if d.ready {
		d.mu.Unlock()
		return
	}
	d.ready = true
	fns := d.onReady
	d.onReady = nil
	d.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// AddCommand binds name to exec, replacing any earlier binding.
func (d *Document) AddCommand(name string, exec func() error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands[name] = exec
}

// ExecCommand runs the command bound to name.
func (d *Document) ExecCommand(name string) error {
	d.mu.Lock()
	exec, ok := d.commands[name]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return exec()
}

// Ascendant returns the closest node, starting at n itself, for which match
// returns true. The walk stops at the body.
func (d *Document) Ascendant(n *html.Node, match func(*html.Node) bool) *html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	for ; n != nil && n != d.root; n = n.Parent {
		if n.Type == html.ElementNode && match(n) {
			return n
		}
	}
	return nil
}

// ElementByID returns the first element with the given id attribute.
func (d *Document) ElementByID(id string) *html.Node {
	if id == "" {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	sel := goquery.NewDocumentFromNode(d.root).Find(`[id="` + id + `"]`)
	if sel.Length() == 0 {
		return nil
	}
	return sel.Nodes[0]
}

// Contains reports whether n is currently part of the document.
func (d *Document) Contains(n *html.Node) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attached(n)
}

// View runs fn with exclusive access to the body selection. fn must not
// modify the tree.
func (d *Document) View(fn func(body *goquery.Selection) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn(goquery.NewDocumentFromNode(d.root).Selection)
}

// Update runs fn with exclusive access to the body selection. Change
// listeners fire when fn reports a modification.
func (d *Document) Update(fn func(body *goquery.Selection) (changed bool, err error)) error {
	d.mu.Lock()
	changed, err := fn(goquery.NewDocumentFromNode(d.root).Selection)
	var out string
	if changed {
		out = renderChildren(d.root)
	}
	d.mu.Unlock()

	if changed {
		d.fireChange(out)
	}
	return err
}

func (d *Document) fireChange(data string) {
	d.mu.Lock()
	fns := make([]func(string), len(d.onChange))
	copy(fns, d.onChange)
	d.mu.Unlock()

	for _, fn := range fns {
		fn(data)
	}
}

// attached reports whether n hangs off the current root. Caller holds mu.
func (d *Document) attached(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == d.root {
			return true
		}
	}
	return false
}

func renderChildren(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			// html.Render only fails on malformed trees or writer errors,
			// neither of which a strings.Builder over a parsed tree produces.
			continue
		}
	}
	return b.String()
}
