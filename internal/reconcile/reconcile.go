// Package reconcile upgrades raw-source math nodes in a document to MathML.
//
// A pass looks for un-rendered source elements, converts each one with the
// alternate engine and places the resulting <math> element right after the
// source, tagged with the source id. The source element stays in the tree,
// hidden, so the original LaTeX is still there for later edits. Running a
// pass again converts nothing new: hidden sources are skipped and a rendered
// sibling with the same id is replaced rather than duplicated.
package reconcile

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/ziadkadry99/mathedit/internal/document"
	"github.com/ziadkadry99/mathedit/internal/engine"
	"github.com/ziadkadry99/mathedit/internal/mathid"
	"github.com/ziadkadry99/mathedit/internal/mathrender"
)

// Inline and display sources are disjoint: display sources are <div>s or
// carry the math-display class.
const (
	InlineSelector = `.tex:not(.hidden):not(div):not(.math-display), ` +
		`.math-span:not(.hidden):not(div):not(.math-display)`
	DisplaySelector = `div.tex:not(.hidden), .tex.math-display:not(.hidden), ` +
		`div.math-span:not(.hidden), .math-span.math-display:not(.hidden)`
)

var passes = []struct {
	selector string
	display  bool
}{
	{InlineSelector, false},
	{DisplaySelector, true},
}

// Report summarizes one pass.
type Report struct {
	Converted         []string `json:"converted"`
	Replaced          []string `json:"replaced"`
	Failed            []string `json:"failed"`
	EngineUnavailable bool     `json:"engine_unavailable"`
}

// Changed reports whether the pass modified the document.
func (r Report) Changed() bool {
	return len(r.Converted) > 0
}

// Reconciler runs passes against documents.
type Reconciler struct {
	ids    *mathid.Allocator
	caps   *engine.Capabilities
	logger *log.Logger
}

// New returns a reconciler. Missing ids are drawn from ids. A nil logger
// discards output.
func New(ids *mathid.Allocator, caps *engine.Capabilities, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Reconciler{ids: ids, caps: caps, logger: logger}
}

// Reconcile converts every un-rendered source node in doc, or only the one
// whose id is restrictToID when that is non-empty. Conversion failures are
// logged and reported per node; they never stop the pass.
func (r *Reconciler) Reconcile(doc *document.Document, restrictToID string) Report {
	var report Report

	alt, ok := r.caps.Alternate()
	if !ok {
		report.EngineUnavailable = true
		r.logger.Printf("[reconcile] [status=%q] %s", engine.ErrEngineUnavailable, doc.ID())
		return report
	}

	_ = doc.Update(func(body *goquery.Selection) (bool, error) {
		changed := false
		for _, pass := range passes {
			sel := body.Find(pass.selector)
			if restrictToID != "" {
				sel = sel.FilterFunction(func(_ int, s *goquery.Selection) bool {
					return s.AttrOr("id", "") == restrictToID
				})
			}
			sel.Each(func(_ int, el *goquery.Selection) {
				if r.convert(alt, el, pass.display, &report) {
					changed = true
				}
			})
		}
		return changed, nil
	})

	r.logger.Printf("[reconcile] [status=ok] [%d converted, %d failed] %s",
		len(report.Converted), len(report.Failed), doc.ID())
	return report
}

// convert handles one source element and reports whether the tree changed.
func (r *Reconciler) convert(alt engine.Alternate, el *goquery.Selection, display bool, report *Report) bool {
	latex := strings.TrimSpace(el.AttrOr(mathrender.AttrLatex, ""))
	if latex == "" {
		latex = strings.TrimSpace(el.Text())
	}
	if latex == "" {
		return false
	}

	changed := false
	id := el.AttrOr("id", "")
	if id == "" {
		id = r.ids.Allocate()
		el.SetAttr("id", id)
		changed = true
	} else {
		r.ids.Adopt(id)
	}

	existing := el.Parent().ChildrenFiltered(`math[` + mathrender.AttrID + `="` + id + `"]`)

	mathNode, err := toMathNode(alt, latex, display, el.Nodes[0].Parent)
	if err != nil {
		r.logger.Printf("[reconcile] [status=%q] %s", err, id)
		report.Failed = append(report.Failed, id)
		// A stale rendering of an older source would contradict the
		// visible LaTeX; drop it so the node reads as a plain placeholder.
		if existing.Length() > 0 {
			existing.Remove()
			changed = true
		}
		return changed
	}
	mathNode.Attr = append(mathNode.Attr, html.Attribute{Key: mathrender.AttrID, Val: id})

	if existing.Length() > 0 {
		existing.First().ReplaceWithNodes(mathNode)
		existing.Slice(1, existing.Length()).Remove()
		report.Replaced = append(report.Replaced, id)
	} else {
		el.AfterNodes(mathNode)
	}
	el.AddClass(mathrender.ClassHidden)
	report.Converted = append(report.Converted, id)
	return true
}

func toMathNode(alt engine.Alternate, latex string, display bool, parent *html.Node) (n *html.Node, err error) {
	defer func() {
		if p := recover(); p != nil {
			n, err = nil, fmt.Errorf("%w: %v", engine.ErrConversion, p)
		}
	}()

	markup, err := alt.ToMathML(latex, display)
	if err != nil {
		return nil, err
	}
	n, err = document.ParseElement(markup, parent)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrConversion, err)
	}
	if n.Data != "math" {
		return nil, fmt.Errorf("%w: expected <math>, got <%s>", engine.ErrConversion, n.Data)
	}
	return n, nil
}

// RenderAll brings every math node in doc up to date for s. In live widget
// mode the browser-side engine re-renders the document; otherwise a
// reconciliation pass runs when the alternate engine is enabled.
func (r *Reconciler) RenderAll(ctx context.Context, doc *document.Document, s mathrender.Settings, restrictToID string) (Report, error) {
	if s.LiveWidget() {
		live, ok := r.caps.Live()
		if !ok {
			return Report{EngineUnavailable: true}, nil
		}
		if err := live.RenderMathInDocument(ctx, doc.ID()); err != nil {
			return Report{}, fmt.Errorf("live render of %s: %w", doc.ID(), err)
		}
		return Report{}, nil
	}
	if !s.UseAlternateEngine {
		return Report{}, nil
	}
	return r.Reconcile(doc, restrictToID), nil
}

// AdoptIDs registers every math id already present in doc with ids, both on
// source elements and on MathML renderings, and returns how many were new.
func AdoptIDs(doc *document.Document, ids *mathid.Allocator) int {
	n := 0
	_ = doc.View(func(body *goquery.Selection) error {
		body.Find("[id]").Each(func(_ int, el *goquery.Selection) {
			if id, _ := el.Attr("id"); mathid.Valid(id) && ids.Adopt(id) {
				n++
			}
		})
		body.Find("math[" + mathrender.AttrID + "]").Each(func(_ int, el *goquery.Selection) {
			if id, _ := el.Attr(mathrender.AttrID); mathid.Valid(id) && ids.Adopt(id) {
				n++
			}
		})
		return nil
	})
	return n
}
