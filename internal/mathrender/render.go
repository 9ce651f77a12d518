// Package mathrender turns LaTeX into the markup stored in documents.
//
// Every expression first exists as a placeholder span carrying its source:
//
//	<span id="m0042" class="math-span" data-latex="x^2">x^2</span>
//
// The placeholder is always safe to emit and is picked up later either by
// the live widget engine in the browser or by a reconciliation pass. When an
// alternate engine is loaded and an image format is selected, the renderer
// emits the image wrapped in a span that still carries the source.
package mathrender

import (
	"fmt"
	"io"
	"log"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/ziadkadry99/mathedit/internal/document"
	"github.com/ziadkadry99/mathedit/internal/engine"
	"github.com/ziadkadry99/mathedit/internal/mathid"
)

// Kind identifies which representation a math node holds.
type Kind string

const (
	KindRawSpan    Kind = "raw-span"
	KindImageSVG   Kind = "image-svg"
	KindImagePNG   Kind = "image-png"
	KindMathML     Kind = "mathml"
	KindLiveWidget Kind = "live-widget"
)

// Markup vocabulary shared with the reconciler and the editor page.
const (
	ClassSource  = "math-span"
	ClassTeX     = "tex"
	ClassDisplay = "math-display"
	ClassSVG     = "math-texzilla-svg"
	ClassPNG     = "math-texzilla-png"
	ClassHidden  = "hidden"
	AttrLatex    = "data-latex"
	AttrID       = "data-id"
)

// Result is one rendered expression.
type Result struct {
	ID    string `json:"id"`
	Latex string `json:"latex"`
	Kind  Kind   `json:"kind"`
	HTML  string `json:"html"`
}

// Renderer produces markup under explicit Settings.
type Renderer struct {
	ids    *mathid.Allocator
	caps   *engine.Capabilities
	logger *log.Logger
}

// NewRenderer returns a renderer drawing ids from ids and engines from caps.
// A nil logger discards output.
func NewRenderer(ids *mathid.Allocator, caps *engine.Capabilities, logger *log.Logger) *Renderer {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Renderer{ids: ids, caps: caps, logger: logger}
}

// Render renders latex under a freshly allocated id.
func (r *Renderer) Render(s Settings, latex string) Result {
	return r.RenderWithID(s, r.ids.Allocate(), latex)
}

// RenderWithID renders latex for an existing node, keeping its id.
// It never fails: engine trouble degrades to the placeholder.
func (r *Renderer) RenderWithID(s Settings, id, latex string) Result {
	if !s.UseAlternateEngine || s.LiveWidget() {
		kind := KindRawSpan
		if s.LiveWidget() {
			kind = KindLiveWidget
		}
		return Result{ID: id, Latex: latex, Kind: kind, HTML: Placeholder(id, latex)}
	}

	res, err := r.renderImage(s, id, latex)
	if err != nil {
		r.logger.Printf("[render  ] [status=%q] %s", err, id)
		return Result{ID: id, Latex: latex, Kind: KindRawSpan, HTML: Placeholder(id, latex)}
	}
	return res
}

func (r *Renderer) renderImage(s Settings, id, latex string) (res Result, err error) {
	alt, ok := r.caps.Alternate()
	if !ok {
		return Result{}, engine.ErrEngineUnavailable
	}

	var (
		format engine.ImageFormat
		class  string
		kind   Kind
	)
	switch s.OutputFormat {
	case FormatSVG:
		format, class, kind = engine.ImageSVG, ClassSVG, KindImageSVG
	case FormatPNG:
		format, class, kind = engine.ImagePNG, ClassPNG, KindImagePNG
	default:
		return Result{}, fmt.Errorf("no image form for output format %q", s.OutputFormat)
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", engine.ErrConversion, p)
		}
	}()

	img, err := alt.ToImage(latex, false, s.ImageScale, format)
	if err != nil {
		return Result{}, err
	}

	wrapper := newSpan(id, class, latex)
	imgNode, err := document.ParseElement(img, wrapper)
	if err != nil {
		return Result{}, fmt.Errorf("%w: engine returned unusable markup: %v", engine.ErrConversion, err)
	}
	wrapper.AppendChild(imgNode)

	return Result{ID: id, Latex: latex, Kind: kind, HTML: render(wrapper)}, nil
}

// Placeholder returns the raw-source span for latex.
func Placeholder(id, latex string) string {
	n := newSpan(id, ClassSource, latex)
	n.AppendChild(&html.Node{Type: html.TextNode, Data: latex})
	return render(n)
}

func newSpan(id, class, latex string) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     "span",
		DataAtom: atom.Span,
		Attr: []html.Attribute{
			{Key: "id", Val: id},
			{Key: "class", Val: class},
			{Key: AttrLatex, Val: latex},
		},
	}
}

func render(n *html.Node) string {
	var b strings.Builder
	if err := html.Render(&b, n); err != nil {
		return ""
	}
	return b.String()
}
