// Package dialog implements the insert/edit math dialog that sits between
// the editor toolbar and the renderer.
package dialog

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/ziadkadry99/mathedit/internal/document"
	"github.com/ziadkadry99/mathedit/internal/engine"
	"github.com/ziadkadry99/mathedit/internal/mathrender"
)

// CommandInsertMath is the editor command bound to the toolbar button.
const CommandInsertMath = "insertMath"

// DefaultRerenderDelay is how long after a confirm the live re-render fires.
const DefaultRerenderDelay = 100 * time.Millisecond

var (
	ErrNotOpen        = errors.New("math dialog is not open")
	ErrTargetDetached = errors.New("edited math node is no longer in the document")
	ErrClosed         = errors.New("math dialog has been torn down")
)

// State is the dialog lifecycle state.
type State int

const (
	Closed State = iota
	Open
)

func (s State) String() string {
	if s == Open {
		return "open"
	}
	return "closed"
}

// Editor is the part of the host editor the dialog drives.
type Editor interface {
	document.Host
	ID() string
	ElementByID(id string) *html.Node
	Contains(n *html.Node) bool
	Update(fn func(body *goquery.Selection) (bool, error)) error
}

// Scheduler runs f after d. The returned function cancels it.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

type timerScheduler struct{}

func (timerScheduler) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Options tunes a Controller. Zero values pick defaults.
type Options struct {
	RerenderDelay time.Duration
	Scheduler     Scheduler
	Logger        *log.Logger
}

// Controller is one editor's math dialog.
type Controller struct {
	editor   Editor
	renderer *mathrender.Renderer
	caps     *engine.Capabilities
	delay    time.Duration
	sched    Scheduler
	logger   *log.Logger

	mu      sync.Mutex
	state   State
	latex   string
	target  *html.Node
	pending func() bool
	torn    bool
}

// New returns a closed dialog for editor.
func New(editor Editor, renderer *mathrender.Renderer, caps *engine.Capabilities, opts Options) *Controller {
	c := &Controller{
		editor:   editor,
		renderer: renderer,
		caps:     caps,
		delay:    opts.RerenderDelay,
		sched:    opts.Scheduler,
		logger:   opts.Logger,
	}
	if c.delay <= 0 {
		c.delay = DefaultRerenderDelay
	}
	if c.sched == nil {
		c.sched = timerScheduler{}
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard, "", 0)
	}
	return c
}

// Register binds the insert-math toolbar command on the editor.
func (c *Controller) Register() {
	c.editor.AddCommand(CommandInsertMath, func() error {
		return c.Open()
	})
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Latex returns the expression currently in the input.
func (c *Controller) Latex() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latex
}

// TargetID returns the id of the node being edited, or "" for an insert.
func (c *Controller) TargetID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.target == nil {
		return ""
	}
	return document.Attr(c.target, "id")
}

// Open starts an insert with a blank input. An already open dialog is
// discarded first.
func (c *Controller) Open() error {
	return c.open("", nil)
}

// OpenFor starts an edit of target, seeding the input with its source.
func (c *Controller) OpenFor(target *html.Node) error {
	if target == nil || !c.editor.Contains(target) {
		return ErrTargetDetached
	}
	latex := document.Attr(target, mathrender.AttrLatex)
	if latex == "" {
		latex = strings.TrimSpace(document.Text(target))
	}
	return c.open(latex, target)
}

func (c *Controller) open(latex string, target *html.Node) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.torn {
		return ErrClosed
	}
	c.state, c.latex, c.target = Open, latex, target
	return nil
}

// Activate handles a click on n. If n sits inside a math span (raw source
// or image), or inside a MathML rendering tagged with a source id, the
// dialog opens on that span and Activate reports true.
func (c *Controller) Activate(n *html.Node) (bool, error) {
	src := c.editor.Ascendant(n, isMathElement)
	if src == nil {
		rendered := c.editor.Ascendant(n, func(el *html.Node) bool {
			return el.Data == "math" && document.Attr(el, mathrender.AttrID) != ""
		})
		if rendered != nil {
			src = c.editor.ElementByID(document.Attr(rendered, mathrender.AttrID))
		}
	}
	if src == nil {
		return false, nil
	}
	return true, c.OpenFor(src)
}

func isMathElement(n *html.Node) bool {
	return document.HasClass(n, mathrender.ClassSource) ||
		document.HasClass(n, mathrender.ClassSVG) ||
		document.HasClass(n, mathrender.ClassPNG)
}

// SetLatex replaces the input.
func (c *Controller) SetLatex(latex string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Open {
		return ErrNotOpen
	}
	c.latex = latex
	return nil
}

// HandleKey maps Enter to Confirm and Escape to Cancel; other keys are
// ignored. The result is non-nil only when Enter inserted or updated math.
func (c *Controller) HandleKey(key string, s mathrender.Settings) (*mathrender.Result, error) {
	switch key {
	case "Enter":
		return c.Confirm(s)
	case "Escape":
		c.Cancel()
	}
	return nil, nil
}

// Confirm closes the dialog and applies the input under s. Blank input just
// closes. An insert goes to the editor cursor; an edit rewrites the target
// in place and keeps its id. In live widget mode a debounced document
// re-render is scheduled afterwards.
func (c *Controller) Confirm(s mathrender.Settings) (*mathrender.Result, error) {
	c.mu.Lock()
	if c.state != Open {
		c.mu.Unlock()
		return nil, ErrNotOpen
	}
	latex, target := c.latex, c.target
	c.state, c.latex, c.target = Closed, "", nil
	c.mu.Unlock()

	if strings.TrimSpace(latex) == "" {
		return nil, nil
	}

	var res mathrender.Result
	if target == nil {
		res = c.renderer.Render(s, latex)
		if err := c.editor.InsertHTML(res.HTML); err != nil {
			return nil, err
		}
	} else {
		if !c.editor.Contains(target) {
			return nil, ErrTargetDetached
		}
		if id := document.Attr(target, "id"); id != "" {
			res = c.renderer.RenderWithID(s, id, latex)
		} else {
			res = c.renderer.Render(s, latex)
		}
		if err := c.replace(target, res); err != nil {
			return nil, err
		}
	}

	if s.LiveWidget() {
		c.scheduleRerender()
	}
	return &res, nil
}

// representationClasses are swapped on edit; any other class on the target,
// such as math-display, stays.
var representationClasses = map[string]bool{
	mathrender.ClassSource: true,
	mathrender.ClassTeX:    true,
	mathrender.ClassSVG:    true,
	mathrender.ClassPNG:    true,
	mathrender.ClassHidden: true,
}

// replace rewrites target's content, class and source with res, and drops
// the MathML renderings of its old source.
func (c *Controller) replace(target *html.Node, res mathrender.Result) error {
	return c.editor.Update(func(*goquery.Selection) (bool, error) {
		rendered, err := document.ParseElement(res.HTML, target.Parent)
		if err != nil {
			return false, err
		}
		if old := document.Attr(target, "id"); old != "" && target.Parent != nil {
			document.Select(target.Parent).
				ChildrenFiltered(`math[` + mathrender.AttrID + `="` + old + `"]`).
				Remove()
		}
		for ch := target.FirstChild; ch != nil; {
			next := ch.NextSibling
			target.RemoveChild(ch)
			ch = next
		}
		for ch := rendered.FirstChild; ch != nil; {
			next := ch.NextSibling
			rendered.RemoveChild(ch)
			target.AppendChild(ch)
			ch = next
		}
		document.Select(target).
			SetAttr("id", res.ID).
			SetAttr("class", mergeClass(target, rendered)).
			SetAttr(mathrender.AttrLatex, res.Latex)
		return true, nil
	})
}

// mergeClass returns rendered's classes followed by target's
// non-representation classes.
func mergeClass(target, rendered *html.Node) string {
	classes := strings.Fields(document.Attr(rendered, "class"))
	seen := make(map[string]bool, len(classes))
	for _, cls := range classes {
		seen[cls] = true
	}
	for _, cls := range strings.Fields(document.Attr(target, "class")) {
		if !representationClasses[cls] && !seen[cls] {
			seen[cls] = true
			classes = append(classes, cls)
		}
	}
	return strings.Join(classes, " ")
}

// Cancel closes the dialog without touching the document.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state, c.latex, c.target = Closed, "", nil
}

// Close tears the dialog down: it cancels any open interaction and any
// pending re-render. Later Open calls fail with ErrClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state, c.latex, c.target = Closed, "", nil
	c.torn = true
	if c.pending != nil {
		c.pending()
		c.pending = nil
	}
}

func (c *Controller) scheduleRerender() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.torn {
		return
	}
	if c.pending != nil {
		c.pending()
	}
	c.pending = c.sched.AfterFunc(c.delay, c.rerender)
}

// rerender is best effort: a missing engine or a failed render is ignored.
func (c *Controller) rerender() {
	c.mu.Lock()
	c.pending = nil
	torn := c.torn
	c.mu.Unlock()
	if torn {
		return
	}

	live, ok := c.caps.Live()
	if !ok {
		return
	}
	if err := live.RenderMathInDocument(context.Background(), c.editor.ID()); err != nil {
		c.logger.Printf("[dialog  ] [status=%q] live render %s", err, c.editor.ID())
	}
}
