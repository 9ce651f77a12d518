package dialog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/ziadkadry99/mathedit/internal/document"
	"github.com/ziadkadry99/mathedit/internal/engine"
	"github.com/ziadkadry99/mathedit/internal/mathid"
	"github.com/ziadkadry99/mathedit/internal/mathrender"
	"github.com/ziadkadry99/mathedit/internal/reconcile"
)

type fakeAlternate struct{}

func (fakeAlternate) ToImage(latex string, _ bool, _ float64, format engine.ImageFormat) (string, error) {
	return `<img class="math-image" src="data:image/` + string(format) + `;base64,AA==" alt="` + latex + `">`, nil
}

func (fakeAlternate) ToMathML(latex string, _ bool) (string, error) {
	return "<math><mi>" + latex + "</mi></math>", nil
}

type fakeLive struct {
	mu   sync.Mutex
	docs []string
}

func (f *fakeLive) RenderMathInDocument(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, id)
	return errors.New("widget not mounted")
}

func (f *fakeLive) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs)
}

// manualScheduler records scheduled callbacks instead of running them.
type manualScheduler struct {
	delays []time.Duration
	funcs  []func()
	live   []bool
}

func (m *manualScheduler) AfterFunc(d time.Duration, f func()) func() bool {
	i := len(m.funcs)
	m.delays = append(m.delays, d)
	m.funcs = append(m.funcs, f)
	m.live = append(m.live, true)
	return func() bool {
		was := m.live[i]
		m.live[i] = false
		return was
	}
}

// fire runs every callback that was not stopped.
func (m *manualScheduler) fire() int {
	n := 0
	for i, f := range m.funcs {
		if m.live[i] {
			m.live[i] = false
			f()
			n++
		}
	}
	return n
}

type fixture struct {
	doc   *document.Document
	ctrl  *Controller
	live  *fakeLive
	sched *manualScheduler
}

func newFixture(t *testing.T, data string) *fixture {
	t.Helper()
	doc, err := document.Parse("doc-1", data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	caps := engine.NewCapabilities()
	caps.SetAlternate(fakeAlternate{})
	live := &fakeLive{}
	caps.SetLive(live)

	reg := mathid.NewRegistry()
	ids := mathid.NewAllocator(reg, nil)
	ids.Adopt("m0042")
	sched := &manualScheduler{}
	ctrl := New(doc, mathrender.NewRenderer(ids, caps, nil), caps, Options{Scheduler: sched})
	return &fixture{doc: doc, ctrl: ctrl, live: live, sched: sched}
}

var (
	svg      = mathrender.Settings{OutputFormat: mathrender.FormatSVG, UseAlternateEngine: true, ImageScale: 1.5}
	mathlive = mathrender.Settings{OutputFormat: mathrender.FormatMathLive, UseAlternateEngine: true, ImageScale: 1.5}
)

const seeded = `<p>Area <span id="m0042" class="math-span" data-latex="x">x</span> end</p>`

func TestEditPreservesIdentity(t *testing.T) {
	f := newFixture(t, seeded)

	if err := f.ctrl.OpenFor(f.doc.ElementByID("m0042")); err != nil {
		t.Fatalf("OpenFor: %v", err)
	}
	if got := f.ctrl.Latex(); got != "x" {
		t.Fatalf("seeded latex = %q, want x", got)
	}
	if err := f.ctrl.SetLatex("y^2"); err != nil {
		t.Fatalf("SetLatex: %v", err)
	}
	res, err := f.ctrl.Confirm(svg)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if res.ID != "m0042" {
		t.Errorf("result id = %q, want m0042", res.ID)
	}

	el := f.doc.ElementByID("m0042")
	if el == nil {
		t.Fatal("m0042 disappeared")
	}
	if got := document.Attr(el, "data-latex"); got != "y^2" {
		t.Errorf("data-latex = %q, want y^2", got)
	}
	if got := document.Attr(el, "class"); got != mathrender.ClassSVG {
		t.Errorf("class = %q, want %q", got, mathrender.ClassSVG)
	}
	data := f.doc.GetData()
	if n := strings.Count(data, `id="m0042"`); n != 1 {
		t.Errorf("m0042 appears %d times in %s", n, data)
	}
	if !strings.Contains(data, "<img") || !strings.HasSuffix(data, " end</p>") {
		t.Errorf("unexpected document: %s", data)
	}
	if f.ctrl.State() != Closed {
		t.Errorf("state = %v, want closed", f.ctrl.State())
	}
}

func TestCancelLeavesDocumentUntouched(t *testing.T) {
	f := newFixture(t, seeded)
	before := f.doc.GetData()

	if err := f.ctrl.Open(); err != nil {
		t.Fatal(err)
	}
	_ = f.ctrl.SetLatex(`\sqrt{2}`)
	f.ctrl.Cancel()

	if err := f.ctrl.OpenFor(f.doc.ElementByID("m0042")); err != nil {
		t.Fatal(err)
	}
	_ = f.ctrl.SetLatex(`\alpha`)
	if _, err := f.ctrl.HandleKey("Escape", svg); err != nil {
		t.Fatal(err)
	}

	if after := f.doc.GetData(); after != before {
		t.Errorf("document changed:\nbefore %s\nafter  %s", before, after)
	}
	if f.ctrl.State() != Closed {
		t.Errorf("state = %v, want closed", f.ctrl.State())
	}
	if _, err := f.ctrl.Confirm(svg); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Confirm after cancel = %v, want ErrNotOpen", err)
	}
}

func TestConfirmEmptyIsNoop(t *testing.T) {
	f := newFixture(t, seeded)
	before := f.doc.GetData()

	_ = f.ctrl.Open()
	res, err := f.ctrl.HandleKey("Enter", svg)
	if err != nil || res != nil {
		t.Fatalf("HandleKey(Enter) = %v, %v", res, err)
	}
	if f.doc.GetData() != before {
		t.Error("empty confirm changed the document")
	}
	if f.ctrl.State() != Closed {
		t.Error("dialog still open")
	}
}

func TestInsertAtCursor(t *testing.T) {
	f := newFixture(t, `<p>one</p><p>two</p>`)

	_ = f.ctrl.Open()
	_ = f.ctrl.SetLatex(`\frac{1}{2}`)
	res, err := f.ctrl.Confirm(mathlive)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if !mathid.Valid(res.ID) || res.ID == "m0042" {
		t.Errorf("id = %q", res.ID)
	}
	want := `<p>one</p><p>two</p><span id="` + res.ID + `" class="math-span" data-latex="\frac{1}{2}">\frac{1}{2}</span>`
	if got := f.doc.GetData(); got != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}
}

func TestActivate(t *testing.T) {
	f := newFixture(t, `<p><span id="m0042" class="math-span hidden" data-latex="z"><b>z</b></span>`+
		`<math data-id="m0042"><mi>z</mi></math> <em>plain</em></p>`)

	inner := f.doc.ElementByID("m0042").FirstChild
	mi, em := findTag(f.doc, "mi"), findTag(f.doc, "em")

	ok, err := f.ctrl.Activate(inner)
	if !ok || err != nil {
		t.Fatalf("Activate(source child) = %v, %v", ok, err)
	}
	if f.ctrl.TargetID() != "m0042" || f.ctrl.Latex() != "z" {
		t.Errorf("target %q latex %q", f.ctrl.TargetID(), f.ctrl.Latex())
	}
	f.ctrl.Cancel()

	ok, err = f.ctrl.Activate(mi)
	if !ok || err != nil || f.ctrl.TargetID() != "m0042" {
		t.Fatalf("Activate(rendering) = %v, %v, target %q", ok, err, f.ctrl.TargetID())
	}
	f.ctrl.Cancel()

	ok, err = f.ctrl.Activate(em)
	if ok || err != nil {
		t.Errorf("Activate(plain text) = %v, %v", ok, err)
	}
	if f.ctrl.State() != Closed {
		t.Error("click on plain text opened the dialog")
	}
}

func findTag(doc *document.Document, tag string) (n *html.Node) {
	_ = doc.View(func(body *goquery.Selection) error {
		n = body.Find(tag).Nodes[0]
		return nil
	})
	return n
}

func TestDetachedTarget(t *testing.T) {
	f := newFixture(t, seeded)
	target := f.doc.ElementByID("m0042")
	_ = f.ctrl.OpenFor(target)
	_ = f.ctrl.SetLatex("q")

	if err := f.doc.SetData("<p>replaced</p>"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.ctrl.Confirm(svg); !errors.Is(err, ErrTargetDetached) {
		t.Errorf("Confirm = %v, want ErrTargetDetached", err)
	}
	if got := f.doc.GetData(); got != "<p>replaced</p>" {
		t.Errorf("document = %s", got)
	}
}

func TestLiveRerenderDebounced(t *testing.T) {
	f := newFixture(t, seeded)

	for _, latex := range []string{"a", "b", "c"} {
		_ = f.ctrl.Open()
		_ = f.ctrl.SetLatex(latex)
		if _, err := f.ctrl.Confirm(mathlive); err != nil {
			t.Fatal(err)
		}
	}
	if f.sched.delays[0] != DefaultRerenderDelay {
		t.Errorf("delay = %v", f.sched.delays[0])
	}
	if n := f.sched.fire(); n != 1 {
		t.Errorf("%d re-renders fired, want 1", n)
	}
	if f.live.calls() != 1 || f.live.docs[0] != "doc-1" {
		t.Errorf("live calls = %v", f.live.docs)
	}

	// non-live formats never schedule
	_ = f.ctrl.Open()
	_ = f.ctrl.SetLatex("d")
	_, _ = f.ctrl.Confirm(svg)
	if n := f.sched.fire(); n != 0 {
		t.Errorf("svg confirm scheduled %d re-renders", n)
	}
}

func TestCloseCancelsPendingRerender(t *testing.T) {
	f := newFixture(t, seeded)
	_ = f.ctrl.Open()
	_ = f.ctrl.SetLatex("a")
	if _, err := f.ctrl.Confirm(mathlive); err != nil {
		t.Fatal(err)
	}

	f.ctrl.Close()
	if n := f.sched.fire(); n != 0 {
		t.Errorf("%d re-renders fired after Close", n)
	}
	if f.live.calls() != 0 {
		t.Error("live engine called after Close")
	}
	if err := f.ctrl.Open(); !errors.Is(err, ErrClosed) {
		t.Errorf("Open after Close = %v", err)
	}
}

func TestRegisterBindsCommand(t *testing.T) {
	f := newFixture(t, seeded)
	f.ctrl.Register()
	if err := f.doc.ExecCommand(CommandInsertMath); err != nil {
		t.Fatal(err)
	}
	if f.ctrl.State() != Open || f.ctrl.TargetID() != "" {
		t.Errorf("state %v target %q", f.ctrl.State(), f.ctrl.TargetID())
	}
}

func TestRealTimerScheduler(t *testing.T) {
	doc, _ := document.Parse("doc-2", "")
	caps := engine.NewCapabilities()
	live := &fakeLive{}
	caps.SetLive(live)
	ids := mathid.NewAllocator(mathid.NewRegistry(), nil)
	ctrl := New(doc, mathrender.NewRenderer(ids, caps, nil), caps, Options{RerenderDelay: time.Millisecond})

	_ = ctrl.Open()
	_ = ctrl.SetLatex("x")
	if _, err := ctrl.Confirm(mathlive); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for live.calls() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if live.calls() != 1 {
		t.Errorf("live calls = %d, want 1", live.calls())
	}
	ctrl.Close()
}

func TestActivateImage(t *testing.T) {
	f := newFixture(t, `<p><span id="m0042" class="math-texzilla-png" data-latex="\sqrt{x}"><img class="math-image" alt="\sqrt{x}"/></span></p>`)
	img := findTag(f.doc, "img")

	ok, err := f.ctrl.Activate(img)
	if !ok || err != nil {
		t.Fatalf("Activate(img) = %v, %v", ok, err)
	}
	if f.ctrl.Latex() != `\sqrt{x}` || f.ctrl.TargetID() != "m0042" {
		t.Errorf("latex %q target %q", f.ctrl.Latex(), f.ctrl.TargetID())
	}
}

const reconciled = `<p><span id="m0042" class="math-span hidden" data-latex="x">x</span>` +
	`<math data-id="m0042"><mi>x</mi></math> end</p>`

func TestEditReconciledDropsStaleRendering(t *testing.T) {
	f := newFixture(t, reconciled)

	ok, err := f.ctrl.Activate(findTag(f.doc, "mi"))
	if !ok || err != nil {
		t.Fatalf("Activate = %v, %v", ok, err)
	}
	if err := f.ctrl.SetLatex("y"); err != nil {
		t.Fatalf("SetLatex: %v", err)
	}
	if _, err := f.ctrl.Confirm(svg); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	data := f.doc.GetData()
	if strings.Contains(data, "<math") {
		t.Errorf("stale MathML left behind: %s", data)
	}
	el := f.doc.ElementByID("m0042")
	if got := document.Attr(el, "class"); got != mathrender.ClassSVG {
		t.Errorf("class = %q, want %q", got, mathrender.ClassSVG)
	}
	if got := document.Attr(el, "data-latex"); got != "y" {
		t.Errorf("data-latex = %q, want y", got)
	}
}

func TestEditReconciledThenReconcileAgain(t *testing.T) {
	f := newFixture(t, reconciled)

	if err := f.ctrl.OpenFor(f.doc.ElementByID("m0042")); err != nil {
		t.Fatalf("OpenFor: %v", err)
	}
	_ = f.ctrl.SetLatex("y")
	if _, err := f.ctrl.Confirm(mathlive); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	el := f.doc.ElementByID("m0042")
	if document.HasClass(el, mathrender.ClassHidden) {
		t.Error("edited source is still hidden")
	}

	caps := engine.NewCapabilities()
	caps.SetAlternate(fakeAlternate{})
	r := reconcile.New(mathid.NewAllocator(mathid.NewRegistry(), nil), caps, nil)
	if rep := r.Reconcile(f.doc, ""); len(rep.Converted) != 1 || rep.Converted[0] != "m0042" {
		t.Errorf("converted = %v, want [m0042]", rep.Converted)
	}

	data := f.doc.GetData()
	if n := strings.Count(data, "<math"); n != 1 {
		t.Fatalf("%d renderings in %s", n, data)
	}
	if !strings.Contains(data, "<mi>y</mi>") || strings.Contains(data, "<mi>x</mi>") {
		t.Errorf("rendering does not follow the source: %s", data)
	}
}

func TestEditKeepsDisplayClass(t *testing.T) {
	f := newFixture(t, `<p><span id="m0042" class="math-span math-display wide" data-latex="x">x</span></p>`)

	if err := f.ctrl.OpenFor(f.doc.ElementByID("m0042")); err != nil {
		t.Fatalf("OpenFor: %v", err)
	}
	_ = f.ctrl.SetLatex("y")
	if _, err := f.ctrl.Confirm(mathlive); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	el := f.doc.ElementByID("m0042")
	if got := document.Attr(el, "class"); got != "math-span math-display wide" {
		t.Errorf("class = %q, want %q", got, "math-span math-display wide")
	}
	var display int
	_ = f.doc.View(func(body *goquery.Selection) error {
		display = body.Find(reconcile.DisplaySelector).Length()
		return nil
	})
	if display != 1 {
		t.Errorf("edited block math no longer matches the display pass")
	}
}
