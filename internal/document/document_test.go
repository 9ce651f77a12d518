package document

import (
	"errors"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func TestSetDataGetDataRoundTrip(t *testing.T) {
	d := New("doc")
	data := `<p>Hello <span id="m0001" class="math-span" data-latex="x^2">x^2</span></p>`
	if err := d.SetData(data); err != nil {
		t.Fatal(err)
	}
	if got := d.GetData(); got != data {
		t.Errorf("GetData = %s", got)
	}
}

func TestInsertHTMLAtCursor(t *testing.T) {
	d, err := Parse("doc", `<p>one</p><p>two</p>`)
	if err != nil {
		t.Fatal(err)
	}

	if err := d.InsertHTML(`<b>end</b>`); err != nil {
		t.Fatal(err)
	}
	if got, want := d.GetData(), `<p>one</p><p>two</p><b>end</b>`; got != want {
		t.Errorf("got %s, want %s", got, want)
	}

	var first *html.Node
	_ = d.View(func(body *goquery.Selection) error {
		first = body.Find("p").Nodes[0]
		return nil
	})
	if !d.MoveCursorAfter(first) {
		t.Fatal("MoveCursorAfter refused an attached node")
	}
	_ = d.InsertHTML(`<i>a</i>`)
	_ = d.InsertHTML(`<i>b</i>`)
	if got, want := d.GetData(), `<p>one</p><i>a</i><i>b</i><p>two</p><b>end</b>`; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestInsertHTMLAfterDetachedCursor(t *testing.T) {
	d, _ := Parse("doc", `<p id="x">one</p>`)
	x := d.ElementByID("x")
	d.MoveCursorAfter(x)
	_ = d.SetData(`<p>fresh</p>`)

	if d.MoveCursorAfter(x) {
		t.Error("MoveCursorAfter accepted a detached node")
	}
	_ = d.InsertHTML(`<hr>`)
	if got, want := d.GetData(), `<p>fresh</p><hr/>`; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestOnChangeAndReady(t *testing.T) {
	d := New("doc")
	var changes []string
	d.OnChange(func(data string) { changes = append(changes, data) })

	readies := 0
	d.OnReady(func() { readies++ })
	if readies != 0 {
		t.Fatal("OnReady ran before the document was ready")
	}
	d.MarkReady()
	d.MarkReady()
	d.OnReady(func() { readies++ })
	if readies != 2 {
		t.Errorf("ready callbacks ran %d times, want 2", readies)
	}

	_ = d.SetData("<p>a</p>")
	_ = d.InsertHTML("<p>b</p>")
	_ = d.Update(func(*goquery.Selection) (bool, error) { return false, nil })
	_ = d.Update(func(body *goquery.Selection) (bool, error) {
		body.Find("p").First().SetAttr("class", "c")
		return true, nil
	})
	want := []string{"<p>a</p>", "<p>a</p><p>b</p>", `<p class="c">a</p><p>b</p>`}
	if len(changes) != len(want) {
		t.Fatalf("changes = %q", changes)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("change %d = %s, want %s", i, changes[i], want[i])
		}
	}
}

func TestCommands(t *testing.T) {
	d := New("doc")
	ran := false
	d.AddCommand("insertMath", func() error { ran = true; return nil })
	if err := d.ExecCommand("insertMath"); err != nil || !ran {
		t.Errorf("ExecCommand = %v, ran = %v", err, ran)
	}
	if err := d.ExecCommand("bold"); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("ExecCommand(bold) = %v", err)
	}
}

func TestAscendant(t *testing.T) {
	d, _ := Parse("doc", `<div class="outer"><p><span class="math-span" id="m0001"><b>x</b></span></p></div>`)
	b := d.ElementByID("m0001").FirstChild

	isSpan := func(n *html.Node) bool { return HasClass(n, "math-span") }
	if got := d.Ascendant(b, isSpan); got == nil || Attr(got, "id") != "m0001" {
		t.Errorf("Ascendant = %v", got)
	}
	if got := d.Ascendant(d.ElementByID("m0001"), isSpan); got == nil {
		t.Error("Ascendant does not include the start node")
	}
	if got := d.Ascendant(b, func(n *html.Node) bool { return n.Data == "body" }); got != nil {
		t.Error("Ascendant walked past the document root")
	}
	if got := d.Ascendant(b, func(n *html.Node) bool { return HasClass(n, "outer") }); got == nil {
		t.Error("Ascendant missed the outer div")
	}
}

func TestParseElement(t *testing.T) {
	n, err := ParseElement("  <math display=\"block\"><mi>x</mi></math>\n", nil)
	if err != nil {
		t.Fatal(err)
	}
	if n.Data != "math" || Attr(n, "display") != "block" {
		t.Errorf("got %s", OuterHTML(n))
	}
	if Text(n) != "x" {
		t.Errorf("Text = %q", Text(n))
	}
	if _, err := ParseElement("just text", nil); !errors.Is(err, ErrNoElement) {
		t.Errorf("ParseElement(text) = %v", err)
	}
}
