package batch

import (
	"strings"
	"testing"
)

func TestParsePageFragment(t *testing.T) {
	src := `<p>a <span class="tex">x</span></p>`
	p, err := ParsePage(src)
	if err != nil {
		t.Fatalf("ParsePage: %v", err)
	}
	if p.Content() != src {
		t.Errorf("Content = %q, want source unchanged", p.Content())
	}
	out, err := p.Render("<p>b</p>")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "<p>b</p>" {
		t.Errorf("Render = %q", out)
	}
}

func TestParsePageFullDocument(t *testing.T) {
	src := "<!DOCTYPE html>\n<html><head><title>T</title></head><body><p>a</p></body></html>"
	p, err := ParsePage(src)
	if err != nil {
		t.Fatalf("ParsePage: %v", err)
	}
	if got := p.Content(); got != "<p>a</p>" {
		t.Errorf("Content = %q, want body only", got)
	}
	out, err := p.Render(`<p>b</p>`)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := "<!DOCTYPE html><html><head><title>T</title></head><body><p>b</p></body></html>"
	if out != want {
		t.Errorf("Render = %q, want %q", out, want)
	}
}

func TestMarkdownPageEscapesTitle(t *testing.T) {
	out := markdownPage("a < b", "<p>x</p>")
	if !strings.Contains(out, "<title>a &lt; b</title>") {
		t.Errorf("title not escaped:\n%s", out)
	}
}
