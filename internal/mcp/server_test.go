package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/mathedit/internal/engine"
	"github.com/ziadkadry99/mathedit/internal/mathrender"
)

type mockEngine struct{}

func (mockEngine) ToMathML(latex string, display bool) (string, error) {
	if latex == "bad" {
		return "", engine.ErrConversion
	}
	return "<math><mi>" + latex + "</mi></math>", nil
}

func (mockEngine) ToImage(latex string, _ bool, _ float64, format engine.ImageFormat) (string, error) {
	return `<img src="data:image/` + string(format) + `;base64,AA==" alt="` + latex + `">`, nil
}

func newTestServer(withEngine bool) *Server {
	caps := engine.NewCapabilities()
	if withEngine {
		caps.SetAlternate(mockEngine{})
	}
	return NewServer(caps, mathrender.DefaultSettings(), nil)
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", result.Content[0])
	}
	return text.Text
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		name     string
		tool     mcp.Tool
		wantName string
	}{
		{"render_latex", renderLatexTool, "render_latex"},
		{"reconcile_html", reconcileHTMLTool, "reconcile_html"},
		{"convert_markdown", convertMarkdownTool, "convert_markdown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.tool.Name != tt.wantName {
				t.Errorf("tool name = %q, want %q", tt.tool.Name, tt.wantName)
			}
			if tt.tool.Description == "" {
				t.Error("tool description should not be empty")
			}
		})
	}
}

func TestNewServer(t *testing.T) {
	srv := newTestServer(true)
	if srv.mcp == nil {
		t.Fatal("MCP server not initialized")
	}
	if srv.defaults != mathrender.DefaultSettings() {
		t.Errorf("defaults = %+v", srv.defaults)
	}
}

func TestHandleRenderLatex(t *testing.T) {
	ctx := context.Background()

	t.Run("svg", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"latex": `\frac{1}{2}`, "id": "m0042"}
		result, err := newTestServer(true).handleRenderLatex(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError {
			t.Fatalf("unexpected tool error: %v", result.Content)
		}
		var res mathrender.Result
		if err := json.Unmarshal([]byte(resultText(t, result)), &res); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if res.ID != "m0042" || res.Kind != mathrender.KindImageSVG {
			t.Errorf("got %+v", res)
		}
	})

	t.Run("fallback without engine", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"latex": `\frac{1}{2}`}
		result, _ := newTestServer(false).handleRenderLatex(ctx, req)
		var res mathrender.Result
		json.Unmarshal([]byte(resultText(t, result)), &res)
		if res.Kind != mathrender.KindRawSpan {
			t.Errorf("Kind = %q, want raw span", res.Kind)
		}
	})

	t.Run("bad format", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"latex": "x", "format": "gif"}
		result, _ := newTestServer(true).handleRenderLatex(ctx, req)
		if !result.IsError {
			t.Error("expected error for unknown format")
		}
	})

	t.Run("missing latex", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{}
		result, _ := newTestServer(true).handleRenderLatex(ctx, req)
		if !result.IsError {
			t.Error("expected error for missing latex")
		}
	})
}

func TestHandleReconcileHTML(t *testing.T) {
	ctx := context.Background()

	t.Run("partial failure", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{
			"html": `<p><span class="tex">a</span> <span id="m0007" class="tex">bad</span></p>`,
		}
		result, err := newTestServer(true).handleReconcileHTML(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		text := resultText(t, result)
		if strings.Count(text, "<math") != 1 {
			t.Errorf("expected one math element:\n%s", text)
		}
		if !strings.Contains(text, "1 converted, 1 failed: m0007") {
			t.Errorf("summary missing:\n%s", text)
		}
	})

	t.Run("engine unavailable", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"html": `<span class="tex">a</span>`}
		result, _ := newTestServer(false).handleReconcileHTML(ctx, req)
		if !result.IsError {
			t.Error("expected error without engine")
		}
	})
}

func TestHandleConvertMarkdown(t *testing.T) {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"markdown": "# T\n\nInline $x$ here.\n"}
	result, err := newTestServer(true).handleConvertMarkdown(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "<h1") || !strings.Contains(text, "<math") {
		t.Errorf("unexpected output:\n%s", text)
	}
}
