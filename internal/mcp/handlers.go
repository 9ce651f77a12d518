package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/mathedit/internal/document"
	"github.com/ziadkadry99/mathedit/internal/mathid"
	"github.com/ziadkadry99/mathedit/internal/mathrender"
	"github.com/ziadkadry99/mathedit/internal/reconcile"
)

// handleRenderLatex renders one expression and returns the Result as JSON.
func (s *Server) handleRenderLatex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	latex, err := request.RequireString("latex")
	if err != nil || strings.TrimSpace(latex) == "" {
		return mcp.NewToolResultError("missing required parameter: latex"), nil
	}

	settings := s.defaults
	if f := request.GetString("format", ""); f != "" {
		format, err := mathrender.ParseFormat(f)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		settings.OutputFormat = format
	}

	ids := mathid.NewAllocator(mathid.NewRegistry(), nil)
	renderer := mathrender.NewRenderer(ids, s.caps, s.logger)

	var res mathrender.Result
	if id := request.GetString("id", ""); id != "" {
		res = renderer.RenderWithID(settings, id, latex)
	} else {
		res = renderer.Render(settings, latex)
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// handleReconcileHTML runs a reconciliation pass over an HTML fragment.
func (s *Server) handleReconcileHTML(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	markup, err := request.RequireString("html")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: html"), nil
	}
	return s.reconcileText(markup), nil
}

// handleConvertMarkdown converts markdown, then reconciles its math.
func (s *Server) handleConvertMarkdown(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src, err := request.RequireString("markdown")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: markdown"), nil
	}
	doc, err := s.conv.Convert([]byte(src))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("converting markdown: %v", err)), nil
	}
	return s.reconcileText(doc.HTML), nil
}

func (s *Server) reconcileText(markup string) *mcp.CallToolResult {
	doc, err := document.Parse("mcp", markup)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("parsing html: %v", err))
	}
	ids := mathid.NewAllocator(mathid.NewRegistry(), nil)
	reconcile.AdoptIDs(doc, ids)
	report := reconcile.New(ids, s.caps, s.logger).Reconcile(doc, "")
	if report.EngineUnavailable {
		return mcp.NewToolResultError("math engine is not available")
	}
	return mcp.NewToolResultText(formatReconciled(doc.GetData(), report))
}

// formatReconciled renders the reconciled HTML followed by a short summary.
func formatReconciled(markup string, report reconcile.Report) string {
	var b strings.Builder
	b.WriteString(markup)
	fmt.Fprintf(&b, "\n\n<!-- %d converted, %d failed", len(report.Converted), len(report.Failed))
	if len(report.Failed) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(report.Failed, ", "))
	}
	b.WriteString(" -->\n")
	return b.String()
}
