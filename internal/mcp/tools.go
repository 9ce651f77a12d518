package mcp

import "github.com/mark3labs/mcp-go/mcp"

// renderLatexTool defines the render_latex MCP tool.
var renderLatexTool = mcp.NewTool("render_latex",
	mcp.WithDescription("Render a LaTeX expression to the HTML stored in editor documents. Falls back to a raw-source span when the engine cannot convert it."),
	mcp.WithString("latex",
		mcp.Required(),
		mcp.Description("LaTeX source, without $ delimiters"),
	),
	mcp.WithString("format",
		mcp.Description("Output format (default from configuration)"),
		mcp.Enum("mathlive", "svg", "png"),
	),
	mcp.WithString("id",
		mcp.Description("Existing math id to keep, e.g. m0042; a fresh one is allocated when omitted"),
	),
)

// reconcileHTMLTool defines the reconcile_html MCP tool.
var reconcileHTMLTool = mcp.NewTool("reconcile_html",
	mcp.WithDescription("Convert every raw-source math node (.tex or .math-span) in an HTML fragment to MathML, keeping the source hidden for later edits."),
	mcp.WithString("html",
		mcp.Required(),
		mcp.Description("HTML fragment containing math nodes"),
	),
)

// convertMarkdownTool defines the convert_markdown MCP tool.
var convertMarkdownTool = mcp.NewTool("convert_markdown",
	mcp.WithDescription("Convert markdown with $...$ and $$...$$ math to HTML, with math rendered as MathML."),
	mcp.WithString("markdown",
		mcp.Required(),
		mcp.Description("Markdown source, optionally with YAML front matter"),
	),
)
