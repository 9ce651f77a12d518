package mcp

import (
	"io"
	"log"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/mathedit/internal/engine"
	"github.com/ziadkadry99/mathedit/internal/markdown"
	"github.com/ziadkadry99/mathedit/internal/mathrender"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes the math pipeline as tools.
type Server struct {
	caps     *engine.Capabilities
	defaults mathrender.Settings
	conv     *markdown.Converter
	logger   *log.Logger
	mcp      *server.MCPServer
}

// NewServer creates an MCP server. defaults applies when a tool call does
// not pick a format. Logging must not go to stdout, which carries the
// protocol; a nil logger discards.
func NewServer(caps *engine.Capabilities, defaults mathrender.Settings, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Server{
		caps:     caps,
		defaults: defaults,
		conv:     markdown.NewConverter(),
		logger:   logger,
	}

	s.mcp = server.NewMCPServer(
		"mathedit",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(renderLatexTool, s.handleRenderLatex)
	s.mcp.AddTool(reconcileHTMLTool, s.handleReconcileHTML)
	s.mcp.AddTool(convertMarkdownTool, s.handleConvertMarkdown)
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
