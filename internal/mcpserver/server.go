// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Chasqui pages for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/chasqui/internal/apperr"
	"github.com/starford/chasqui/internal/engine"
	"github.com/starford/chasqui/internal/models"
)

const formatURI = "chasqui://frontmatter-format"

// Pages is the subset of the sync engine the MCP tools use.
type Pages interface {
	ListPages() []models.Page
	GetPage(id string) (models.Page, error)
	Backlinks(id string) ([]models.Page, error)
	Route(id string) string
	RunFullSync(ctx context.Context) (engine.Summary, error)
}

// Server wraps the MCP server with Chasqui tools.
type Server struct {
	mcp   *server.MCPServer
	pages Pages
}

// New creates a new MCP server with all Chasqui tools registered.
func New(pages Pages, version string) *Server {
	s := &Server{pages: pages}

	s.mcp = server.NewMCPServer(
		"Chasqui",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_pages",
		mcp.WithDescription("List published pages (identifier, name and route), optionally filtered by tag."),
		mcp.WithString("tag", mcp.Description("Optional tag to filter by")),
	), s.listPages)

	s.mcp.AddTool(mcp.NewTool("get_page",
		mcp.WithDescription("Get one page by identifier: metadata, Markdown source and rendered HTML."),
		mcp.WithString("identifier", mcp.Required(), mcp.Description("Page identifier (e.g. guides/setup); empty for the home page")),
	), s.getPage)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all pages that link to the specified page."),
		mcp.WithString("identifier", mcp.Required(), mcp.Description("Identifier of the page to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("resync",
		mcp.WithDescription("Run a full sync of the content directory and report what changed."),
	), s.resync)

	s.mcp.AddTool(mcp.NewTool("get_frontmatter_format",
		mcp.WithDescription("Returns the page format contract. "+
			"Read it before writing content files so identifiers and links resolve."),
	), s.getFormat)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Page Format",
			mcp.WithResourceDescription("Frontmatter fields and link rules for content files."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type pageSummary struct {
	Identifier string   `json:"identifier"`
	Name       string   `json:"name,omitempty"`
	Route      string   `json:"route"`
	Tags       []string `json:"tags,omitempty"`
}

func (s *Server) summarize(p models.Page) pageSummary {
	return pageSummary{
		Identifier: p.Identifier,
		Name:       p.Name,
		Route:      s.pages.Route(p.Identifier),
		Tags:       p.Tags,
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag := req.GetString("tag", "")

	out := []pageSummary{}
	for _, p := range s.pages.ListPages() {
		if tag != "" && !p.HasTag(tag) {
			continue
		}
		out = append(out, s.summarize(p))
	}
	return jsonResult(out)
}

func (s *Server) getPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("identifier", "")
	p, err := s.pages.GetPage(id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(struct {
		pageSummary
		Filename    string `json:"filename"`
		MDContent   string `json:"md_content"`
		HTMLContent string `json:"html_content"`
	}{s.summarize(p), p.Filename, p.MDContent, p.HTMLContent})
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("identifier")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.pages.Backlinks(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	ids := make([]string, 0, len(bl))
	for _, p := range bl {
		ids = append(ids, p.Identifier)
	}
	return mcp.NewToolResultText(strings.Join(ids, "\n")), nil
}

func (s *Server) resync(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sum, err := s.pages.RunFullSync(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	failed := make([]string, 0, len(sum.Failed))
	for _, f := range sum.Failed {
		failed = append(failed, f.Error())
	}
	return jsonResult(map[string]any{
		"upserted": len(sum.Upserted),
		"deleted":  len(sum.Deleted),
		"rendered": sum.Rendered,
		"reused":   sum.Reused,
		"failed":   failed,
	})
}

func (s *Server) getFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(FrontmatterFormat), nil
}

func (s *Server) readFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     FrontmatterFormat,
		},
	}, nil
}
