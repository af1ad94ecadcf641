package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/chasqui/internal/cache"
	"github.com/starford/chasqui/internal/engine"
	"github.com/starford/chasqui/internal/manifest"
	"github.com/starford/chasqui/internal/testutil"
)

func testServer(t *testing.T) (*Server, *testutil.MemReader) {
	t.Helper()

	reader := testutil.NewMemReader()
	eng := engine.New(reader, testutil.TestDB(t), cache.New(), nil, testutil.Logger(), engine.Options{
		StripExtension: true,
		Routes:         manifest.Routes{Prefix: "/", HomeIdentifier: "index", ServeHome: true},
		Workers:        2,
	})
	return New(eng, "test"), reader
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so handlers are invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_pages":
		result, err = srv.listPages(ctx, req)
	case "get_page":
		result, err = srv.getPage(ctx, req)
	case "get_backlinks":
		result, err = srv.getBacklinks(ctx, req)
	case "resync":
		result, err = srv.resync(ctx, req)
	case "get_frontmatter_format":
		result, err = srv.getFormat(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func seed(t *testing.T, srv *Server, reader *testutil.MemReader) {
	t.Helper()
	reader.Write("index.md", "# Home\n\nStart with [setup](guides/setup.md).\n")
	reader.Write("guides/setup.md", "---\nname: Setup\ntags: [ops]\n---\nBack [home](/index.md).\n")
	r := callTool(t, srv, "resync", nil)
	if r.IsError {
		t.Fatalf("resync: %s", resultText(r))
	}
}

func TestResyncReportsCounts(t *testing.T) {
	srv, reader := testServer(t)
	reader.Write("a.md", "a")
	reader.Write("b.md", "---\nname: [oops\n---\nb")

	r := callTool(t, srv, "resync", nil)
	var out struct {
		Upserted int      `json:"upserted"`
		Failed   []string `json:"failed"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Upserted != 1 || len(out.Failed) != 1 || !strings.HasPrefix(out.Failed[0], "b.md") {
		t.Errorf("resync = %+v", out)
	}
}

func TestListPages(t *testing.T) {
	srv, reader := testServer(t)
	seed(t, srv, reader)

	var all []pageSummary
	_ = json.Unmarshal([]byte(resultText(callTool(t, srv, "list_pages", map[string]any{}))), &all)
	if len(all) != 2 || all[0].Identifier != "guides/setup" || all[1].Route != "/" {
		t.Errorf("list = %+v", all)
	}

	var tagged []pageSummary
	_ = json.Unmarshal([]byte(resultText(callTool(t, srv, "list_pages", map[string]any{"tag": "ops"}))), &tagged)
	if len(tagged) != 1 || tagged[0].Name != "Setup" {
		t.Errorf("tagged = %+v", tagged)
	}
}

func TestGetPage(t *testing.T) {
	srv, reader := testServer(t)
	seed(t, srv, reader)

	r := callTool(t, srv, "get_page", map[string]any{"identifier": "index"})
	if r.IsError {
		t.Fatalf("get_page: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), `href=\"/guides/setup\"`) {
		t.Errorf("html not rewritten: %s", resultText(r))
	}
}

func TestGetPageMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_page", map[string]any{"identifier": "nope"})
	if !r.IsError {
		t.Error("expected error for missing page")
	}
}

func TestGetBacklinks(t *testing.T) {
	srv, reader := testServer(t)
	seed(t, srv, reader)

	r := callTool(t, srv, "get_backlinks", map[string]any{"identifier": "guides/setup"})
	if text := resultText(r); text != "index" {
		t.Errorf("backlinks = %q, want index", text)
	}

	r = callTool(t, srv, "get_backlinks", map[string]any{"identifier": "index"})
	if text := resultText(r); text != "guides/setup" {
		t.Errorf("backlinks = %q, want guides/setup", text)
	}
}

func TestFormatContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_frontmatter_format", nil)
	if !strings.Contains(resultText(r), "identifier:") {
		t.Error("contract missing identifier field")
	}

	contents, err := srv.readFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
}
