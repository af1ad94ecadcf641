package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/starford/chasqui/internal/apperr"
)

// stubPolicy resolves "b.md" to /b, treats "missing.md" as unresolved and
// everything else as external.
func stubPolicy(ref string) Resolution {
	switch ref {
	case "b.md", "/b":
		return Resolution{Route: "/b", Target: "b", Key: ref, Internal: true, Resolved: true}
	case "missing.md":
		return Resolution{Target: "missing.md", Internal: true}
	}
	return Resolution{}
}

func TestCompile_RewritesResolvedLinks(t *testing.T) {
	c := New(Options{})
	out, err := c.Compile("See [B](b.md) and [again](b.md).\n", stubPolicy)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(out.HTML, `href="/b"`) {
		t.Errorf("html = %q, want rewritten href", out.HTML)
	}
	if strings.Contains(out.HTML, `href="b.md"`) {
		t.Errorf("html still contains raw filename: %q", out.HTML)
	}
	if len(out.Links) != 1 || out.Links[0].Target != "b" || !out.Links[0].Resolved {
		t.Errorf("links = %+v, want one resolved link to b", out.Links)
	}
}

func TestCompile_KeepsEachLookupKey(t *testing.T) {
	c := New(Options{})
	out, err := c.Compile("[B](b.md) [root](/b) [again](b.md) [gone](missing.md)\n", stubPolicy)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(out.Links) != 3 {
		t.Fatalf("links = %+v, want b via two keys plus one unresolved", out.Links)
	}
	if out.Links[0].Key != "b.md" || out.Links[1].Key != "/b" || out.Links[1].Target != "b" {
		t.Errorf("resolved links = %+v", out.Links[:2])
	}
	if l := out.Links[2]; l.Resolved || l.Key != "missing.md" {
		t.Errorf("unresolved link = %+v, want its key recorded", l)
	}
}

func TestCompile_ExternalLinksUntouched(t *testing.T) {
	c := New(Options{})
	out, err := c.Compile("[ext](https://example.com/x) [top](#top)\n", stubPolicy)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(out.HTML, `href="https://example.com/x"`) || !strings.Contains(out.HTML, `href="#top"`) {
		t.Errorf("html = %q", out.HTML)
	}
	if len(out.Links) != 0 {
		t.Errorf("links = %+v, want none", out.Links)
	}
}

func TestCompile_UnresolvedPermissive(t *testing.T) {
	c := New(Options{})
	out, err := c.Compile("[gone](missing.md)\n", stubPolicy)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(out.HTML, `href="missing.md"`) {
		t.Errorf("unresolved link should be left unchanged: %q", out.HTML)
	}
	if len(out.Unresolved) != 1 || out.Unresolved[0] != "missing.md" {
		t.Errorf("unresolved = %v", out.Unresolved)
	}
	if len(out.Links) != 1 || out.Links[0].Resolved {
		t.Errorf("links = %+v, want one unresolved link", out.Links)
	}
}

func TestCompile_UnresolvedStrict(t *testing.T) {
	c := New(Options{Strict: true})
	_, err := c.Compile("[gone](missing.md)\n", stubPolicy)
	if !errors.Is(err, apperr.ErrUnresolvedLink) {
		t.Fatalf("err = %v, want ErrUnresolvedLink", err)
	}
}

func TestCompile_NilPolicy(t *testing.T) {
	c := New(Options{})
	out, err := c.Compile("# Title\n\n[B](b.md)\n", nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(out.HTML, `href="b.md"`) {
		t.Errorf("html = %q", out.HTML)
	}
	if !strings.Contains(out.HTML, `<h1 id="title">Title</h1>`) {
		t.Errorf("heading ids expected: %q", out.HTML)
	}
}

func TestCompile_GFMTable(t *testing.T) {
	c := New(Options{})
	out, err := c.Compile("| a | b |\n|---|---|\n| 1 | 2 |\n", nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(out.HTML, "<table>") {
		t.Errorf("expected table markup: %q", out.HTML)
	}
}

func TestCollectExtensions(t *testing.T) {
	if got := collectExtensions(nil); len(got) != 3 {
		t.Errorf("default extensions = %d, want 3", len(got))
	}
	if got := collectExtensions([]string{"table", "table", "unknown"}); len(got) != 1 {
		t.Errorf("extensions = %d, want 1", len(got))
	}
}
