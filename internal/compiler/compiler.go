// Package compiler renders Markdown bodies to HTML and rewrites internal
// references through a caller-supplied link policy.
package compiler

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"

	"github.com/starford/chasqui/internal/apperr"
	"github.com/starford/chasqui/internal/models"
)

// Resolution is the outcome of resolving one link destination.
type Resolution struct {
	// Route replaces the destination in the rendered HTML.
	Route string
	// Target is the identifier for resolved links, the normalised lookup key otherwise.
	Target string
	// Key is the normalised lookup key the destination was resolved from.
	Key string
	// Internal is false for external URLs and in-page anchors, which are never rewritten.
	Internal bool
	Resolved bool
}

// LinkPolicy maps a raw link destination to its resolution.
type LinkPolicy func(ref string) Resolution

// Output is the result of compiling one body.
type Output struct {
	HTML string
	// Links lists distinct internal references, resolved or not.
	Links []models.Link
	// Unresolved holds the raw destinations that could not be resolved.
	Unresolved []string
}

// Options configures a Compiler.
type Options struct {
	// Strict fails compilation when any internal reference is unresolved.
	Strict bool
	// Extensions names goldmark extensions; empty selects gfm, footnote and definition lists.
	Extensions []string
}

// Compiler is stateless apart from its options and safe for concurrent use.
type Compiler struct {
	strict     bool
	extensions []goldmark.Extender
}

// New constructs a Compiler.
func New(opts Options) *Compiler {
	return &Compiler{
		strict:     opts.Strict,
		extensions: collectExtensions(opts.Extensions),
	}
}

// Compile renders body to HTML. Every link destination is passed through policy
// (nil leaves destinations untouched).
func (c *Compiler) Compile(body string, policy LinkPolicy) (Output, error) {
	src := []byte(body)
	// goldmark instances are built per call so concurrent compiles share no parser state.
	md := c.newEngine()
	doc := md.Parser().Parse(text.NewReader(src))

	var out Output
	seen := make(map[string]struct{})
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || policy == nil {
			return ast.WalkContinue, nil
		}
		link, ok := n.(*ast.Link)
		if !ok {
			return ast.WalkContinue, nil
		}
		dest := string(link.Destination)
		res := policy(dest)
		if !res.Internal {
			return ast.WalkContinue, nil
		}
		if res.Resolved {
			link.Destination = []byte(res.Route)
		} else {
			out.Unresolved = append(out.Unresolved, dest)
		}
		l := models.Link{Target: res.Target, Resolved: res.Resolved, Key: res.Key}
		if l.Key == "" && !l.Resolved {
			l.Key = l.Target
		}
		key := "?" + l.Target
		if l.Resolved {
			key = "=" + l.Target + "\x00" + l.Key
		}
		if _, dup := seen[key]; !dup && res.Target != "" {
			seen[key] = struct{}{}
			out.Links = append(out.Links, l)
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return Output{}, fmt.Errorf("%w: walk: %w", apperr.ErrMarkdownCompile, err)
	}

	if c.strict && len(out.Unresolved) > 0 {
		return Output{}, fmt.Errorf("%w: %q", apperr.ErrUnresolvedLink, out.Unresolved)
	}

	var buf bytes.Buffer
	if err := md.Renderer().Render(&buf, src, doc); err != nil {
		return Output{}, fmt.Errorf("%w: render: %w", apperr.ErrMarkdownCompile, err)
	}
	out.HTML = buf.String()
	return out, nil
}

func (c *Compiler) newEngine() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(c.extensions...),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)
}

var extensionRegistry = map[string]goldmark.Extender{
	"gfm":           extension.GFM,
	"table":         extension.Table,
	"strikethrough": extension.Strikethrough,
	"linkify":       extension.Linkify,
	"tasklist":      extension.TaskList,
	"definition":    extension.DefinitionList,
	"footnote":      extension.Footnote,
	"typographer":   extension.Typographer,
}

func collectExtensions(names []string) []goldmark.Extender {
	if len(names) == 0 {
		return []goldmark.Extender{
			extension.GFM,
			extension.Footnote,
			extension.DefinitionList,
		}
	}
	var out []goldmark.Extender
	seen := map[string]struct{}{}
	for _, name := range names {
		ext, ok := extensionRegistry[name]
		if !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, ext)
	}
	return out
}
