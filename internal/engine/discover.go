package engine

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/starford/chasqui/internal/apperr"
	"github.com/starford/chasqui/internal/content"
	"github.com/starford/chasqui/internal/manifest"
	"github.com/starford/chasqui/internal/parser"
)

// draft is a discovered file: metadata parsed, body not yet compiled.
type draft struct {
	info content.FileInfo
	doc  *parser.Document
	id   string
	err  error
}

// discover reads and parses files in parallel. Failures are recorded on the
// draft rather than returned.
func (e *Engine) discover(files []content.FileInfo) []draft {
	out := make([]draft, len(files))
	e.parallel(len(files), func(i int) {
		d := draft{info: files[i]}
		data, err := e.reader.Read(files[i].Path)
		if err != nil {
			d.err = fmt.Errorf("%w: %w", apperr.ErrFileRead, err)
			out[i] = d
			return
		}
		doc, err := parser.Parse(data)
		if err != nil {
			d.err = err
			out[i] = d
			return
		}
		d.doc = doc
		d.id = e.identifierFor(files[i].Path, doc)
		out[i] = d
	})
	return out
}

func (e *Engine) identifierFor(filename string, doc *parser.Document) string {
	if doc.Identifier != "" {
		return doc.Identifier
	}
	if e.opts.StripExtension {
		return strings.TrimSuffix(filename, content.Ext)
	}
	return filename
}

// buildManifest derives the manifest of the pass from the prior one.
//
// Claimants of one identifier are ranked by filename; the file that owned the
// identifier before the pass wins, otherwise the first one does. A claim on
// an identifier still held by a file outside the batch is rejected too.
// Rejected files keep their previous mapping when it is still free, so links
// to their retained page keep resolving.
func buildManifest(prior *manifest.Manifest, found []draft, removed []string) (m *manifest.Manifest, accepted, rejected []draft) {
	m = prior.Clone()
	for _, fn := range removed {
		m.RemoveByFilename(fn)
	}
	for _, d := range found {
		m.RemoveByFilename(d.info.Path)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].info.Path < found[j].info.Path })

	winner := make(map[string]int, len(found))
	for i, d := range found {
		w, ok := winner[d.id]
		if !ok {
			winner[d.id] = i
			continue
		}
		if owner, had := prior.FilenameFor(d.id); had && owner == d.info.Path && found[w].info.Path != owner {
			winner[d.id] = i
		}
	}

	for i, d := range found {
		if w := winner[d.id]; w != i {
			d.err = fmt.Errorf("%w: %q is claimed by %s", apperr.ErrIdentifierCollision, d.id, found[w].info.Path)
			rejected = append(rejected, d)
			continue
		}
		if err := m.Insert(d.info.Path, d.id); err != nil {
			d.err = err
			rejected = append(rejected, d)
			continue
		}
		accepted = append(accepted, d)
	}

	for _, d := range rejected {
		if old, ok := prior.IdentifierFor(d.info.Path); ok && !m.HasIdentifier(old) {
			_ = m.Insert(d.info.Path, old)
		}
	}
	return m, accepted, rejected
}

// parallel runs fn for 0..n-1 on at most Workers goroutines.
func (e *Engine) parallel(n int, fn func(i int)) {
	var g errgroup.Group
	g.SetLimit(e.opts.Workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			fn(i)
			return nil
		})
	}
	_ = g.Wait()
}
