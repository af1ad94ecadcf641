package engine

import (
	"log/slog"
	"time"

	"github.com/starford/chasqui/internal/checksum"
	"github.com/starford/chasqui/internal/manifest"
	"github.com/starford/chasqui/internal/models"
	"github.com/starford/chasqui/internal/parser"
)

// job is one page to ingest: a discovered file, or a cached dependent whose
// links must be recomputed.
type job struct {
	filename string
	id       string
	doc      *parser.Document
	modTime  time.Time
	// force skips the unchanged-hash shortcut.
	force bool
}

type result struct {
	job      job
	page     models.Page
	rendered bool
	changed  bool
	err      error
}

func draftJob(d draft) job {
	return job{filename: d.info.Path, id: d.id, doc: d.doc, modTime: d.info.ModTime}
}

func dependentJob(p models.Page) job {
	return job{
		filename: p.Filename,
		id:       p.Identifier,
		doc: &parser.Document{
			Identifier: p.Identifier,
			Name:       p.Name,
			Tags:       p.Tags,
			Created:    p.CreatedAt,
			Modified:   p.ModifiedAt,
			Body:       p.MDContent,
		},
		modTime: p.ModifiedAt,
		force:   true,
	}
}

// ingest compiles jobs in parallel against the finished manifest m.
func (e *Engine) ingest(m *manifest.Manifest, jobs []job) []result {
	out := make([]result, len(jobs))
	e.parallel(len(jobs), func(i int) {
		out[i] = e.ingestOne(m, jobs[i])
	})
	return out
}

func (e *Engine) ingestOne(m *manifest.Manifest, j job) result {
	prior, hasPrior := e.cache.Get(j.id)
	hash := checksum.SumString(j.doc.Body)

	p := models.Page{
		Identifier:    j.id,
		Filename:      j.filename,
		Name:          j.doc.Name,
		MDContent:     j.doc.Body,
		MDContentHash: hash,
		Tags:          j.doc.Tags,
		CreatedAt:     j.doc.Created,
		ModifiedAt:    j.doc.Modified,
	}
	if p.CreatedAt.IsZero() {
		if hasPrior && !prior.CreatedAt.IsZero() {
			p.CreatedAt = prior.CreatedAt
		} else {
			p.CreatedAt = j.modTime
		}
	}
	if p.ModifiedAt.IsZero() {
		p.ModifiedAt = j.modTime
	}

	r := result{job: j}
	if hasPrior && !j.force && prior.MDContentHash == hash && prior.Filename == j.filename {
		p.HTMLContent = prior.HTMLContent
		p.Links = prior.Links
	} else {
		out, err := e.compiler.Compile(j.doc.Body, manifest.Policy(m, j.filename, e.opts.Routes))
		if err != nil {
			r.err = err
			return r
		}
		p.HTMLContent = out.HTML
		p.Links = out.Links
		r.rendered = true
		for _, ref := range out.Unresolved {
			e.logger.Warn("engine: unresolved link", slog.String("path", j.filename), slog.String("ref", ref))
		}
	}

	r.page = p
	r.changed = !hasPrior || !prior.Equal(p)
	return r
}
