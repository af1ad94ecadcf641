package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/starford/chasqui/internal/apperr"
	"github.com/starford/chasqui/internal/content"
	"github.com/starford/chasqui/internal/manifest"
	"github.com/starford/chasqui/internal/models"
)

// RunFullSync lists the whole content tree and reconciles every page. Pages
// whose files are gone are deleted.
func (e *Engine) RunFullSync(ctx context.Context) (Summary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fullSync(ctx)
}

// RunIncrementalSync reconciles the given content paths. Directories expand
// to the files below them; vanished paths delete the pages at or below them.
// A pending recovery turns this into a full sync.
func (e *Engine) RunIncrementalSync(ctx context.Context, paths []string) (Summary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.needsFull.Load() {
		e.logger.Info("engine: recovering with a full sync")
		return e.fullSync(ctx)
	}
	changed, removed, failed := e.classify(paths)
	if len(changed) == 0 && len(removed) == 0 && len(failed) == 0 {
		return Summary{}, nil
	}
	return e.pass(ctx, false, changed, removed, failed)
}

func (e *Engine) fullSync(ctx context.Context) (Summary, error) {
	files, err := e.reader.List("")
	if err != nil {
		return Summary{Full: true}, fmt.Errorf("engine: list content: %w: %w", apperr.ErrFileRead, err)
	}
	onDisk := make(map[string]struct{}, len(files))
	for _, f := range files {
		onDisk[f.Path] = struct{}{}
	}
	var removed []string
	for _, p := range e.cache.All() {
		if _, ok := onDisk[p.Filename]; !ok {
			removed = append(removed, p.Filename)
		}
	}

	s, err := e.pass(ctx, true, files, removed, nil)
	if err == nil {
		e.needsFull.Store(false)
	}
	return s, err
}

// classify splits raw event paths into files to rediscover and filenames to drop.
func (e *Engine) classify(paths []string) (changed []content.FileInfo, removed []string, failed []apperr.FileError) {
	cached := e.cache.All()
	seen := make(map[string]struct{})
	gone := make(map[string]struct{})

	addChanged := func(fi content.FileInfo) {
		if _, dup := seen[fi.Path]; dup {
			return
		}
		seen[fi.Path] = struct{}{}
		changed = append(changed, fi)
	}
	under := func(filename, p string) bool {
		return p == "" || filename == p || strings.HasPrefix(filename, p+"/")
	}

	for _, raw := range paths {
		p := content.Clean(raw)
		info, err := e.reader.Stat(p)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			for _, c := range cached {
				if under(c.Filename, p) {
					gone[c.Filename] = struct{}{}
				}
			}
		case err != nil:
			failed = append(failed, apperr.FileError{Path: p, Err: fmt.Errorf("%w: %w", apperr.ErrFileRead, err)})
		case info.IsDir:
			files, err := e.reader.List(p)
			if err != nil {
				failed = append(failed, apperr.FileError{Path: p, Err: fmt.Errorf("%w: %w", apperr.ErrFileRead, err)})
				continue
			}
			present := make(map[string]struct{}, len(files))
			for _, f := range files {
				present[f.Path] = struct{}{}
				addChanged(f)
			}
			for _, c := range cached {
				if _, ok := present[c.Filename]; !ok && under(c.Filename, p) {
					gone[c.Filename] = struct{}{}
				}
			}
		case content.IsContentFile(p):
			addChanged(info)
		}
	}

	for fn := range gone {
		if _, ok := seen[fn]; !ok {
			removed = append(removed, fn)
		}
	}
	sort.Strings(removed)
	return changed, removed, failed
}

// pass runs discovery, ingestion, persistence and cache publication for one batch.
func (e *Engine) pass(ctx context.Context, full bool, files []content.FileInfo, removed []string, failed []apperr.FileError) (Summary, error) {
	start := time.Now()
	sum := Summary{Full: full, Failed: failed}
	prior := manifest.FromPages(e.cache.All())

	var found []draft
	for _, d := range e.discover(files) {
		if d.err != nil {
			sum.fail(d.info.Path, d.err)
			continue
		}
		found = append(found, d)
	}

	m, accepted, rejected := buildManifest(prior, found, removed)
	for _, d := range rejected {
		sum.fail(d.info.Path, d.err)
	}

	results, dropped := e.settle(prior, m, accepted, removed)
	for _, r := range dropped {
		sum.fail(r.job.filename, r.err)
	}

	ingested := make(map[string]struct{}, len(results))
	var upserts []models.Page
	for _, r := range results {
		if r.err != nil {
			sum.fail(r.job.filename, r.err)
			continue
		}
		ingested[r.page.Identifier] = struct{}{}
		if r.rendered {
			sum.Rendered++
		} else {
			sum.Reused++
		}
		if r.changed {
			upserts = append(upserts, r.page)
		}
	}
	sort.Slice(upserts, func(i, j int) bool { return upserts[i].Identifier < upserts[j].Identifier })
	deletes := e.deletions(prior, accepted, removed, upserts, ingested)

	sum.sortFailed()
	for _, f := range sum.Failed {
		e.logger.Warn("engine: file skipped", slog.String("path", f.Path), slog.String("error", f.Err.Error()))
	}

	if len(upserts) > 0 || len(deletes) > 0 {
		if err := e.persist(ctx, upserts, deletes); err != nil {
			e.needsFull.Store(true)
			return sum, err
		}
		if err := e.cache.Apply(upserts, deletes); err != nil {
			e.needsFull.Store(true)
			return sum, fmt.Errorf("engine: publish: %w", err)
		}
	}

	for _, p := range upserts {
		sum.Upserted = append(sum.Upserted, p.Identifier)
	}
	sum.Deleted = deletes

	e.logger.Info("engine: sync complete",
		slog.Bool("full", full),
		slog.Int("upserted", len(sum.Upserted)),
		slog.Int("deleted", len(sum.Deleted)),
		slog.Int("rendered", sum.Rendered),
		slog.Int("reused", sum.Reused),
		slog.Int("failed", len(sum.Failed)),
		slog.Duration("took", time.Since(start)))

	if sum.Changed() && e.notifier != nil {
		if err := e.notifier.Notify(ctx, sum); err != nil {
			e.logger.Warn("engine: notify failed", slog.String("error", err.Error()))
		}
	}
	return sum, nil
}

// settle ingests the accepted drafts and their stale dependents. A draft that
// fails to ingest gives up its claim in m; when that changes m the batch runs
// again without it, so no page is compiled against a claim that was never
// published. dropped holds the failures of withdrawn drafts.
func (e *Engine) settle(prior, m *manifest.Manifest, accepted []draft, removed []string) (results, dropped []result) {
	exclude := append([]string(nil), removed...)
	for {
		results = e.ingest(m, e.jobs(prior, m, accepted, exclude))

		// Draft jobs come first, in accepted order.
		var kept []draft
		var failed []result
		changed := false
		for i, d := range accepted {
			if results[i].err == nil {
				kept = append(kept, d)
				continue
			}
			failed = append(failed, results[i])
			if withdraw(prior, m, d) {
				changed = true
			}
		}
		if !changed {
			return results, dropped
		}
		dropped = append(dropped, failed...)
		for _, r := range failed {
			exclude = append(exclude, r.job.filename)
		}
		accepted = kept
	}
}

// withdraw drops the claim of a draft that failed to ingest and gives its file
// back the previous identifier when that is still free. It reports whether m
// changed.
func withdraw(prior, m *manifest.Manifest, d draft) bool {
	old, had := prior.IdentifierFor(d.info.Path)
	if had && old == d.id {
		return false
	}
	m.RemoveByFilename(d.info.Path)
	if had && !m.HasIdentifier(old) {
		_ = m.Insert(d.info.Path, old)
	}
	return true
}

// jobs lists the accepted drafts plus every cached page whose links went stale
// under the new manifest. Cached pages of excluded filenames are left alone.
func (e *Engine) jobs(prior, m *manifest.Manifest, accepted []draft, exclude []string) []job {
	moved := make(map[string]struct{})
	for _, fn := range prior.Filenames() {
		id, _ := prior.IdentifierFor(fn)
		if now, ok := m.FilenameFor(id); !ok || now != fn {
			moved[id] = struct{}{}
		}
	}
	type pair struct{ filename, id string }
	var added []pair
	for _, d := range accepted {
		if old, ok := prior.IdentifierFor(d.info.Path); !ok || old != d.id {
			added = append(added, pair{d.info.Path, d.id})
		}
	}

	// A page is stale when a resolved target moved, or when a newly claimed
	// file or identifier is a lookup candidate of one of its links. The second
	// case covers dangling links and links that a nearer file now shadows.
	stale := func(p models.Page) bool {
		for _, l := range p.Links {
			if l.Resolved {
				if _, ok := moved[l.Target]; ok {
					return true
				}
			}
			for _, a := range added {
				if manifest.Refers(l.Key, p.Filename, a.filename, a.id) {
					return true
				}
			}
		}
		return false
	}

	out := make([]job, 0, len(accepted))
	inBatch := make(map[string]struct{}, len(accepted)+len(exclude))
	for _, d := range accepted {
		j := draftJob(d)
		if p, ok := e.cache.Get(d.id); ok && stale(p) {
			j.force = true
		}
		out = append(out, j)
		inBatch[d.info.Path] = struct{}{}
	}
	for _, fn := range exclude {
		inBatch[fn] = struct{}{}
	}

	if len(moved) == 0 && len(added) == 0 {
		return out
	}
	for _, p := range e.cache.All() {
		if _, ok := inBatch[p.Filename]; ok {
			continue
		}
		if id, ok := m.IdentifierFor(p.Filename); !ok || id != p.Identifier {
			continue
		}
		if stale(p) {
			e.logger.Debug("engine: recompiling dependent", slog.String("identifier", p.Identifier))
			out = append(out, dependentJob(p))
		}
	}
	return out
}

// deletions lists identifiers to remove: pages of removed files, identifiers
// a file gave up, and pages displaced from a filename by an upsert. Anything
// re-claimed by an ingested page survives.
func (e *Engine) deletions(prior *manifest.Manifest, accepted []draft, removed []string, upserts []models.Page, ingested map[string]struct{}) []string {
	cand := make(map[string]struct{})
	for _, fn := range removed {
		if id, ok := prior.IdentifierFor(fn); ok {
			cand[id] = struct{}{}
		}
	}
	for _, d := range accepted {
		if _, ok := ingested[d.id]; !ok {
			continue
		}
		if old, ok := prior.IdentifierFor(d.info.Path); ok && old != d.id {
			cand[old] = struct{}{}
		}
	}
	for _, p := range upserts {
		if owner, ok := e.cache.GetByFilename(p.Filename); ok && owner.Identifier != p.Identifier {
			cand[owner.Identifier] = struct{}{}
		}
	}

	var out []string
	for id := range cand {
		if _, ok := ingested[id]; ok {
			continue
		}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// persist writes the batch. Each call is atomic on its own and runs to
// completion even if ctx is cancelled; cancellation stops the batch between
// calls. Any failure aborts the rest of the batch.
func (e *Engine) persist(ctx context.Context, upserts []models.Page, deletes []string) error {
	wctx := context.WithoutCancel(ctx)
	for _, id := range deletes {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("engine: %w: interrupted: %w", apperr.ErrPersistence, err)
		}
		if err := e.repo.Delete(wctx, id); err != nil {
			return fmt.Errorf("engine: %w: delete %s: %w", apperr.ErrPersistence, id, err)
		}
	}
	for _, p := range upserts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("engine: %w: interrupted: %w", apperr.ErrPersistence, err)
		}
		if err := e.repo.Upsert(wctx, p); err != nil {
			return fmt.Errorf("engine: %w: upsert %s: %w", apperr.ErrPersistence, p.Identifier, err)
		}
	}
	return nil
}
