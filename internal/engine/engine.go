// Package engine is the sync orchestrator. It keeps the content tree, the
// page repository and the read cache consistent with each other.
//
// A pass runs in two phases. Discovery reads every affected file far enough to
// learn its identifier and builds the manifest. Ingestion then compiles bodies
// against the finished manifest, so link resolution never depends on the
// order files are processed in. Changes are written to the repository first
// and published to the cache only after every write of the batch succeeded.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/starford/chasqui/internal/apperr"
	"github.com/starford/chasqui/internal/cache"
	"github.com/starford/chasqui/internal/compiler"
	"github.com/starford/chasqui/internal/content"
	"github.com/starford/chasqui/internal/manifest"
	"github.com/starford/chasqui/internal/models"
	"github.com/starford/chasqui/internal/store"
	"github.com/starford/chasqui/internal/watcher"
)

// Options tunes a sync pass.
type Options struct {
	// StripExtension derives identifiers from filenames without ".md".
	StripExtension bool
	Routes         manifest.Routes
	// StrictLinks rejects pages with unresolved internal links.
	StrictLinks bool
	// Workers bounds parallel reads and compiles within a pass.
	Workers int
	// Extensions selects goldmark extensions by name.
	Extensions []string
}

// Engine drives sync passes. Passes are serialised; reads go to the cache
// and never wait for a pass.
type Engine struct {
	reader   content.Reader
	repo     store.Repository
	cache    *cache.Cache
	compiler *compiler.Compiler
	notifier Notifier
	logger   *slog.Logger
	opts     Options

	mu        sync.Mutex
	needsFull atomic.Bool
}

// New wires an engine. notifier may be nil.
func New(reader content.Reader, repo store.Repository, c *cache.Cache, notifier Notifier, logger *slog.Logger, opts Options) *Engine {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		reader:   reader,
		repo:     repo,
		cache:    c,
		compiler: compiler.New(compiler.Options{Strict: opts.StrictLinks, Extensions: opts.Extensions}),
		notifier: notifier,
		logger:   logger,
		opts:     opts,
	}
}

// Warm fills the cache from the repository.
func (e *Engine) Warm(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	pages, err := e.repo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("engine: warm: %w: %w", apperr.ErrPersistence, err)
	}
	if err := e.cache.Load(pages); err != nil {
		return fmt.Errorf("engine: warm: %w", err)
	}
	e.logger.Info("engine: cache warmed", slog.Int("pages", len(pages)))
	return nil
}

// ListPages returns every cached page ordered by identifier.
func (e *Engine) ListPages() []models.Page {
	return e.cache.All()
}

// GetPage returns the page for id. An empty id or "/" names the home page
// when it is served.
func (e *Engine) GetPage(id string) (models.Page, error) {
	key := strings.Trim(strings.TrimSpace(id), "/")
	if key == "" && e.opts.Routes.ServeHome {
		key = e.opts.Routes.HomeIdentifier
	}
	p, ok := e.cache.Get(key)
	if !ok {
		return models.Page{}, fmt.Errorf("page %q: %w", id, apperr.ErrNotFound)
	}
	return p, nil
}

// Backlinks returns the pages with a resolved link to id.
func (e *Engine) Backlinks(id string) ([]models.Page, error) {
	target, err := e.GetPage(id)
	if err != nil {
		return nil, err
	}
	var out []models.Page
	for _, p := range e.cache.All() {
		if p.Identifier != target.Identifier && p.LinksTo(target.Identifier) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Route returns the public route of id.
func (e *Engine) Route(id string) string {
	return e.opts.Routes.Route(id)
}

// NeedsFullSync reports whether the next pass will be a full one.
func (e *Engine) NeedsFullSync() bool {
	return e.needsFull.Load()
}

// Run consumes batches until ctx is cancelled, one pass at a time. Batches
// already queued when ctx ends are still processed; the producer must close
// the channel once it stops.
func (e *Engine) Run(ctx context.Context, batches <-chan watcher.Batch) error {
	for {
		select {
		case <-ctx.Done():
			drain := context.WithoutCancel(ctx)
			for b := range batches {
				e.runBatch(drain, b)
			}
			return nil
		case b, ok := <-batches:
			if !ok {
				return nil
			}
			e.runBatch(ctx, b)
		}
	}
}

func (e *Engine) runBatch(ctx context.Context, b watcher.Batch) {
	var err error
	if b.Full {
		_, err = e.RunFullSync(ctx)
	} else {
		_, err = e.RunIncrementalSync(ctx, b.Paths)
	}
	if err != nil {
		e.logger.Error("engine: batch failed, next trigger runs a full sync",
			slog.Int("paths", len(b.Paths)),
			slog.String("error", err.Error()))
	}
}
