// Package cache is the process-wide read cache of resolved pages.
//
// Readers load an immutable snapshot through an atomic pointer and never
// block. The engine is the only writer; it builds the next snapshot and swaps
// it in once every durable write of a batch has succeeded.
package cache

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/starford/chasqui/internal/apperr"
	"github.com/starford/chasqui/internal/models"
)

type snapshot struct {
	byID       map[string]models.Page
	byFilename map[string]string
}

// Cache maps identifiers to pages.
type Cache struct {
	current atomic.Pointer[snapshot]
	// wmu serialises writers; readers never take it.
	wmu sync.Mutex
}

// New returns an empty cache.
func New() *Cache {
	c := &Cache{}
	c.current.Store(&snapshot{
		byID:       map[string]models.Page{},
		byFilename: map[string]string{},
	})
	return c
}

// Load replaces the whole contents with pages.
func (c *Cache) Load(pages []models.Page) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	next := &snapshot{
		byID:       make(map[string]models.Page, len(pages)),
		byFilename: make(map[string]string, len(pages)),
	}
	for _, p := range pages {
		if err := next.put(p.Clone()); err != nil {
			return err
		}
	}
	c.current.Store(next)
	return nil
}

// Apply removes deletes, then stores upserts, and publishes the result
// atomically. On error the cache is left unchanged.
func (c *Cache) Apply(upserts []models.Page, deletes []string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	cur := c.current.Load()
	next := &snapshot{
		byID:       make(map[string]models.Page, len(cur.byID)+len(upserts)),
		byFilename: make(map[string]string, len(cur.byFilename)+len(upserts)),
	}
	for id, p := range cur.byID {
		next.byID[id] = p
	}
	for fn, id := range cur.byFilename {
		next.byFilename[fn] = id
	}

	for _, id := range deletes {
		next.remove(id)
	}
	for _, p := range upserts {
		next.remove(p.Identifier)
	}
	for _, p := range upserts {
		if err := next.put(p.Clone()); err != nil {
			return err
		}
	}
	c.current.Store(next)
	return nil
}

// Get returns a copy of the page for id.
func (c *Cache) Get(id string) (models.Page, bool) {
	p, ok := c.current.Load().byID[id]
	if !ok {
		return models.Page{}, false
	}
	return p.Clone(), true
}

// GetByFilename returns a copy of the page stored for filename.
func (c *Cache) GetByFilename(filename string) (models.Page, bool) {
	s := c.current.Load()
	id, ok := s.byFilename[filename]
	if !ok {
		return models.Page{}, false
	}
	return s.byID[id].Clone(), true
}

// All returns copies of every page ordered by identifier.
func (c *Cache) All() []models.Page {
	s := c.current.Load()
	out := make([]models.Page, 0, len(s.byID))
	for _, p := range s.byID {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out
}

// Len returns the number of cached pages.
func (c *Cache) Len() int {
	return len(c.current.Load().byID)
}

func (s *snapshot) remove(id string) {
	p, ok := s.byID[id]
	if !ok {
		return
	}
	delete(s.byID, id)
	if s.byFilename[p.Filename] == id {
		delete(s.byFilename, p.Filename)
	}
}

func (s *snapshot) put(p models.Page) error {
	if _, dup := s.byID[p.Identifier]; dup {
		return fmt.Errorf("%w: identifier %q stored twice", apperr.ErrCacheConsistency, p.Identifier)
	}
	if owner, taken := s.byFilename[p.Filename]; taken && owner != p.Identifier {
		return fmt.Errorf("%w: filename %s held by %q and %q", apperr.ErrCacheConsistency, p.Filename, owner, p.Identifier)
	}
	s.byID[p.Identifier] = p
	s.byFilename[p.Filename] = p.Identifier
	return nil
}
