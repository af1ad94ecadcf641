// Package manifest holds the pass-scoped filename <-> identifier mapping used
// to resolve links between content files.
package manifest

import (
	"fmt"
	"sort"

	"github.com/starford/chasqui/internal/apperr"
	"github.com/starford/chasqui/internal/models"
)

// Manifest is a bidirectional filename <-> identifier map. It is not safe for
// concurrent mutation; the engine finishes building it before any reader runs.
type Manifest struct {
	byFilename map[string]string
	byID       map[string]string
}

// New returns an empty Manifest.
func New() *Manifest {
	return &Manifest{
		byFilename: make(map[string]string),
		byID:       make(map[string]string),
	}
}

// FromPages builds a Manifest from already consistent pages.
func FromPages(pages []models.Page) *Manifest {
	m := New()
	for _, p := range pages {
		m.byFilename[p.Filename] = p.Identifier
		m.byID[p.Identifier] = p.Filename
	}
	return m
}

// Insert maps filename to id, dropping any previous identifier of filename.
// It fails with apperr.ErrIdentifierCollision when id belongs to another file.
func (m *Manifest) Insert(filename, id string) error {
	if owner, ok := m.byID[id]; ok && owner != filename {
		return fmt.Errorf("%w: %q already claimed by %s", apperr.ErrIdentifierCollision, id, owner)
	}
	if old, ok := m.byFilename[filename]; ok && old != id {
		delete(m.byID, old)
	}
	m.byFilename[filename] = id
	m.byID[id] = filename
	return nil
}

// RemoveByFilename drops filename and returns the identifier it held.
func (m *Manifest) RemoveByFilename(filename string) (string, bool) {
	id, ok := m.byFilename[filename]
	if !ok {
		return "", false
	}
	delete(m.byFilename, filename)
	delete(m.byID, id)
	return id, true
}

// IdentifierFor returns the identifier mapped to filename.
func (m *Manifest) IdentifierFor(filename string) (string, bool) {
	id, ok := m.byFilename[filename]
	return id, ok
}

// FilenameFor returns the file that owns id.
func (m *Manifest) FilenameFor(id string) (string, bool) {
	fn, ok := m.byID[id]
	return fn, ok
}

// HasIdentifier reports whether id is mapped.
func (m *Manifest) HasIdentifier(id string) bool {
	_, ok := m.byID[id]
	return ok
}

// Len returns the number of mapped files.
func (m *Manifest) Len() int {
	return len(m.byFilename)
}

// Filenames returns the mapped filenames in sorted order.
func (m *Manifest) Filenames() []string {
	out := make([]string, 0, len(m.byFilename))
	for fn := range m.byFilename {
		out = append(out, fn)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (m *Manifest) Clone() *Manifest {
	c := &Manifest{
		byFilename: make(map[string]string, len(m.byFilename)),
		byID:       make(map[string]string, len(m.byID)),
	}
	for k, v := range m.byFilename {
		c.byFilename[k] = v
	}
	for k, v := range m.byID {
		c.byID[k] = v
	}
	return c
}
