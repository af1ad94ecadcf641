package manifest

import (
	"errors"
	"testing"

	"github.com/starford/chasqui/internal/apperr"
	"github.com/starford/chasqui/internal/models"
)

func TestInsert_Collision(t *testing.T) {
	m := New()
	if err := m.Insert("a.md", "x"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := m.Insert("b.md", "x"); !errors.Is(err, apperr.ErrIdentifierCollision) {
		t.Fatalf("err = %v, want ErrIdentifierCollision", err)
	}
	if fn, _ := m.FilenameFor("x"); fn != "a.md" {
		t.Errorf("owner = %q, want a.md", fn)
	}
	// Re-inserting the same pair is not a collision.
	if err := m.Insert("a.md", "x"); err != nil {
		t.Errorf("re-insert: %v", err)
	}
}

func TestInsert_ReplacesIdentifierOfFile(t *testing.T) {
	m := New()
	_ = m.Insert("a.md", "old")
	if err := m.Insert("a.md", "new"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if m.HasIdentifier("old") {
		t.Error("old identifier should be released")
	}
	if id, _ := m.IdentifierFor("a.md"); id != "new" {
		t.Errorf("id = %q, want new", id)
	}
}

func TestRemoveByFilename(t *testing.T) {
	m := New()
	_ = m.Insert("a.md", "a")
	id, ok := m.RemoveByFilename("a.md")
	if !ok || id != "a" {
		t.Fatalf("RemoveByFilename = %q, %v", id, ok)
	}
	if m.HasIdentifier("a") || m.Len() != 0 {
		t.Error("mapping should be gone")
	}
	if _, ok := m.RemoveByFilename("a.md"); ok {
		t.Error("second remove should report absent")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	m := FromPages([]models.Page{{Identifier: "a", Filename: "a.md"}})
	c := m.Clone()
	_ = c.Insert("b.md", "b")
	if m.HasIdentifier("b") {
		t.Error("clone mutation leaked into original")
	}
	if got := c.Filenames(); len(got) != 2 || got[0] != "a.md" || got[1] != "b.md" {
		t.Errorf("filenames = %v", got)
	}
}
