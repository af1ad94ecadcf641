package content

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func tempContent(t *testing.T) (*FS, string) {
	t.Helper()
	dir := t.TempDir()
	r, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return r, dir
}

func writeFile(t *testing.T, root, rel, data string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRead(t *testing.T) {
	r, dir := tempContent(t)
	writeFile(t, dir, "note.md", "# Hello\n")
	got, err := r.Read("note.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "# Hello\n" {
		t.Errorf("content = %q", got)
	}
}

func TestList_SkipsHiddenAndNonMarkdown(t *testing.T) {
	r, dir := tempContent(t)
	writeFile(t, dir, "a.md", "a")
	writeFile(t, dir, "sub/b.md", "b")
	writeFile(t, dir, "readme.txt", "not md")
	writeFile(t, dir, ".hidden.md", "hidden")
	writeFile(t, dir, "draft.md~", "backup")
	writeFile(t, dir, ".git/c.md", "vcs")

	items, err := r.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var paths []string
	for _, it := range items {
		paths = append(paths, it.Path)
	}
	sort.Strings(paths)
	if len(paths) != 2 || paths[0] != "a.md" || paths[1] != "sub/b.md" {
		t.Errorf("paths = %v, want [a.md sub/b.md]", paths)
	}
}

func TestList_Subdir(t *testing.T) {
	r, dir := tempContent(t)
	writeFile(t, dir, "a.md", "a")
	writeFile(t, dir, "sub/b.md", "b")

	items, err := r.List("sub")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].Path != "sub/b.md" {
		t.Errorf("items = %+v", items)
	}
}

func TestStat(t *testing.T) {
	r, dir := tempContent(t)
	writeFile(t, dir, "sub/b.md", "b")

	info, err := r.Stat("sub")
	if err != nil {
		t.Fatalf("Stat dir: %v", err)
	}
	if !info.IsDir {
		t.Error("sub should be a directory")
	}

	info, err = r.Stat("sub/b.md")
	if err != nil {
		t.Fatalf("Stat file: %v", err)
	}
	if info.IsDir || info.Size != 1 || info.Path != "sub/b.md" {
		t.Errorf("info = %+v", info)
	}

	if _, err := r.Stat("missing.md"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Stat missing: err = %v, want fs.ErrNotExist", err)
	}
}

func TestTraversalBlocked(t *testing.T) {
	r, _ := tempContent(t)
	for _, p := range []string{"../../etc/passwd", "../outside.md", "/etc/shadow"} {
		if _, err := r.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if _, err := r.Stat(p); err == nil {
			t.Errorf("expected stat error for path %q", p)
		}
	}
}

func TestRel(t *testing.T) {
	r, _ := tempContent(t)
	rel, err := r.Rel(filepath.Join(r.Root(), "sub", "x.md"))
	if err != nil || rel != "sub/x.md" {
		t.Errorf("Rel = %q, %v", rel, err)
	}
	if _, err := r.Rel(filepath.Dir(r.Root())); err == nil {
		t.Error("expected error for path outside root")
	}
}

func TestHelpers(t *testing.T) {
	if !IsContentFile("notes/a.md") || IsContentFile("notes/.a.md") || IsContentFile("a.md~") || IsContentFile("a.txt") {
		t.Error("IsContentFile misclassified a path")
	}
	if got := Clean("./sub//x.md"); got != "sub/x.md" {
		t.Errorf("Clean = %q", got)
	}
	if got := Clean(`sub\x.md`); got != "sub/x.md" {
		t.Errorf("Clean backslash = %q", got)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	if _, err := NewFS(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "chasqui-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}
