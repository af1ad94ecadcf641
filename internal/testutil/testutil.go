// Package testutil provides shared test helpers for content trees and databases.
package testutil

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/chasqui/internal/content"
	"github.com/starford/chasqui/internal/store"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.SQLite {
	t.Helper()
	dbFile, err := os.CreateTemp("", "chasqui-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestContentDir creates a temporary content directory with a content.FS reader.
func TestContentDir(t *testing.T) (string, *content.FS) {
	t.Helper()
	dir := t.TempDir()
	r, err := content.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, r
}

// Logger returns a logger that drops everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// Eventually polls fn every tick until it returns true or timeout elapses.
func Eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

type memFile struct {
	data    []byte
	modTime time.Time
}

// MemReader is an in-memory content.Reader. Every write advances a fake clock
// by one second so modification times are deterministic.
type MemReader struct {
	mu    sync.Mutex
	files map[string]memFile
	clock time.Time
}

// NewMemReader returns an empty tree.
func NewMemReader() *MemReader {
	return &MemReader{
		files: make(map[string]memFile),
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

var _ content.Reader = (*MemReader)(nil)

// Write creates or replaces a file.
func (m *MemReader) Write(path, data string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(time.Second)
	m.files[content.Clean(path)] = memFile{data: []byte(data), modTime: m.clock}
}

// Remove deletes a file.
func (m *MemReader) Remove(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, content.Clean(path))
}

// Rename moves a file, keeping its modification time.
func (m *MemReader) Rename(from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[content.Clean(from)]
	if !ok {
		return
	}
	delete(m.files, content.Clean(from))
	m.files[content.Clean(to)] = f
}

// ModTime returns the modification time of path.
func (m *MemReader) ModTime(path string) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[content.Clean(path)].modTime
}

func (m *MemReader) List(dir string) ([]content.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dir = content.Clean(dir)
	var out []content.FileInfo
	for p, f := range m.files {
		if dir != "" && !strings.HasPrefix(p, dir+"/") {
			continue
		}
		if !content.IsContentFile(p) || hidden(p) {
			continue
		}
		out = append(out, content.FileInfo{Path: p, Size: int64(len(f.data)), ModTime: f.modTime})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *MemReader) Read(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[content.Clean(path)]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", path, fs.ErrNotExist)
	}
	return append([]byte(nil), f.data...), nil
}

func (m *MemReader) Stat(path string) (content.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := content.Clean(path)
	if f, ok := m.files[p]; ok {
		return content.FileInfo{Path: p, Size: int64(len(f.data)), ModTime: f.modTime}, nil
	}
	if p == "" {
		return content.FileInfo{IsDir: true}, nil
	}
	for fp := range m.files {
		if strings.HasPrefix(fp, p+"/") {
			return content.FileInfo{Path: p, IsDir: true}, nil
		}
	}
	return content.FileInfo{}, fmt.Errorf("stat %s: %w", path, fs.ErrNotExist)
}

func hidden(p string) bool {
	for _, part := range strings.Split(p, "/") {
		if content.Ignored(part) {
			return true
		}
	}
	return false
}
