// Package content is the only filesystem-facing dependency of the sync engine.
package content

import (
	"path"
	"strings"
	"time"
)

// Ext is the extension of content files.
const Ext = ".md"

// FileInfo describes an entry of the content tree. Path is slash-separated and
// relative to the content root.
type FileInfo struct {
	Path    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// Reader abstracts reading the content tree.
type Reader interface {
	// List returns every content file under dir ("" for the whole tree).
	List(dir string) ([]FileInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Stat describes path. Missing paths return an error wrapping fs.ErrNotExist.
	Stat(path string) (FileInfo, error)
}

// IsContentFile reports whether a slash-separated path names a content file the
// engine should track. Dot-files and editor backups are ignored.
func IsContentFile(p string) bool {
	return path.Ext(p) == Ext && !Ignored(p)
}

// Ignored reports whether the last element of p is hidden or an editor backup.
func Ignored(p string) bool {
	base := path.Base(p)
	return strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~")
}

// Clean normalises a relative content path to slash form without a leading "./" or "/".
func Clean(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}
