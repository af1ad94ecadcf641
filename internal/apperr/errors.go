// Package apperr defines the error taxonomy shared by the sync engine and its adapters.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	// Per-file failures. They remove one file from a pass and never abort it.
	ErrFileRead            = errors.New("file read error")
	ErrFrontmatterParse    = errors.New("frontmatter parse error")
	ErrMarkdownCompile     = errors.New("markdown compile error")
	ErrIdentifierCollision = errors.New("identifier collision")
	ErrUnresolvedLink      = errors.New("unresolved link")

	// Batch-level failures.
	ErrPersistence = errors.New("persistence error")
	// ErrCacheConsistency signals a broken commit-then-cache invariant.
	ErrCacheConsistency = errors.New("cache consistency violation")
)

// FileError attaches the content path to a per-file failure.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e FileError) Unwrap() error {
	return e.Err
}
