package engine

import (
	"context"
	"errors"
	"sort"

	"github.com/starford/chasqui/internal/apperr"
)

// Summary describes one completed pass.
type Summary struct {
	Full     bool
	Upserted []string
	Deleted  []string
	// Rendered counts pages compiled to HTML; Reused counts pages whose
	// unchanged body kept its stored HTML.
	Rendered int
	Reused   int
	Failed   []apperr.FileError
}

// Changed reports whether the pass wrote anything.
func (s Summary) Changed() bool {
	return len(s.Upserted) > 0 || len(s.Deleted) > 0
}

func (s *Summary) fail(path string, err error) {
	s.Failed = append(s.Failed, apperr.FileError{Path: path, Err: err})
}

func (s *Summary) sortFailed() {
	sort.SliceStable(s.Failed, func(i, j int) bool { return s.Failed[i].Path < s.Failed[j].Path })
}

// Notifier is told about every pass that changed at least one page.
type Notifier interface {
	Notify(ctx context.Context, s Summary) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, s Summary) error

func (f NotifierFunc) Notify(ctx context.Context, s Summary) error {
	return f(ctx, s)
}

// Notifiers fans a summary out to several notifiers.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, s Summary) error {
	var errs []error
	for _, n := range ns {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
