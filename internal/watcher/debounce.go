// Package watcher turns filesystem notifications into debounced batches of
// changed content paths.
package watcher

import (
	"context"
	"sort"
	"time"
)

// DefaultDebounce is the quiet period after which pending paths are flushed.
const DefaultDebounce = 1500 * time.Millisecond

// Batch is one coalesced unit of work for the engine.
type Batch struct {
	// Paths are distinct, sorted, slash-separated and relative to the content root.
	Paths []string
	// Full asks for a full sync instead of an incremental one.
	Full bool
}

// Debouncer coalesces paths until no new one arrives for the window, then
// emits them as one Batch. While the consumer is busy, new paths are merged
// into the undelivered batch and the window starts over; nothing is dropped.
type Debouncer struct {
	window time.Duration
	in     chan string
	full   chan struct{}
	out    chan Batch
	done   chan struct{}
}

// NewDebouncer creates a Debouncer whose output queue holds capacity batches.
func NewDebouncer(window time.Duration, capacity int) *Debouncer {
	if capacity < 1 {
		capacity = 1
	}
	return &Debouncer{
		window: window,
		in:     make(chan string, 64),
		full:   make(chan struct{}, 1),
		out:    make(chan Batch, capacity),
		done:   make(chan struct{}),
	}
}

// Add records a changed path. It never blocks after Run has returned.
func (d *Debouncer) Add(path string) {
	select {
	case d.in <- path:
	case <-d.done:
	}
}

// RequestFull marks the pending batch as a full sync.
func (d *Debouncer) RequestFull() {
	select {
	case d.full <- struct{}{}:
	case <-d.done:
	default:
		// A request is already queued.
	}
}

// Out returns the batch channel. It is closed when Run returns; batches
// already queued stay readable. The consumer must keep reading until the
// channel is closed, since Run hands over its last batch before returning.
func (d *Debouncer) Out() <-chan Batch {
	return d.out
}

// Run processes input until ctx is cancelled.
func (d *Debouncer) Run(ctx context.Context) {
	defer close(d.out)
	defer close(d.done)

	pending := make(map[string]struct{})
	full := false
	var ready *Batch

	timer := time.NewTimer(d.window)
	timer.Stop()
	defer timer.Stop()

	// fold moves an undelivered batch back into pending.
	fold := func() {
		if ready != nil {
			for _, p := range ready.Paths {
				pending[p] = struct{}{}
			}
			full = full || ready.Full
			ready = nil
		}
	}
	touch := func() {
		fold()
		timer.Reset(d.window)
	}
	flush := func() *Batch {
		if len(pending) == 0 && !full {
			return nil
		}
		b := Batch{Full: full, Paths: make([]string, 0, len(pending))}
		for p := range pending {
			b.Paths = append(b.Paths, p)
		}
		sort.Strings(b.Paths)
		pending = make(map[string]struct{})
		full = false
		return &b
	}

	for {
		var out chan Batch
		if ready != nil {
			out = d.out
		}

		select {
		case <-ctx.Done():
			// Nothing flushed or pending is lost: the last batch waits for
			// the consumer, which drains Out until it is closed.
			fold()
			d.drainInput(pending, &full)
			if last := flush(); last != nil {
				d.out <- *last
			}
			return

		case p := <-d.in:
			pending[p] = struct{}{}
			touch()

		case <-d.full:
			full = true
			touch()

		case <-timer.C:
			ready = flush()

		case out <- derefOrZero(ready):
			ready = nil
		}
	}
}

// drainInput moves events already sitting in the input channels into pending.
func (d *Debouncer) drainInput(pending map[string]struct{}, full *bool) {
	for {
		select {
		case p := <-d.in:
			pending[p] = struct{}{}
		case <-d.full:
			*full = true
		default:
			return
		}
	}
}

func derefOrZero(b *Batch) Batch {
	if b == nil {
		return Batch{}
	}
	return *b
}
