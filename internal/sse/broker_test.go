package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/chasqui/internal/apperr"
	"github.com/starford/chasqui/internal/engine"
)

func testRoute(id string) string { return "/docs/" + id }

func drain(ch chan []byte, wait time.Duration) []string {
	time.Sleep(wait)
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(time.Minute, nil)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(time.Minute, nil)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: EventPageUpdated, Data: map[string]string{"identifier": "a"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: page.updated") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"identifier":"a"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestNotify_PageEventsThenSummary(t *testing.T) {
	b := NewBroker(time.Minute, testRoute)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	err := b.Notify(context.Background(), engine.Summary{
		Upserted: []string{"a", "b"},
		Deleted:  []string{"c"},
		Failed:   []apperr.FileError{{Path: "x.md", Err: apperr.ErrFrontmatterParse}},
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	msgs := drain(ch, 50*time.Millisecond)
	if len(msgs) != 4 {
		t.Fatalf("messages = %d, want 4: %q", len(msgs), msgs)
	}
	if !strings.Contains(msgs[0], "event: page.updated") || !strings.Contains(msgs[0], `"route":"/docs/a"`) {
		t.Errorf("first = %q", msgs[0])
	}
	if !strings.Contains(msgs[2], "event: page.deleted") || !strings.Contains(msgs[2], `"identifier":"c"`) {
		t.Errorf("third = %q", msgs[2])
	}
	if !strings.Contains(msgs[3], "event: pages.synced") || !strings.Contains(msgs[3], `"failed":1`) {
		t.Errorf("last = %q", msgs[3])
	}
}

func TestHeartbeat(t *testing.T) {
	b := NewBroker(20*time.Millisecond, nil)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	select {
	case msg := <-ch:
		if string(msg) != ": ping\n\n" {
			t.Errorf("msg = %q, want ping comment", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no heartbeat")
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(time.Minute, nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	_ = b.Notify(context.Background(), engine.Summary{Upserted: []string{"x"}})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: page.updated") || !strings.Contains(body, "event: pages.synced") {
		t.Errorf("handler output missing events: %q", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Minute, nil)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(time.Minute, nil)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: EventPageUpdated, Data: map[string]string{"identifier": "x"}})
	if err := b.Notify(context.Background(), engine.Summary{Upserted: []string{"x"}}); err != nil {
		t.Errorf("Notify after close: %v", err)
	}
}
