package cache

import (
	"errors"
	"sync"
	"testing"

	"github.com/starford/chasqui/internal/apperr"
	"github.com/starford/chasqui/internal/models"
)

func page(id, filename string) models.Page {
	return models.Page{Identifier: id, Filename: filename, Tags: []string{"t"}}
}

func TestLoadAndGet(t *testing.T) {
	c := New()
	if err := c.Load([]models.Page{page("b", "b.md"), page("a", "a.md")}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	if p, ok := c.Get("a"); !ok || p.Filename != "a.md" {
		t.Errorf("Get(a) = %+v, %v", p, ok)
	}
	if p, ok := c.GetByFilename("b.md"); !ok || p.Identifier != "b" {
		t.Errorf("GetByFilename(b.md) = %+v, %v", p, ok)
	}
	all := c.All()
	if len(all) != 2 || all[0].Identifier != "a" {
		t.Errorf("All = %+v", all)
	}
}

func TestLoad_DuplicateFilename(t *testing.T) {
	c := New()
	err := c.Load([]models.Page{page("a", "x.md"), page("b", "x.md")})
	if !errors.Is(err, apperr.ErrCacheConsistency) {
		t.Fatalf("err = %v, want ErrCacheConsistency", err)
	}
	if c.Len() != 0 {
		t.Error("failed load must not publish a snapshot")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	c := New()
	_ = c.Load([]models.Page{page("a", "a.md")})
	p, _ := c.Get("a")
	p.Tags[0] = "mutated"
	if q, _ := c.Get("a"); q.Tags[0] != "t" {
		t.Error("caller mutation leaked into the cache")
	}
}

func TestApply_RenameAndDelete(t *testing.T) {
	c := New()
	_ = c.Load([]models.Page{page("a", "a.md"), page("b", "b.md")})

	if err := c.Apply([]models.Page{page("a", "moved.md")}, []string{"b"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, ok := c.GetByFilename("a.md"); ok {
		t.Error("old filename should be gone")
	}
	if p, ok := c.GetByFilename("moved.md"); !ok || p.Identifier != "a" {
		t.Errorf("moved.md = %+v, %v", p, ok)
	}
	if _, ok := c.Get("b"); ok {
		t.Error("b should be deleted")
	}
}

func TestApply_FilenameSwap(t *testing.T) {
	c := New()
	_ = c.Load([]models.Page{page("a", "a.md"), page("b", "b.md")})
	if err := c.Apply([]models.Page{page("a", "b.md"), page("b", "a.md")}, nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if p, _ := c.GetByFilename("a.md"); p.Identifier != "b" {
		t.Errorf("a.md owner = %q, want b", p.Identifier)
	}
}

func TestApply_ConflictLeavesCacheUnchanged(t *testing.T) {
	c := New()
	_ = c.Load([]models.Page{page("a", "a.md"), page("b", "b.md")})
	err := c.Apply([]models.Page{page("c", "c.md"), page("x", "a.md")}, nil)
	if !errors.Is(err, apperr.ErrCacheConsistency) {
		t.Fatalf("err = %v, want ErrCacheConsistency", err)
	}
	if _, ok := c.Get("c"); ok {
		t.Error("partial batch must not become visible")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestConcurrentReadsDuringApply(t *testing.T) {
	c := New()
	_ = c.Load([]models.Page{page("a", "a.md"), page("b", "b.md")})

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				// Both pages move together, so a reader sees both or neither renamed.
				all := c.All()
				if len(all) != 2 || (all[0].Filename == "a.md") != (all[1].Filename == "b.md") {
					t.Errorf("half-applied snapshot: %+v", all)
					return
				}
			}
		}()
	}
	for i := 0; i < 200; i++ {
		if i%2 == 0 {
			_ = c.Apply([]models.Page{page("a", "a-v1.md"), page("b", "b-v1.md")}, nil)
		} else {
			_ = c.Apply([]models.Page{page("a", "a.md"), page("b", "b.md")}, nil)
		}
	}
	close(stop)
	wg.Wait()
}
