package parser

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/starford/chasqui/internal/apperr"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\nidentifier: hello\nname: Hello\ntags:\n  - go\n  - chasqui\n---\n# Heading\nBody text.\n")
	d, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Identifier != "hello" {
		t.Errorf("identifier = %q, want %q", d.Identifier, "hello")
	}
	if d.Name != "Hello" {
		t.Errorf("name = %q, want %q", d.Name, "Hello")
	}
	if len(d.Tags) != 2 || d.Tags[0] != "go" || d.Tags[1] != "chasqui" {
		t.Errorf("tags = %v, want [go chasqui]", d.Tags)
	}
	if strings.TrimSpace(d.Body) != "# Heading\nBody text." {
		t.Errorf("body = %q", d.Body)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	d, err := Parse([]byte("# Just a heading\nSome text.\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Identifier != "" {
		t.Errorf("identifier = %q, want empty", d.Identifier)
	}
	if d.Name != "Just a heading" {
		t.Errorf("name = %q, want H1 fallback", d.Name)
	}
	if strings.TrimSpace(d.Body) != "# Just a heading\nSome text." {
		t.Errorf("body = %q", d.Body)
	}
}

func TestParse_MalformedFrontmatter(t *testing.T) {
	_, err := Parse([]byte("---\nname: [unclosed\n---\nBody\n"))
	if !errors.Is(err, apperr.ErrFrontmatterParse) {
		t.Fatalf("err = %v, want ErrFrontmatterParse", err)
	}
}

func TestParse_TagsAsString(t *testing.T) {
	d, err := Parse([]byte("---\ntags: a, b ,a,\n---\nx\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.Tags) != 2 || d.Tags[0] != "a" || d.Tags[1] != "b" {
		t.Errorf("tags = %v, want [a b]", d.Tags)
	}
}

func TestParse_Dates(t *testing.T) {
	d, err := Parse([]byte("---\ncreated_datetime: \"2024-03-01T10:00:00Z\"\nmodified: \"2024-03-05\"\n---\nx\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC); !d.Created.Equal(want) {
		t.Errorf("created = %v, want %v", d.Created, want)
	}
	if want := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC); !d.Modified.Equal(want) {
		t.Errorf("modified = %v, want %v", d.Modified, want)
	}
}

func TestParse_BadDateIsAbsent(t *testing.T) {
	d, err := Parse([]byte("---\ncreated_datetime: \"last tuesday\"\n---\nx\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Created.IsZero() {
		t.Errorf("created = %v, want zero", d.Created)
	}
}

func TestParse_IdentifierNormalized(t *testing.T) {
	d, err := Parse([]byte("---\nidentifier: \" /guides/setup/ \"\n---\nx\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Identifier != "guides/setup" {
		t.Errorf("identifier = %q, want guides/setup", d.Identifier)
	}
}

func TestDeriveName_TitleAlias(t *testing.T) {
	if got := deriveName(frontMatter{Title: "FM Title"}, "# H1 Title\ntext"); got != "FM Title" {
		t.Errorf("name = %q, want %q", got, "FM Title")
	}
	if got := deriveName(frontMatter{}, "some text\n# My Heading\nmore"); got != "My Heading" {
		t.Errorf("name = %q, want %q", got, "My Heading")
	}
}
