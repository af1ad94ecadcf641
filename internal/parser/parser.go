// Package parser extracts frontmatter metadata and the Markdown body from content files.
package parser

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/adrg/frontmatter"

	"github.com/starford/chasqui/internal/apperr"
)

// Document holds the output of parsing a content file. Zero values mean the
// field was absent from the frontmatter.
type Document struct {
	Identifier string
	Name       string
	Tags       []string
	Created    time.Time
	Modified   time.Time
	Body       string
}

type frontMatter struct {
	Identifier       string  `yaml:"identifier"`
	Name             string  `yaml:"name"`
	Title            string  `yaml:"title"`
	Tags             tagList `yaml:"tags"`
	CreatedDatetime  string  `yaml:"created_datetime"`
	Created          string  `yaml:"created"`
	ModifiedDatetime string  `yaml:"modified_datetime"`
	Modified         string  `yaml:"modified"`
}

// tagList accepts both a YAML sequence and a comma-separated string.
type tagList []string

func (t *tagList) UnmarshalYAML(unmarshal func(any) error) error {
	var list []string
	if err := unmarshal(&list); err == nil {
		*t = list
		return nil
	}
	var s string
	if err := unmarshal(&s); err != nil {
		return fmt.Errorf("tags: expected a list or a comma-separated string")
	}
	*t = strings.Split(s, ",")
	return nil
}

// Parse splits data into frontmatter metadata and Markdown body. Files without
// frontmatter are all body. Malformed frontmatter yields an error wrapping
// apperr.ErrFrontmatterParse.
func Parse(data []byte) (*Document, error) {
	var fm frontMatter
	body, err := frontmatter.Parse(bytes.NewReader(data), &fm)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrFrontmatterParse, err)
	}

	text := strings.TrimLeft(string(body), "\r\n")
	return &Document{
		Identifier: NormalizeIdentifier(fm.Identifier),
		Name:       deriveName(fm, text),
		Tags:       cleanTags(fm.Tags),
		Created:    parseDate(firstNonEmpty(fm.CreatedDatetime, fm.Created)),
		Modified:   parseDate(firstNonEmpty(fm.ModifiedDatetime, fm.Modified)),
		Body:       text,
	}, nil
}

// NormalizeIdentifier trims whitespace and surrounding slashes.
func NormalizeIdentifier(id string) string {
	return strings.Trim(strings.TrimSpace(id), "/")
}

// deriveName returns the frontmatter name (or title), otherwise the first H1
// heading, otherwise empty string.
func deriveName(fm frontMatter, body string) string {
	if n := firstNonEmpty(fm.Name, fm.Title); n != "" {
		return n
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

func cleanTags(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// parseDate accepts RFC3339 and a few common date forms; anything else is
// treated as absent.
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
