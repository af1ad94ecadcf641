package api

import (
	"time"

	"github.com/starford/chasqui/internal/engine"
	"github.com/starford/chasqui/internal/models"
)

// PageListItem is a lightweight item in a list response.
type PageListItem struct {
	Identifier string    `json:"identifier" example:"guides/setup" validate:"required"`
	Filename   string    `json:"filename" example:"guides/setup.md" validate:"required"`
	Name       string    `json:"name,omitempty" example:"Setup"`
	Route      string    `json:"route" example:"/docs/guides/setup" validate:"required"`
	Tags       []string  `json:"tags" example:"ops,install"`
	ModifiedAt time.Time `json:"modified_datetime,omitzero"`
}

// PageListResponse wraps page listings.
type PageListResponse struct {
	Pages []PageListItem `json:"pages" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// PageDetail is the full page response.
type PageDetail struct {
	PageListItem
	HTMLContent   string        `json:"html_content" validate:"required"`
	MDContent     string        `json:"md_content" validate:"required"`
	MDContentHash string        `json:"md_content_hash" example:"abc123..." validate:"required"`
	CreatedAt     time.Time     `json:"created_datetime,omitzero"`
	Links         []models.Link `json:"links"`
	Backlinks     []string      `json:"backlinks"`
}

// FailedFile is one file excluded from a sync pass.
type FailedFile struct {
	Path  string `json:"path" example:"broken.md" validate:"required"`
	Error string `json:"error" validate:"required"`
}

// SyncResponse reports the outcome of a manual resync.
type SyncResponse struct {
	Full     bool         `json:"full"`
	Upserted []string     `json:"upserted"`
	Deleted  []string     `json:"deleted"`
	Rendered int          `json:"rendered"`
	Reused   int          `json:"reused"`
	Failed   []FailedFile `json:"failed"`
}

func toListItem(p models.Page, route string) PageListItem {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return PageListItem{
		Identifier: p.Identifier,
		Filename:   p.Filename,
		Name:       p.Name,
		Route:      route,
		Tags:       tags,
		ModifiedAt: p.ModifiedAt,
	}
}

func toDetail(p models.Page, route string, backlinks []models.Page) PageDetail {
	bl := make([]string, 0, len(backlinks))
	for _, b := range backlinks {
		bl = append(bl, b.Identifier)
	}
	links := p.Links
	if links == nil {
		links = []models.Link{}
	}
	return PageDetail{
		PageListItem:  toListItem(p, route),
		HTMLContent:   p.HTMLContent,
		MDContent:     p.MDContent,
		MDContentHash: p.MDContentHash,
		CreatedAt:     p.CreatedAt,
		Links:         links,
		Backlinks:     bl,
	}
}

// SyncResponseFrom converts an engine summary into its wire form.
func SyncResponseFrom(s engine.Summary) SyncResponse {
	resp := SyncResponse{
		Full:     s.Full,
		Upserted: nonNil(s.Upserted),
		Deleted:  nonNil(s.Deleted),
		Rendered: s.Rendered,
		Reused:   s.Reused,
		Failed:   make([]FailedFile, 0, len(s.Failed)),
	}
	for _, f := range s.Failed {
		resp.Failed = append(resp.Failed, FailedFile{Path: f.Path, Error: f.Err.Error()})
	}
	return resp
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
