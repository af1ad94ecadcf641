// Package models defines the domain types for Chasqui.
package models

import (
	"slices"
	"time"
)

// Page is a fully resolved content unit. Identifier is the stable primary key;
// Filename may change across renames.
type Page struct {
	Identifier    string    `json:"identifier"`
	Filename      string    `json:"filename"`
	Name          string    `json:"name,omitempty"`
	HTMLContent   string    `json:"html_content"`
	MDContent     string    `json:"md_content"`
	MDContentHash string    `json:"md_content_hash"`
	Tags          []string  `json:"tags,omitempty"`
	Links         []Link    `json:"links,omitempty"`
	CreatedAt     time.Time `json:"created_datetime,omitzero"`
	ModifiedAt    time.Time `json:"modified_datetime,omitzero"`
}

// Link is an outbound internal reference recorded at compile time.
// Resolved links target an identifier; unresolved ones target their lookup
// key. Key is the normalised reference as written, kept for both so a later
// pass can tell when a new file would change what the reference denotes.
type Link struct {
	Target   string `json:"target"`
	Resolved bool   `json:"resolved"`
	Key      string `json:"key,omitempty"`
}

// Clone returns a copy that shares no slices with p.
func (p Page) Clone() Page {
	p.Tags = slices.Clone(p.Tags)
	p.Links = slices.Clone(p.Links)
	return p
}

// Equal reports whether two pages would produce the same stored row.
func (p Page) Equal(o Page) bool {
	return p.Identifier == o.Identifier &&
		p.Filename == o.Filename &&
		p.Name == o.Name &&
		p.HTMLContent == o.HTMLContent &&
		p.MDContent == o.MDContent &&
		p.MDContentHash == o.MDContentHash &&
		slices.Equal(p.Tags, o.Tags) &&
		slices.Equal(p.Links, o.Links) &&
		p.CreatedAt.Equal(o.CreatedAt) &&
		p.ModifiedAt.Equal(o.ModifiedAt)
}

// LinksTo reports whether p has a resolved link to identifier.
func (p Page) LinksTo(identifier string) bool {
	for _, l := range p.Links {
		if l.Resolved && l.Target == identifier {
			return true
		}
	}
	return false
}

// HasTag reports whether p carries tag.
func (p Page) HasTag(tag string) bool {
	return slices.Contains(p.Tags, tag)
}
