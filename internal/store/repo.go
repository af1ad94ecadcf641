package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/chasqui/internal/apperr"
	"github.com/starford/chasqui/internal/models"
)

const pageColumns = `identifier, filename, name, html_content, md_content, md_content_hash, tags, created_datetime, modified_datetime`

// Upsert writes p, its tags and its links in one transaction. A stale row that
// still holds p.Filename under another identifier is displaced first.
func (s *SQLite) Upsert(ctx context.Context, p models.Page) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tags, err := encodeTags(p.Tags)
	if err != nil {
		return fmt.Errorf("store: encode tags: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM pages WHERE filename = ? AND identifier <> ?`, p.Filename, p.Identifier); err != nil {
		return fmt.Errorf("store: displace filename: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pages (`+pageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identifier) DO UPDATE SET
			filename          = excluded.filename,
			name              = excluded.name,
			html_content      = excluded.html_content,
			md_content        = excluded.md_content,
			md_content_hash   = excluded.md_content_hash,
			tags              = excluded.tags,
			created_datetime  = excluded.created_datetime,
			modified_datetime = excluded.modified_datetime
	`, p.Identifier, p.Filename, nullString(p.Name), p.HTMLContent, p.MDContent, p.MDContentHash,
		tags, nullTime(p.CreatedAt), nullTime(p.ModifiedAt))
	if err != nil {
		return fmt.Errorf("store: upsert page: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM page_links WHERE source = ?`, p.Identifier); err != nil {
		return fmt.Errorf("store: clear links: %w", err)
	}
	if len(p.Links) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO page_links (source, target, resolved, ref) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("store: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, l := range p.Links {
			if _, err := stmt.ExecContext(ctx, p.Identifier, l.Target, l.Resolved, l.Key); err != nil {
				return fmt.Errorf("store: insert link: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Delete removes a page; its links go with it through the foreign key.
func (s *SQLite) Delete(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM pages WHERE identifier = ?`, id); err != nil {
		return fmt.Errorf("store: delete %s: %w", id, err)
	}
	return nil
}

// GetByIdentifier returns a single page with its links.
func (s *SQLite) GetByIdentifier(ctx context.Context, id string) (*models.Page, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE identifier = ?`, id)
	p, err := scanPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: page %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", id, err)
	}

	links, err := s.links(ctx, `SELECT source, target, resolved, ref FROM page_links WHERE source = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, err
	}
	p.Links = links[id]
	return &p, nil
}

// GetAll returns every page ordered by identifier.
func (s *SQLite) GetAll(ctx context.Context) ([]models.Page, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT `+pageColumns+` FROM pages ORDER BY identifier`)
	if err != nil {
		return nil, fmt.Errorf("store: get all: %w", err)
	}
	defer rows.Close()

	var out []models.Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan page: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: get all: %w", err)
	}

	links, err := s.links(ctx, `SELECT source, target, resolved, ref FROM page_links ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Links = links[out[i].Identifier]
	}
	return out, nil
}

func (s *SQLite) links(ctx context.Context, query string, args ...any) (map[string][]models.Link, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: links: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]models.Link)
	for rows.Next() {
		var source string
		var l models.Link
		if err := rows.Scan(&source, &l.Target, &l.Resolved, &l.Key); err != nil {
			return nil, fmt.Errorf("store: scan link: %w", err)
		}
		out[source] = append(out[source], l)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPage(sc scanner) (models.Page, error) {
	var (
		p                 models.Page
		name, tags        sql.NullString
		created, modified sql.NullTime
	)
	if err := sc.Scan(&p.Identifier, &p.Filename, &name, &p.HTMLContent, &p.MDContent, &p.MDContentHash,
		&tags, &created, &modified); err != nil {
		return models.Page{}, err
	}
	p.Name = name.String
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &p.Tags); err != nil {
			return models.Page{}, fmt.Errorf("decode tags of %s: %w", p.Identifier, err)
		}
	}
	if created.Valid {
		p.CreatedAt = created.Time.UTC()
	}
	if modified.Valid {
		p.ModifiedAt = modified.Time.UTC()
	}
	return p, nil
}

func encodeTags(tags []string) (any, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
