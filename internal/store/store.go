// Package store persists pages. The engine depends on Repository only; SQLite
// is the bundled implementation.
package store

import (
	"context"

	"github.com/starford/chasqui/internal/models"
)

// Repository is the durable page store. Every method is atomic on its own.
type Repository interface {
	// GetAll returns every persisted page ordered by identifier.
	GetAll(ctx context.Context) ([]models.Page, error)
	// GetByIdentifier returns apperr.ErrNotFound when id is absent.
	GetByIdentifier(ctx context.Context, id string) (*models.Page, error)
	// Upsert inserts p or updates every column of the row keyed by p.Identifier.
	Upsert(ctx context.Context, p models.Page) error
	// Delete removes the row for id. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error
}

// Verify *SQLite satisfies Repository at compile time.
var _ Repository = (*SQLite)(nil)
