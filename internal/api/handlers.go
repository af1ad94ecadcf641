package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/starford/chasqui/internal/apperr"
	"github.com/starford/chasqui/internal/engine"
	"github.com/starford/chasqui/internal/models"
)

// PageService is the read side of the sync engine plus manual resync.
type PageService interface {
	ListPages() []models.Page
	GetPage(id string) (models.Page, error)
	Backlinks(id string) ([]models.Page, error)
	Route(id string) string
	RunFullSync(ctx context.Context) (engine.Summary, error)
}

var _ PageService = (*engine.Engine)(nil)

// Handler holds API route handlers.
type Handler struct {
	svc PageService
}

// NewHandler creates a new Handler.
func NewHandler(svc PageService) *Handler {
	return &Handler{svc: svc}
}

// pageIdentifier extracts the identifier from the URL (everything after /api/pages/).
// Supports encoded slashes from OpenAPI clients (e.g. guides%2Fsetup).
func pageIdentifier(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListPages handles GET /api/pages.
//
//	@Summary		List pages with optional tag filter
//	@Tags			pages
//	@Produce		json
//	@Param			tag	query		string	false	"Filter by tag"
//	@Success		200	{object}	PageListResponse
//	@Router			/pages [get]
func (h *Handler) ListPages(w http.ResponseWriter, r *http.Request) {
	tag := r.URL.Query().Get("tag")

	items := []PageListItem{}
	for _, p := range h.svc.ListPages() {
		if tag != "" && !p.HasTag(tag) {
			continue
		}
		items = append(items, toListItem(p, h.svc.Route(p.Identifier)))
	}
	writeJSON(w, http.StatusOK, PageListResponse{Pages: items, Total: len(items)})
}

// GetPage handles GET /api/pages/*. An empty identifier names the home page.
//
//	@Summary		Get a single page by identifier
//	@Tags			pages
//	@Produce		json
//	@Param			identifier	path		string	true	"Page identifier"
//	@Success		200			{object}	PageDetail
//	@Failure		404			{object}	errResponse
//	@Router			/pages/{identifier} [get]
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	id := pageIdentifier(r)
	page, err := h.svc.GetPage(id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
		} else {
			slog.Error("api: get page failed", slog.String("identifier", id), slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	backlinks, err := h.svc.Backlinks(page.Identifier)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		slog.Error("api: backlinks failed", slog.String("identifier", page.Identifier), slog.String("error", err.Error()))
	}
	writeJSON(w, http.StatusOK, toDetail(page, h.svc.Route(page.Identifier), backlinks))
}

// Sync handles POST /api/sync.
//
//	@Summary		Run a full resync of the content directory
//	@Tags			sync
//	@Produce		json
//	@Success		200	{object}	SyncResponse
//	@Failure		503	{object}	errResponse
//	@Router			/sync [post]
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.RunFullSync(r.Context())
	if err != nil {
		slog.Error("api: manual sync failed", slog.String("error", err.Error()))
		writeError(w, http.StatusServiceUnavailable, "sync failed")
		return
	}
	writeJSON(w, http.StatusOK, SyncResponseFrom(s))
}
