package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"piskovna/internal/blog"
	"piskovna/internal/models"
)

// API serves the JSON post endpoints under /api/blog.
type API struct {
	posts *blog.Service
}

// NewAPI creates the JSON API handler group.
func NewAPI(posts *blog.Service) *API {
	return &API{posts: posts}
}

// List returns every post, newest first. With filter or page parameters
// in the query it returns one page of the filtered list instead.
func (a *API) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !hasListQuery(q) {
		posts, err := a.posts.List(r.Context())
		if err != nil {
			writeError(w, r, err, "fetching blogs")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": posts})
		return
	}

	f := filterFromQuery(q).Normalize()
	page, err := a.posts.Search(r.Context(), f)
	if err != nil {
		writeError(w, r, err, "fetching blogs")
		return
	}
	items := page.Items
	if items == nil {
		items = []models.Post{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":        items,
		"total":       page.Total,
		"page":        f.Page,
		"per_page":    f.PerPage,
		"total_pages": f.TotalPages(page.Total),
	})
}

// Get returns one post by numeric id or slug.
func (a *API) Get(w http.ResponseWriter, r *http.Request) {
	p, err := a.posts.Get(r.Context(), chi.URLParam(r, "idOrSlug"))
	if err != nil {
		writeError(w, r, err, "fetching blog")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": p})
}

// Create stores a new post from a JSON payload.
func (a *API) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := decodePayload(w, r)
	if !ok {
		return
	}
	p, err := a.posts.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err, "creating blog")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Blog created successfully",
		"id":      p.ID,
		"slug":    p.Slug,
	})
}

// Update replaces a post with a JSON payload.
func (a *API) Update(w http.ResponseWriter, r *http.Request) {
	in, ok := decodePayload(w, r)
	if !ok {
		return
	}
	if _, err := a.posts.Update(r.Context(), chi.URLParam(r, "idOrSlug"), in); err != nil {
		writeError(w, r, err, "updating blog")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Blog updated successfully"})
}

// Delete removes a post and its images.
func (a *API) Delete(w http.ResponseWriter, r *http.Request) {
	if err := a.posts.Delete(r.Context(), chi.URLParam(r, "idOrSlug")); err != nil {
		writeError(w, r, err, "deleting blog")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Blog deleted successfully"})
}

// decodePayload reads a PostPayload, answering 400 or 413 itself when the
// body is unusable.
func decodePayload(w http.ResponseWriter, r *http.Request) (*models.PostPayload, bool) {
	var in models.PostPayload
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		status := http.StatusBadRequest
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, map[string]any{"message": "Invalid request body", "error": err.Error()})
		return nil, false
	}
	return &in, true
}
