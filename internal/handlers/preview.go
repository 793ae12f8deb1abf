// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"piskovna/internal/blog"
	"piskovna/internal/excerpt"
	"piskovna/internal/models"
	"piskovna/internal/render"
	"piskovna/internal/store"
)

// Preview renders a post the way the public site shows it. Rendered pages
// are kept in the page cache until the post changes.
type Preview struct {
	renderer *render.Renderer
	posts    *blog.Service
	cache    PageCache
}

// NewPreview creates the preview handler. cache may be nil.
func NewPreview(renderer *render.Renderer, posts *blog.Service, cache PageCache) *Preview {
	return &Preview{renderer: renderer, posts: posts, cache: cache}
}

// Post serves /preview/blog/{idOrSlug}. Unknown posts get the "not found"
// page with a 404 status.
func (p *Preview) Post(w http.ResponseWriter, r *http.Request) {
	key := previewKey(chi.URLParam(r, "idOrSlug"))
	ctx := r.Context()

	if p.cache != nil {
		if html, ok := p.cache.Get(ctx, key); ok {
			writePreview(w, http.StatusOK, "HIT", html)
			return
		}
	}

	post, err := p.posts.Get(ctx, key)
	if err != nil && !errors.Is(err, blog.ErrNotFound) {
		slog.Error("preview lookup failed", "key", key, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	data := &render.PageData{Data: map[string]any{"Post": (*models.Post)(nil)}}
	if post != nil {
		data.Title = post.Title
		data.Data["Post"] = post
		data.Data["Summary"] = excerpt.First(160, post.Description, post.DescriptionHTML1, post.DescriptionHTML2)
	}

	html, err := p.renderer.Bytes("preview", data)
	if err != nil {
		slog.Error("preview render failed", "key", key, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if post == nil {
		writePreview(w, http.StatusNotFound, "", html)
		return
	}
	if p.cache != nil {
		p.cache.Set(ctx, key, html)
	}
	writePreview(w, http.StatusOK, "MISS", html)
}

// previewKey maps every spelling of a numeric id ("05", " 5") to the one
// the page cache invalidates.
func previewKey(idOrSlug string) string {
	if id, ok := store.ParseID(idOrSlug); ok {
		return strconv.FormatInt(id, 10)
	}
	return idOrSlug
}

func writePreview(w http.ResponseWriter, status int, cacheState string, html []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if cacheState != "" {
		w.Header().Set("X-Cache", cacheState)
	}
	w.WriteHeader(status)
	w.Write(html)
}
