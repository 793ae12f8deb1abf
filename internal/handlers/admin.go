// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"piskovna/internal/blog"
	"piskovna/internal/editor"
	"piskovna/internal/excerpt"
	"piskovna/internal/middleware"
	"piskovna/internal/models"
	"piskovna/internal/render"
)

// excerptLen is the length of the text shown under each title in the list.
const excerptLen = 120

// Admin groups the admin panel HTTP handlers and their dependencies.
type Admin struct {
	renderer    *render.Renderer
	sessions    Sessions
	posts       *blog.Service
	uploadBytes int64
	now         func() time.Time
}

// NewAdmin creates a new Admin handler group. uploadMB caps each image
// picked in the editor.
func NewAdmin(renderer *render.Renderer, sessions Sessions, posts *blog.Service, uploadMB int) *Admin {
	return &Admin{
		renderer:    renderer,
		sessions:    sessions,
		posts:       posts,
		uploadBytes: int64(uploadMB) << 20,
		now:         time.Now,
	}
}

// listRow is one line of the blog table.
type listRow struct {
	ID         int64
	Title      string
	Author     string
	Category   string
	Status     string
	Date       string
	Excerpt    string
	EditURL    string
	PreviewURL string
	DeleteURL  string
}

// listColumn is a sortable table header.
type listColumn struct {
	Label  string
	URL    string
	Active bool
	Desc   bool
}

var sortableColumns = []struct{ key, label string }{
	{"title", "Title"},
	{"author", "Author"},
	{"category", "Category"},
	{"date", "Date"},
	{"status", "Status"},
}

// BlogList renders the filterable, sortable, paginated post table. The
// filter comes from the query string when present and is then remembered
// in the session; otherwise the remembered one is used.
func (a *Admin) BlogList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := middleware.SessionFromCtx(ctx)
	q := r.URL.Query()

	var f models.PostFilter
	switch {
	case q.Has("reset"):
		f = models.PostFilter{}
	case hasListQuery(q):
		f = filterFromQuery(q)
	case sess != nil:
		f = sess.ListPrefs
	}
	f = f.Normalize()

	if sess != nil && (q.Has("reset") || hasListQuery(q)) {
		if err := a.sessions.SaveListPrefs(ctx, r, sess, f); err != nil {
			slog.Warn("save list prefs failed", "error", err)
		}
	}

	page, err := a.posts.Search(ctx, f)
	if err != nil {
		slog.Error("list posts failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	rows := make([]listRow, 0, len(page.Items))
	for _, p := range page.Items {
		id := strconv.FormatInt(p.ID, 10)
		rows = append(rows, listRow{
			ID:         p.ID,
			Title:      p.Title,
			Author:     p.Author,
			Category:   p.Category,
			Status:     p.Status,
			Date:       p.Date.String(),
			Excerpt:    excerpt.First(excerptLen, p.Description, p.DescriptionHTML1, p.DescriptionHTML2),
			EditURL:    "/admin/blog/" + id + "/edit",
			PreviewURL: "/preview/blog/" + id,
			DeleteURL:  "/admin/blog/" + id + "/delete",
		})
	}

	totalPages := f.TotalPages(page.Total)
	data := map[string]any{
		"Posts":      rows,
		"Filter":     f,
		"Columns":    listColumns(f),
		"Total":      page.Total,
		"Page":       f.Page,
		"TotalPages": totalPages,
	}
	if f.Page > 1 {
		prev := f
		prev.Page--
		data["PrevURL"] = "/admin/blog?" + filterQuery(prev).Encode()
	}
	if f.Page < totalPages {
		next := f
		next.Page++
		data["NextURL"] = "/admin/blog?" + filterQuery(next).Encode()
	}

	a.renderer.Page(w, r, "blog_list", &render.PageData{
		Title:   "Blog",
		Section: "blog",
		Data:    data,
	})
}

// listColumns builds the header links. Clicking the active column flips
// the direction; any other column sorts ascending. Sorting returns to the
// first page.
func listColumns(f models.PostFilter) []listColumn {
	cols := make([]listColumn, 0, len(sortableColumns))
	for _, c := range sortableColumns {
		next := f
		next.Page = 1
		next.Sort = c.key
		active := f.Sort == c.key
		next.Desc = active && !f.Desc
		cols = append(cols, listColumn{
			Label:  c.label,
			URL:    "/admin/blog?" + filterQuery(next).Encode(),
			Active: active,
			Desc:   active && f.Desc,
		})
	}
	return cols
}

// BlogNew renders an empty editor with the defaults applied.
func (a *Admin) BlogNew(w http.ResponseWriter, r *http.Request) {
	a.renderForm(w, r, http.StatusOK, editor.New(a.now()))
}

// BlogCreate handles the new post form submission.
func (a *Admin) BlogCreate(w http.ResponseWriter, r *http.Request) {
	a.save(w, r, editor.New(a.now()))
}

// BlogEdit renders the editor hydrated from an existing post.
func (a *Admin) BlogEdit(w http.ResponseWriter, r *http.Request) {
	p, ok := a.loadPost(w, r)
	if !ok {
		return
	}
	a.renderForm(w, r, http.StatusOK, editor.Load(p))
}

// BlogUpdate handles the edit form submission.
func (a *Admin) BlogUpdate(w http.ResponseWriter, r *http.Request) {
	p, ok := a.loadPost(w, r)
	if !ok {
		return
	}
	a.save(w, r, editor.Load(p))
}

// BlogDelete removes a post. HTMX callers get an empty 200 so the row can
// be swapped out; plain forms are redirected back to the list.
func (a *Admin) BlogDelete(w http.ResponseWriter, r *http.Request) {
	err := a.posts.Delete(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, blog.ErrNotFound) {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("delete post failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if r.Header.Get("HX-Request") == "true" {
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/admin/blog", http.StatusSeeOther)
}

// Cookiesbots renders the cookie consent stub page.
func (a *Admin) Cookiesbots(w http.ResponseWriter, r *http.Request) {
	a.renderer.Page(w, r, "cookiesbots", &render.PageData{
		Title:   "Cookiesbots",
		Section: "cookiesbots",
	})
}

func (a *Admin) loadPost(w http.ResponseWriter, r *http.Request) (*models.Post, bool) {
	p, err := a.posts.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, blog.ErrNotFound) {
		http.Error(w, "Post not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		slog.Error("load post failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, false
	}
	return p, true
}

// save applies the submitted form to f and sends it to the post service.
// On failure the form is rendered again with its errors and every pending
// image kept.
func (a *Admin) save(w http.ResponseWriter, r *http.Request, f *editor.Form) {
	in, uploadErrs, err := a.readForm(r, f)
	if err != nil {
		status := http.StatusBadRequest
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			status = http.StatusRequestEntityTooLarge
		}
		http.Error(w, "Invalid form submission", status)
		return
	}
	if err := f.Edit(in); err != nil {
		slog.Error("editor transition failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if len(uploadErrs) > 0 {
		f.Fail(uploadErrs)
		a.renderForm(w, r, http.StatusBadRequest, f)
		return
	}

	payload, err := f.Submit()
	if err != nil {
		slog.Error("editor submit failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var saved *models.Post
	if f.IsNew() {
		saved, err = a.posts.Create(r.Context(), payload)
	} else {
		saved, err = a.posts.Update(r.Context(), f.Key(), payload)
	}
	if err != nil {
		status, errs := formErrors(err)
		f.Fail(errs)
		a.renderForm(w, r, status, f)
		return
	}

	if err := f.Saved(saved.ID); err != nil {
		slog.Warn("editor transition failed", "error", err)
	}
	http.Redirect(w, r, "/admin/blog", http.StatusSeeOther)
}

// formErrors turns a post service error into form field messages.
func formErrors(err error) (int, map[string]string) {
	var verr *blog.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Fields
	case errors.Is(err, blog.ErrConflict):
		return http.StatusBadRequest, map[string]string{"slug": blog.ErrorMessage(err)}
	case errors.Is(err, blog.ErrNotFound):
		return http.StatusNotFound, map[string]string{"": blog.ErrorMessage(err)}
	}
	slog.Error("save post failed", "error", err)
	return http.StatusInternalServerError, map[string]string{"": "Could not save the post. Please try again."}
}

func (a *Admin) renderForm(w http.ResponseWriter, r *http.Request, status int, f *editor.Form) {
	title, action, section := "New post", "/admin/blog/new", "new"
	if !f.IsNew() {
		title, action, section = "Edit post", "/admin/blog/"+f.Key()+"/edit", "blog"
	}
	a.renderer.PageStatus(w, r, status, "blog_form", &render.PageData{
		Title:   title,
		Section: section,
		Data: map[string]any{
			"Form":   f,
			"Action": action,
			"MaxMB":  a.uploadBytes >> 20,
		},
	})
}
