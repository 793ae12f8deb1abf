// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package blogtest provides in-memory implementations of the blog
// service's dependencies for tests.
package blogtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"piskovna/internal/imagestore"
	"piskovna/internal/models"
	"piskovna/internal/store"
)

// Posts is an in-memory blog.Repository.
type Posts struct {
	mu     sync.Mutex
	rows   map[int64]models.Post
	nextID int64

	// Err, when set, is returned by every method.
	Err error
}

// NewPosts returns an empty repository.
func NewPosts() *Posts {
	return &Posts{rows: map[int64]models.Post{}}
}

// Len returns the number of stored posts.
func (r *Posts) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func (r *Posts) All(_ context.Context) ([]models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	out := make([]models.Post, 0, len(r.rows))
	for _, p := range r.rows {
		out = append(out, clonePost(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *Posts) List(ctx context.Context, f models.PostFilter) (*models.PostPage, error) {
	all, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	f = f.Normalize()

	var matched []models.Post
	for _, p := range all {
		if matches(p, f) {
			matched = append(matched, p)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := sortKey(matched[i], f.Sort), sortKey(matched[j], f.Sort)
		if a == b {
			return matched[i].ID > matched[j].ID
		}
		if f.Desc {
			return a > b
		}
		return a < b
	})

	page := &models.PostPage{Items: []models.Post{}, Total: len(matched)}
	start := f.Offset()
	if start < len(matched) {
		end := min(start+f.PerPage, len(matched))
		page.Items = matched[start:end]
	}
	return page, nil
}

func matches(p models.Post, f models.PostFilter) bool {
	contains := func(s, sub string) bool {
		return strings.Contains(strings.ToLower(s), strings.ToLower(strings.TrimSpace(sub)))
	}
	switch {
	case f.Title != "" && !contains(p.Title, f.Title):
		return false
	case f.Author != "" && !contains(p.Author, f.Author):
		return false
	case f.Category != "" && p.Category != f.Category:
		return false
	case f.Status != "" && p.Status != f.Status:
		return false
	case f.Date != "" && p.Date.String() != f.Date:
		return false
	}
	return true
}

func sortKey(p models.Post, col string) string {
	switch col {
	case "title":
		return p.Title
	case "author":
		return p.Author
	case "category":
		return p.Category
	case "status":
		return p.Status
	case "date":
		return p.Date.String()
	}
	return fmt.Sprintf("%020d", p.ID)
}

func (r *Posts) Find(_ context.Context, idOrSlug string) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	if id, ok := store.ParseID(idOrSlug); ok {
		if p, found := r.rows[id]; found {
			c := clonePost(p)
			return &c, nil
		}
		return nil, nil
	}
	for _, p := range r.rows {
		if p.Slug == idOrSlug {
			c := clonePost(p)
			return &c, nil
		}
	}
	return nil, nil
}

func (r *Posts) Insert(_ context.Context, p *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if r.slugTaken(p.Slug, 0) {
		return fmt.Errorf("insert post %q: %w", p.Slug, store.ErrDuplicate)
	}
	r.nextID++
	p.ID = r.nextID
	p.CreatedAt = time.Now()
	r.rows[p.ID] = clonePost(*p)
	return nil
}

func (r *Posts) Update(_ context.Context, p *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if r.slugTaken(p.Slug, p.ID) {
		return fmt.Errorf("update post %d: %w", p.ID, store.ErrDuplicate)
	}
	if _, ok := r.rows[p.ID]; ok {
		r.rows[p.ID] = clonePost(*p)
	}
	return nil
}

func (r *Posts) Delete(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return false, r.Err
	}
	if _, ok := r.rows[id]; !ok {
		return false, nil
	}
	delete(r.rows, id)
	return true, nil
}

// Put stores p as is, bypassing slug and view_id handling. Useful for
// seeding rows written by older versions.
func (r *Posts) Put(p models.Post) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == 0 {
		r.nextID++
		p.ID = r.nextID
	} else if p.ID > r.nextID {
		r.nextID = p.ID
	}
	r.rows[p.ID] = clonePost(p)
}

func (r *Posts) slugTaken(slug string, except int64) bool {
	for id, p := range r.rows {
		if id != except && p.Slug == slug {
			return true
		}
	}
	return false
}

func clonePost(p models.Post) models.Post {
	p.Tags = append([]string{}, p.Tags...)
	p.GalleryImages = append([]string{}, p.GalleryImages...)
	if p.FeaturedImage != nil {
		f := *p.FeaturedImage
		p.FeaturedImage = &f
	}
	if p.AOSDuration != nil {
		a := *p.AOSDuration
		p.AOSDuration = &a
	}
	return p
}

// Images is an in-memory blog.ImageStore that records every call. Saved
// data URIs become references under the namespace, numbered in order.
type Images struct {
	mu sync.Mutex
	n  int

	// Stored holds every reference currently present.
	Stored map[string]bool
	// Deleted lists references passed to Delete, in call order.
	Deleted []string
	// Namespaces lists namespaces passed to DeleteNamespace, in call order.
	Namespaces []string
	// Saves counts uploads, not pass-through references.
	Saves int

	// FailSave makes Save fail for data URIs whose payload contains this
	// marker.
	FailSave string
}

// NewImages returns an empty image store.
func NewImages() *Images {
	return &Images{Stored: map[string]bool{}}
}

func (s *Images) Save(_ context.Context, data, namespace string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if data == "" {
		return "", nil
	}
	if !imagestore.IsDataURI(data) {
		return data, nil
	}
	uri, err := imagestore.ParseDataURI(data)
	if err != nil {
		return "", err
	}
	if s.FailSave != "" && strings.Contains(string(uri.Data), s.FailSave) {
		return "", errors.New("blogtest: save failed")
	}
	s.n++
	s.Saves++
	ref := imagestore.Ref(fmt.Sprintf("%s/%d.png", namespace, s.n))
	s.Stored[ref] = true
	return ref, nil
}

func (s *Images) Delete(_ context.Context, ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deleted = append(s.Deleted, ref)
	delete(s.Stored, ref)
}

func (s *Images) DeleteNamespace(_ context.Context, namespace string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Namespaces = append(s.Namespaces, namespace)
	prefix := imagestore.Ref(strings.TrimSuffix(namespace, "/") + "/")
	for ref := range s.Stored {
		if strings.HasPrefix(ref, prefix) {
			delete(s.Stored, ref)
		}
	}
}

// DataURI returns a small data URI carrying marker, for payloads.
func DataURI(marker string) string {
	return imagestore.EncodeDataURI("image/png", []byte("png:"+marker))
}
