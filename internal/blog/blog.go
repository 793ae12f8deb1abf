// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package blog orchestrates post writes across the database and the image
// store. Images are saved before the row is written and orphans are deleted
// after it. The sequence is best effort: an image failure never fails the
// write, so storage and database can drift apart after a partial failure.
package blog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"piskovna/internal/imagestore"
	"piskovna/internal/metrics"
	"piskovna/internal/models"
	"piskovna/internal/slug"
	"piskovna/internal/store"
)

var (
	// ErrNotFound means no post matches the id or slug.
	ErrNotFound = errors.New("post not found")
	// ErrConflict means the slug is already taken by another post.
	ErrConflict = errors.New("a post with this slug already exists")
)

// Repository persists posts. *store.PostStore satisfies it. Find returns
// (nil, nil) when nothing matches.
type Repository interface {
	All(ctx context.Context) ([]models.Post, error)
	List(ctx context.Context, f models.PostFilter) (*models.PostPage, error)
	Find(ctx context.Context, idOrSlug string) (*models.Post, error)
	Insert(ctx context.Context, p *models.Post) error
	Update(ctx context.Context, p *models.Post) error
	Delete(ctx context.Context, id int64) (bool, error)
}

// ImageStore persists post images. *imagestore.Store satisfies it. Delete
// and DeleteNamespace log their own failures.
type ImageStore interface {
	Save(ctx context.Context, data, namespace string) (string, error)
	Delete(ctx context.Context, ref string)
	DeleteNamespace(ctx context.Context, namespace string)
}

// ChangeFunc is called after a post was updated or deleted, with the row
// as it was before the change.
type ChangeFunc func(ctx context.Context, old *models.Post)

// Service implements post CRUD with image handling.
type Service struct {
	posts    Repository
	images   ImageStore
	onChange []ChangeFunc

	now       func() time.Time
	newViewID func() string
}

// NewService creates a Service.
func NewService(posts Repository, images ImageStore) *Service {
	return &Service{
		posts:     posts,
		images:    images,
		now:       time.Now,
		newViewID: newViewID,
	}
}

// OnChange registers fn to run after every update and delete.
func (s *Service) OnChange(fn ChangeFunc) {
	s.onChange = append(s.onChange, fn)
}

func newViewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// List returns every post, newest first. Before the first post is created
// the list is empty.
func (s *Service) List(ctx context.Context) ([]models.Post, error) {
	posts, err := s.posts.All(ctx)
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return posts, nil
}

// Search returns one filtered page of posts.
func (s *Service) Search(ctx context.Context, f models.PostFilter) (*models.PostPage, error) {
	return s.posts.List(ctx, f.Normalize())
}

// Get returns the post with the given numeric id or slug.
func (s *Service) Get(ctx context.Context, idOrSlug string) (*models.Post, error) {
	p, err := s.posts.Find(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	return p, nil
}

// Create stores a new post. The slug is taken from the payload, else from
// the title, else a timestamp. Images are uploaded under a fresh view_id
// before the row is inserted.
func (s *Service) Create(ctx context.Context, in *models.PostPayload) (*models.Post, error) {
	if err := validatePayload(in); err != nil {
		return nil, err
	}

	now := s.now()
	p := &models.Post{ViewID: s.newViewID()}
	if err := applyPayload(p, in, now); err != nil {
		return nil, err
	}
	p.Slug = slug.Resolve(in.Slug, in.Title, now)

	p.FeaturedImage, p.GalleryImages = s.saveImages(ctx, p.ViewID, in)

	err := s.posts.Insert(ctx, p)
	metrics.ObservePostWrite("create", err)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrConflict
		}
		return nil, err
	}

	slog.Info("post created", "id", p.ID, "slug", p.Slug)
	return p, nil
}

// Update replaces every field of an existing post. Image references that
// the post had before and no longer has are deleted after the row is
// written.
func (s *Service) Update(ctx context.Context, idOrSlug string, in *models.PostPayload) (*models.Post, error) {
	old, err := s.Get(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	if err := validatePayload(in); err != nil {
		return nil, err
	}

	now := s.now()
	p := &models.Post{ID: old.ID, ViewID: old.ViewID, CreatedAt: old.CreatedAt}
	if p.ViewID == "" {
		p.ViewID = s.newViewID()
	}
	if err := applyPayload(p, in, now); err != nil {
		return nil, err
	}
	p.Slug = slug.Resolve(in.Slug, in.Title, now)

	p.FeaturedImage, p.GalleryImages = s.saveImages(ctx, p.ViewID, in)

	err = s.posts.Update(ctx, p)
	metrics.ObservePostWrite("update", err)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrConflict
		}
		return nil, err
	}

	orphans := s.owned(ctx, old, Orphans(old.ImageRefs(), p.ImageRefs()))
	for _, ref := range orphans {
		s.images.Delete(ctx, ref)
	}
	metrics.OrphansDeleted.Add(float64(len(orphans)))

	s.changed(ctx, old)
	slog.Info("post updated", "id", p.ID, "slug", p.Slug, "orphans", len(orphans))
	return p, nil
}

// Delete removes a post and then its images. With a view_id the whole
// per-post namespaces go; without one only the references the row knows.
func (s *Service) Delete(ctx context.Context, idOrSlug string) error {
	old, err := s.Get(ctx, idOrSlug)
	if err != nil {
		return err
	}

	deleted, err := s.posts.Delete(ctx, old.ID)
	metrics.ObservePostWrite("delete", err)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}

	if old.ViewID != "" {
		s.images.DeleteNamespace(ctx, imagestore.Namespace(models.FolderMainImage, old.ViewID))
		s.images.DeleteNamespace(ctx, imagestore.Namespace(models.FolderPhotoGallery, old.ViewID))
	} else {
		for _, ref := range s.owned(ctx, old, old.ImageRefs()) {
			s.images.Delete(ctx, ref)
		}
	}

	s.changed(ctx, old)
	slog.Info("post deleted", "id", old.ID, "slug", old.Slug)
	return nil
}

// owned filters refs down to the images old may delete. A post owns what
// lies under its own view_id namespaces. A legacy post without a view_id
// owns whatever no other post references.
func (s *Service) owned(ctx context.Context, old *models.Post, refs []string) []string {
	if len(refs) == 0 {
		return nil
	}

	var foreign map[string]bool
	if old.ViewID == "" {
		all, err := s.posts.All(ctx)
		if err != nil {
			slog.Warn("image ownership check failed, keeping images", "post_id", old.ID, "error", err)
			return nil
		}
		foreign = map[string]bool{}
		for i := range all {
			if all[i].ID == old.ID {
				continue
			}
			for _, ref := range all[i].ImageRefs() {
				foreign[ref] = true
			}
		}
	}

	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		mine := !foreign[ref]
		if old.ViewID != "" {
			mine = inNamespaces(ref, old.ViewID)
		}
		if mine {
			out = append(out, ref)
			continue
		}
		slog.Warn("not deleting image owned elsewhere", "post_id", old.ID, "ref", ref)
	}
	return out
}

func inNamespaces(ref, viewID string) bool {
	key, ok := imagestore.KeyFromRef(ref)
	if !ok {
		return false
	}
	for _, folder := range []string{models.FolderMainImage, models.FolderPhotoGallery} {
		if strings.HasPrefix(key, imagestore.Namespace(folder, viewID)+"/") {
			return true
		}
	}
	return false
}

func (s *Service) changed(ctx context.Context, old *models.Post) {
	for _, fn := range s.onChange {
		fn(ctx, old)
	}
}

// saveImages resolves the payload's image fields one at a time. A field
// that fails to save is dropped from the post and the failure is logged.
func (s *Service) saveImages(ctx context.Context, viewID string, in *models.PostPayload) (*string, []string) {
	var featured *string
	if in.FeaturedImage != nil && *in.FeaturedImage != "" {
		ref, err := s.images.Save(ctx, *in.FeaturedImage, imagestore.Namespace(models.FolderMainImage, viewID))
		if err != nil {
			slog.Warn("featured image not saved", "view_id", viewID, "error", err)
		} else if ref != "" {
			featured = &ref
		}
	}

	gallery := make([]string, 0, len(in.GalleryImages))
	for i, img := range in.GalleryImages {
		if img == "" {
			continue
		}
		ref, err := s.images.Save(ctx, img, imagestore.Namespace(models.FolderPhotoGallery, viewID))
		if err != nil {
			slog.Warn("gallery image not saved", "view_id", viewID, "index", i, "error", err)
			continue
		}
		if ref != "" {
			gallery = append(gallery, ref)
		}
	}
	return featured, gallery
}

// applyPayload copies the plain fields of in onto p.
func applyPayload(p *models.Post, in *models.PostPayload, now time.Time) error {
	p.Title = in.Title
	p.Description = in.Description
	p.DescriptionHTML1 = in.DescriptionHTML1
	p.DescriptionHTML2 = in.DescriptionHTML2
	p.Tags = cleanTags(in.Tags)
	p.Author = in.Author
	p.Category = in.Category
	p.Status = in.Status
	p.ShowNewsletter = in.Newsletter()
	p.MetaTitle = in.MetaTitle
	p.MetaKeywords = in.MetaKeywords
	p.AOSDuration = in.AOSDuration.Ptr()

	if strings.TrimSpace(in.Date) == "" {
		p.Date = models.NewDate(now)
		return nil
	}
	d, err := models.ParseDate(in.Date)
	if err != nil {
		return &ValidationError{Fields: map[string]string{"date": err.Error()}}
	}
	p.Date = d
	return nil
}

// cleanTags trims tags and drops empty ones, keeping order.
func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Orphans returns the references in before that are missing from after,
// in their original order and without duplicates.
func Orphans(before, after []string) []string {
	keep := make(map[string]bool, len(after))
	for _, ref := range after {
		keep[ref] = true
	}
	var out []string
	seen := make(map[string]bool, len(before))
	for _, ref := range before {
		if ref == "" || keep[ref] || seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, ref)
	}
	return out
}

// IsUserError reports whether err is caused by the request rather than by
// an upstream failure.
func IsUserError(err error) bool {
	var verr *ValidationError
	return errors.Is(err, ErrConflict) || errors.As(err, &verr)
}

// ErrorMessage renders err for an API client or the admin form.
func ErrorMessage(err error) string {
	var verr *ValidationError
	switch {
	case errors.Is(err, ErrNotFound):
		return "Post not found"
	case errors.Is(err, ErrConflict):
		return "A post with this slug already exists"
	case errors.As(err, &verr):
		return fmt.Sprintf("Invalid post: %s", strings.TrimPrefix(verr.Error(), "invalid post: "))
	}
	return "Internal server error"
}
