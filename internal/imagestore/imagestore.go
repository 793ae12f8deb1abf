// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package imagestore persists post images to object storage. Images arrive
// as data URIs from the editor and leave as references of the form
// /api/uploads/<folder>/<view_id>/<unixms>-<random>.<ext>, which the uploads
// route resolves back to bytes. A reference is the only thing the database
// ever stores, so Delete and Resolve must invert exactly what Save produced.
package imagestore

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"piskovna/internal/metrics"
	"piskovna/internal/models"
	"piskovna/internal/storage"
)

// RefPrefix is the URL prefix of every stored reference.
const RefPrefix = "/api/uploads/"

var (
	// ErrInvalidDataURI is returned by ParseDataURI for malformed input.
	ErrInvalidDataURI = errors.New("imagestore: invalid data URI")
	// ErrInvalidKey is returned by Resolve for keys outside the image layout.
	ErrInvalidKey = errors.New("imagestore: invalid key")
	// ErrNotFound is returned by Resolve when the object is missing.
	ErrNotFound = errors.New("imagestore: image not found")
)

var dataURIPattern = regexp.MustCompile(`^data:([A-Za-z0-9.+/-]+);base64,(.+)$`)

// Backend is the object storage the image store writes to.
// *storage.Client satisfies it.
type Backend interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Download(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// Store saves, deletes and resolves post images on a Backend.
type Store struct {
	backend Backend
	now     func() time.Time
	random  func() string
}

// New creates a Store backed by b.
func New(b Backend) *Store {
	return &Store{
		backend: b,
		now:     time.Now,
		random:  randomSuffix,
	}
}

// Namespace builds the storage folder for one of a post's image fields.
func Namespace(folder, viewID string) string {
	return folder + "/" + viewID
}

// IsDataURI reports whether s is inline image data rather than a reference.
func IsDataURI(s string) bool {
	return strings.HasPrefix(s, "data:image")
}

// Ref converts a storage key into the reference stored on a post.
func Ref(key string) string {
	return RefPrefix + key
}

// KeyFromRef inverts Ref. It reports false for references this store did
// not produce, such as external URLs typed into the editor.
func KeyFromRef(ref string) (string, bool) {
	if !strings.HasPrefix(ref, RefPrefix) {
		return "", false
	}
	key := strings.TrimPrefix(ref, RefPrefix)
	if err := validateKey(key); err != nil {
		return "", false
	}
	return key, true
}

// DataURI is a decoded data URI.
type DataURI struct {
	ContentType string
	Data        []byte
}

// Extension derives a file extension from the MIME subtype, dropping any
// structured syntax suffix ("svg+xml" becomes "svg").
func (d DataURI) Extension() string {
	_, sub, ok := strings.Cut(d.ContentType, "/")
	if !ok || sub == "" {
		return "bin"
	}
	if i := strings.IndexByte(sub, '+'); i > 0 {
		sub = sub[:i]
	}
	return strings.ToLower(sub)
}

// ParseDataURI decodes a base64 data URI.
func ParseDataURI(s string) (DataURI, error) {
	m := dataURIPattern.FindStringSubmatch(s)
	if m == nil {
		return DataURI{}, ErrInvalidDataURI
	}
	data, err := base64.StdEncoding.DecodeString(m[2])
	if err != nil {
		return DataURI{}, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	if len(data) == 0 {
		return DataURI{}, ErrInvalidDataURI
	}
	return DataURI{ContentType: strings.ToLower(m[1]), Data: data}, nil
}

// EncodeDataURI builds a data URI from raw bytes.
func EncodeDataURI(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Save persists a data URI under namespace and returns its reference.
// Anything that is not a data URI is returned unchanged, which is how an
// untouched image survives an edit. An empty input yields an empty result.
func (s *Store) Save(ctx context.Context, data, namespace string) (string, error) {
	if data == "" {
		return "", nil
	}
	if !IsDataURI(data) {
		return data, nil
	}

	uri, err := ParseDataURI(data)
	if err != nil {
		metrics.ObserveImageOp("save", err)
		return "", err
	}

	key := path.Join(namespace, fmt.Sprintf("%d-%s.%s", s.now().UnixMilli(), s.random(), uri.Extension()))
	err = s.backend.Upload(ctx, key, uri.ContentType, bytes.NewReader(uri.Data), int64(len(uri.Data)))
	metrics.ObserveImageOp("save", err)
	if err != nil {
		return "", fmt.Errorf("save image %s: %w", key, err)
	}
	return Ref(key), nil
}

// Delete removes the object behind ref. Failures are logged and dropped.
func (s *Store) Delete(ctx context.Context, ref string) {
	key, ok := KeyFromRef(ref)
	if !ok {
		slog.Warn("image delete skipped, not a stored reference", "ref", ref)
		return
	}
	err := s.backend.Delete(ctx, key)
	metrics.ObserveImageOp("delete", err)
	if err != nil {
		slog.Warn("image delete failed", "key", key, "error", err)
	}
}

// DeleteNamespace removes every object under namespace. Failures are logged
// and dropped.
func (s *Store) DeleteNamespace(ctx context.Context, namespace string) {
	if err := validateKey(namespace); err != nil {
		slog.Warn("image namespace delete skipped", "namespace", namespace, "error", err)
		return
	}
	n, err := s.backend.DeletePrefix(ctx, strings.TrimSuffix(namespace, "/")+"/")
	metrics.ObserveImageOp("delete_namespace", err)
	if err != nil {
		slog.Warn("image namespace delete failed", "namespace", namespace, "error", err)
		return
	}
	slog.Debug("image namespace deleted", "namespace", namespace, "objects", n)
}

// Object is an image read back from storage.
type Object struct {
	Data        []byte
	ContentType string
}

// Resolve reads the object stored under key. The content type is guessed
// from the extension and falls back to what the backend recorded.
func (s *Store) Resolve(ctx context.Context, key string) (*Object, error) {
	key = strings.TrimPrefix(key, "/")
	if err := validateKey(key); err != nil {
		return nil, err
	}
	data, stored, err := s.backend.Download(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("resolve image %s: %w", key, err)
	}

	ct := mime.TypeByExtension(path.Ext(key))
	if ct == "" {
		ct = stored
	}
	if ct == "" {
		ct = "application/octet-stream"
	}
	return &Object{Data: data, ContentType: ct}, nil
}

// validateKey accepts only keys under one of the image folders, with no
// traversal segments.
func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return ErrInvalidKey
	}
	for _, seg := range strings.Split(strings.TrimSuffix(key, "/"), "/") {
		if seg == "" || seg == "." || seg == ".." {
			return ErrInvalidKey
		}
	}
	folder, rest, _ := strings.Cut(key, "/")
	if rest == "" {
		return ErrInvalidKey
	}
	switch folder {
	case models.FolderMainImage, models.FolderPhotoGallery:
		return nil
	}
	return ErrInvalidKey
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
