// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package imagestore

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"piskovna/internal/storage"
)

// memBackend is an in-memory Backend.
type memBackend struct {
	objects   map[string][]byte
	types     map[string]string
	uploadErr error
	deleteErr error
	deleted   []string
	prefixes  []string
}

func newMemBackend() *memBackend {
	return &memBackend{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memBackend) Upload(_ context.Context, key, contentType string, body io.Reader, _ int64) error {
	if m.uploadErr != nil {
		return m.uploadErr
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.objects[key] = b
	m.types[key] = contentType
	return nil
}

func (m *memBackend) Download(_ context.Context, key string) ([]byte, string, error) {
	b, ok := m.objects[key]
	if !ok {
		return nil, "", storage.ErrNotFound
	}
	return b, m.types[key], nil
}

func (m *memBackend) Delete(_ context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.objects, key)
	return nil
}

func (m *memBackend) DeletePrefix(_ context.Context, prefix string) (int, error) {
	m.prefixes = append(m.prefixes, prefix)
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	n := 0
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			delete(m.objects, k)
			n++
		}
	}
	return n, nil
}

func newTestStore(b Backend) *Store {
	s := New(b)
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }
	s.random = func() string { return "abc12345" }
	return s
}

func TestSave_DataURI(t *testing.T) {
	b := newMemBackend()
	s := newTestStore(b)

	uri := EncodeDataURI("image/png", []byte("fake-png"))
	ref, err := s.Save(context.Background(), uri, Namespace("mainimage", "xyz123"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	want := "/api/uploads/mainimage/xyz123/1700000000000-abc12345.png"
	if ref != want {
		t.Errorf("ref = %q, want %q", ref, want)
	}
	key := strings.TrimPrefix(want, RefPrefix)
	if got := string(b.objects[key]); got != "fake-png" {
		t.Errorf("stored bytes = %q", got)
	}
	if b.types[key] != "image/png" {
		t.Errorf("stored type = %q", b.types[key])
	}
}

func TestSave_ReferenceIsUnchanged(t *testing.T) {
	b := newMemBackend()
	s := newTestStore(b)

	for _, ref := range []string{
		"/api/uploads/photogallery/xyz123/1-a.jpeg",
		"https://cdn.example.com/cover.jpg",
	} {
		got, err := s.Save(context.Background(), ref, "photogallery/xyz123")
		if err != nil {
			t.Fatalf("Save(%q): %v", ref, err)
		}
		if got != ref {
			t.Errorf("Save(%q) = %q, want unchanged", ref, got)
		}
	}
	if len(b.objects) != 0 {
		t.Errorf("backend received %d uploads, want 0", len(b.objects))
	}
}

func TestSave_Empty(t *testing.T) {
	s := newTestStore(newMemBackend())
	got, err := s.Save(context.Background(), "", "mainimage/x")
	if err != nil || got != "" {
		t.Errorf("Save(\"\") = %q, %v", got, err)
	}
}

func TestSave_Errors(t *testing.T) {
	b := newMemBackend()
	s := newTestStore(b)

	if _, err := s.Save(context.Background(), "data:image/png;base64,!!!", "mainimage/x"); !errors.Is(err, ErrInvalidDataURI) {
		t.Errorf("malformed payload: err = %v, want ErrInvalidDataURI", err)
	}

	b.uploadErr = errors.New("bucket gone")
	if _, err := s.Save(context.Background(), EncodeDataURI("image/png", []byte("x")), "mainimage/x"); err == nil {
		t.Error("expected upload error")
	}
}

func TestParseDataURI(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		ct, ext string
		wantErr bool
	}{
		{"jpeg", EncodeDataURI("image/jpeg", []byte{1, 2}), "image/jpeg", "jpeg", false},
		{"svg suffix", EncodeDataURI("image/svg+xml", []byte("<svg/>")), "image/svg+xml", "svg", false},
		{"upper case", "data:IMAGE/PNG;base64,AQI=", "image/png", "png", false},
		{"no base64 marker", "data:image/png,AQI=", "", "", true},
		{"empty payload", "data:image/png;base64,", "", "", true},
		{"not a data uri", "/api/uploads/mainimage/x/1.png", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDataURI(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.ContentType != tt.ct || got.Extension() != tt.ext {
				t.Errorf("got (%q, %q), want (%q, %q)", got.ContentType, got.Extension(), tt.ct, tt.ext)
			}
		})
	}
}

func TestKeyFromRef(t *testing.T) {
	tests := []struct {
		ref  string
		key  string
		want bool
	}{
		{"/api/uploads/mainimage/v1/1-a.png", "mainimage/v1/1-a.png", true},
		{"/api/uploads/photogallery/v1/2-b.webp", "photogallery/v1/2-b.webp", true},
		{"/api/uploads/other/v1/1-a.png", "", false},
		{"/api/uploads/mainimage/../etc/passwd", "", false},
		{"/api/uploads/mainimage", "", false},
		{"https://cdn.example.com/a.png", "", false},
	}
	for _, tt := range tests {
		key, ok := KeyFromRef(tt.ref)
		if ok != tt.want || key != tt.key {
			t.Errorf("KeyFromRef(%q) = (%q, %v), want (%q, %v)", tt.ref, key, ok, tt.key, tt.want)
		}
	}
}

func TestSaveThenDeleteInvertsReference(t *testing.T) {
	b := newMemBackend()
	s := newTestStore(b)

	ref, err := s.Save(context.Background(), EncodeDataURI("image/webp", []byte("w")), "photogallery/v9")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	s.Delete(context.Background(), ref)

	if len(b.objects) != 0 {
		t.Errorf("objects left after delete: %v", b.objects)
	}
	if len(b.deleted) != 1 || b.deleted[0] != "photogallery/v9/1700000000000-abc12345.webp" {
		t.Errorf("deleted = %v", b.deleted)
	}
}

func TestDelete_SwallowsFailures(t *testing.T) {
	b := newMemBackend()
	b.deleteErr = errors.New("permission denied")
	s := newTestStore(b)

	// Neither call may panic or surface the error.
	s.Delete(context.Background(), "/api/uploads/mainimage/v/1-a.png")
	s.Delete(context.Background(), "https://elsewhere.example.com/a.png")
	s.DeleteNamespace(context.Background(), "mainimage/v")

	if len(b.deleted) != 1 {
		t.Errorf("backend deletes = %v, want only the stored reference", b.deleted)
	}
}

func TestDeleteNamespace(t *testing.T) {
	b := newMemBackend()
	b.objects["mainimage/xyz123/1-a.png"] = []byte("a")
	b.objects["mainimage/xyz1234/1-b.png"] = []byte("b")
	b.objects["photogallery/xyz123/1-c.png"] = []byte("c")
	s := newTestStore(b)

	s.DeleteNamespace(context.Background(), Namespace("mainimage", "xyz123"))
	s.DeleteNamespace(context.Background(), Namespace("photogallery", "xyz123"))

	var left []string
	for k := range b.objects {
		left = append(left, k)
	}
	sort.Strings(left)
	if len(left) != 1 || left[0] != "mainimage/xyz1234/1-b.png" {
		t.Errorf("objects left = %v, want only the sibling namespace", left)
	}
	if b.prefixes[0] != "mainimage/xyz123/" {
		t.Errorf("prefix = %q, want trailing slash", b.prefixes[0])
	}
}

func TestDeleteNamespace_RejectsRoot(t *testing.T) {
	b := newMemBackend()
	s := newTestStore(b)
	s.DeleteNamespace(context.Background(), "mainimage")
	s.DeleteNamespace(context.Background(), "")
	if len(b.prefixes) != 0 {
		t.Errorf("DeletePrefix called with %v", b.prefixes)
	}
}

func TestResolve(t *testing.T) {
	b := newMemBackend()
	b.objects["mainimage/v/1-a.png"] = []byte("png")
	b.objects["photogallery/v/1-a.avif"] = []byte("avif")
	b.types["photogallery/v/1-a.avif"] = "image/avif"
	s := newTestStore(b)

	obj, err := s.Resolve(context.Background(), "mainimage/v/1-a.png")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if obj.ContentType != "image/png" || string(obj.Data) != "png" {
		t.Errorf("got %q %q", obj.ContentType, obj.Data)
	}

	obj, err = s.Resolve(context.Background(), "/photogallery/v/1-a.avif")
	if err != nil {
		t.Fatalf("Resolve avif: %v", err)
	}
	if obj.ContentType != "image/avif" {
		t.Errorf("avif content type = %q", obj.ContentType)
	}

	if _, err := s.Resolve(context.Background(), "mainimage/v/missing.png"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing: err = %v, want ErrNotFound", err)
	}
	if _, err := s.Resolve(context.Background(), "../secrets.txt"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("traversal: err = %v, want ErrInvalidKey", err)
	}
}

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestRules_Check(t *testing.T) {
	wide := pngOf(t, 160, 90)
	tall := pngOf(t, 90, 160)
	square := pngOf(t, 100, 100)
	// A 160x90 GIF screen descriptor: only registered formats are readable.
	gifWide := []byte("GIF89a\xa0\x00\x5a\x00\x00\x00\x00")

	tests := []struct {
		name    string
		rules   Rules
		ct      string
		data    []byte
		wantErr bool
	}{
		{"featured 16:9", FeaturedRules, "image/png", wide, false},
		{"featured square", FeaturedRules, "image/png", square, true},
		{"gallery 9:16", GalleryRules, "image/png", tall, false},
		{"gallery wide", GalleryRules, "image/png", wide, true},
		{"gif not allowed", FeaturedRules, "image/gif", wide, true},
		{"gif bytes under png label", FeaturedRules, "image/png", gifWide, true},
		{"avif skips ratio", GalleryRules, "image/avif", []byte("not decodable"), false},
		{"too large", FeaturedRules.WithMaxBytes(10), "image/png", wide, true},
		{"undecodable png", FeaturedRules, "image/png", []byte("junk"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rules.Check(tt.ct, tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("Check() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
