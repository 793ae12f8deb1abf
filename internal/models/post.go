// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package models defines the data structures that map to database tables
// and provides the core types used throughout the application.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Post status values used by the editor. They are a convention only and
// the database accepts any string.
const (
	StatusDraft     = "Draft"
	StatusPublished = "Published"
	StatusArchived  = "Archived"
	StatusScheduled = "Scheduled"
)

// Statuses lists the conventional status values in display order.
var Statuses = []string{StatusPublished, StatusDraft, StatusScheduled, StatusArchived}

// Categories lists the categories offered by the editor.
var Categories = []string{"Education", "News", "Reviews", "Announcements", "Guides"}

// Image folders under a post's view_id namespace.
const (
	FolderMainImage    = "mainimage"
	FolderPhotoGallery = "photogallery"
)

// Post is one row of the piskovnablog table.
type Post struct {
	ID               int64    `json:"id"`
	Title            string   `json:"title"`
	Slug             string   `json:"slug"`
	Description      string   `json:"description"`
	DescriptionHTML1 string   `json:"descriptionhtml1"`
	DescriptionHTML2 string   `json:"descriptionhtml2"`
	Tags             []string `json:"tags"`
	FeaturedImage    *string  `json:"featured_image"`
	GalleryImages    []string `json:"gallery_images"`
	Date             Date     `json:"date"`
	Author           string   `json:"author"`
	Category         string   `json:"category"`
	Status           string   `json:"status"`
	ShowNewsletter   bool     `json:"show_newsletter"`
	MetaTitle        string   `json:"meta_title"`
	MetaKeywords     string   `json:"meta_keywords"`
	AOSDuration      *string  `json:"aos_duration"`

	// ViewID namespaces the post's stored images. Never sent to clients.
	ViewID string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// ImageRefs returns every stored image reference of the post, featured
// image first.
func (p *Post) ImageRefs() []string {
	refs := make([]string, 0, len(p.GalleryImages)+1)
	if p.FeaturedImage != nil && *p.FeaturedImage != "" {
		refs = append(refs, *p.FeaturedImage)
	}
	return append(refs, p.GalleryImages...)
}

// PostPayload is the body accepted by create and update. Image fields
// carry either an already stored reference or a data URI to be uploaded.
type PostPayload struct {
	Title            string        `json:"title"`
	Slug             string        `json:"slug"`
	Description      string        `json:"description"`
	DescriptionHTML1 string        `json:"descriptionhtml1"`
	DescriptionHTML2 string        `json:"descriptionhtml2"`
	Tags             []string      `json:"tags"`
	FeaturedImage    *string       `json:"featured_image"`
	GalleryImages    []string      `json:"gallery_images"`
	Date             string        `json:"date"`
	Author           string        `json:"author"`
	Category         string        `json:"category"`
	Status           string        `json:"status"`
	ShowNewsletter   *bool         `json:"show_newsletter"`
	MetaTitle        string        `json:"meta_title"`
	MetaKeywords     string        `json:"meta_keywords"`
	AOSDuration      NumericString `json:"aos_duration"`
}

// Newsletter resolves the show_newsletter flag, which defaults to true.
func (p *PostPayload) Newsletter() bool {
	if p.ShowNewsletter == nil {
		return true
	}
	return *p.ShowNewsletter
}

// DateLayout is the wire and form format of post dates.
const DateLayout = "2006-01-02"

// Date is a calendar date. The time of day is always discarded.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar date in UTC.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts YYYY-MM-DD or a full RFC 3339 timestamp.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return NewDate(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return NewDate(t), nil
}

// String formats the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MarshalJSON writes YYYY-MM-DD, or null for the zero date.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON reads YYYY-MM-DD, an RFC 3339 timestamp, "" or null.
func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// NumericString holds a value that clients send either as a JSON number or
// as a string, such as the animation duration.
type NumericString string

// UnmarshalJSON accepts a string, a number or null.
func (n *NumericString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*n = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = NumericString(strings.TrimSpace(s))
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("aos_duration: %w", err)
	}
	*n = NumericString(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

// Ptr returns nil for an empty value, so it is stored as NULL.
func (n NumericString) Ptr() *string {
	if n == "" {
		return nil
	}
	s := string(n)
	return &s
}
