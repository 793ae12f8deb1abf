// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package editor holds the state of the admin post form between the
// moment it is opened and the moment it is saved.
//
// A form starts either new (no identity) or loaded from an existing post.
// Any submitted edit makes it dirty, and a successful save makes it saved,
// after which it accepts no further changes. Image fields hold either a
// stored reference or a data URI waiting to be uploaded; Submit hands them
// to the post service verbatim.
package editor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"piskovna/internal/imagestore"
	"piskovna/internal/models"
)

// State is the lifecycle position of a form.
type State int

const (
	StateNew State = iota
	StateLoaded
	StateDirty
	StateSaved
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateLoaded:
		return "loaded"
	case StateDirty:
		return "dirty"
	case StateSaved:
		return "saved"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var transitions = map[State][]State{
	StateNew:    {StateDirty},
	StateLoaded: {StateDirty},
	StateDirty:  {StateDirty, StateSaved},
}

// ErrTransition is returned when an operation is not allowed in the
// form's current state.
var ErrTransition = errors.New("editor: invalid state transition")

// Editor defaults for a new post.
const (
	DefaultStatus   = models.StatusPublished
	DefaultCategory = "Education"
)

// Form is the editor's state.
type Form struct {
	state   State
	id      int64
	Payload models.PostPayload

	// Errors maps field names to messages from the last failed save.
	// The empty key holds a message for the whole form.
	Errors map[string]string
}

// New returns an empty form with the editor defaults applied.
func New(now time.Time) *Form {
	show := true
	return &Form{
		state: StateNew,
		Payload: models.PostPayload{
			Status:         DefaultStatus,
			Category:       DefaultCategory,
			Date:           models.NewDate(now).String(),
			ShowNewsletter: &show,
			Tags:           []string{},
			GalleryImages:  []string{},
		},
	}
}

// Load returns a form hydrated from an existing post.
func Load(p *models.Post) *Form {
	show := p.ShowNewsletter
	in := models.PostPayload{
		Title:            p.Title,
		Slug:             p.Slug,
		Description:      p.Description,
		DescriptionHTML1: p.DescriptionHTML1,
		DescriptionHTML2: p.DescriptionHTML2,
		Tags:             append([]string{}, p.Tags...),
		GalleryImages:    append([]string{}, p.GalleryImages...),
		Date:             p.Date.String(),
		Author:           p.Author,
		Category:         p.Category,
		Status:           p.Status,
		ShowNewsletter:   &show,
		MetaTitle:        p.MetaTitle,
		MetaKeywords:     p.MetaKeywords,
	}
	if p.FeaturedImage != nil {
		f := *p.FeaturedImage
		in.FeaturedImage = &f
	}
	if p.AOSDuration != nil {
		in.AOSDuration = models.NumericString(*p.AOSDuration)
	}
	return &Form{state: StateLoaded, id: p.ID, Payload: in}
}

// State returns the current state.
func (f *Form) State() State { return f.state }

// ID returns the post id, or 0 for a form that has never been saved.
func (f *Form) ID() int64 { return f.id }

// IsNew reports whether the form will create a post rather than update one.
func (f *Form) IsNew() bool { return f.id == 0 }

// Key returns the id the post service should update.
func (f *Form) Key() string { return strconv.FormatInt(f.id, 10) }

func (f *Form) moveTo(next State) error {
	for _, s := range transitions[f.state] {
		if s == next {
			f.state = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrTransition, f.state, next)
}

// Edit replaces the form contents with in and marks the form dirty.
// Field errors from a previous attempt are cleared.
func (f *Form) Edit(in models.PostPayload) error {
	if err := f.moveTo(StateDirty); err != nil {
		return err
	}
	if in.Tags == nil {
		in.Tags = []string{}
	}
	if in.GalleryImages == nil {
		in.GalleryImages = []string{}
	}
	f.Payload = in
	f.Errors = nil
	return nil
}

// Submit returns the payload to send to the post service. Only a dirty
// form can be submitted.
func (f *Form) Submit() (*models.PostPayload, error) {
	if f.state != StateDirty {
		return nil, fmt.Errorf("%w: submit from %s", ErrTransition, f.state)
	}
	in := f.Payload
	return &in, nil
}

// Fail records errors from a save attempt. The form stays dirty so the
// user can correct it, pending images included.
func (f *Form) Fail(errs map[string]string) {
	f.Errors = errs
}

// Saved marks the form saved under id.
func (f *Form) Saved(id int64) error {
	if err := f.moveTo(StateSaved); err != nil {
		return err
	}
	f.id = id
	f.Errors = nil
	return nil
}

// PendingImages counts image fields that still hold a data URI.
func (f *Form) PendingImages() int {
	n := 0
	if f.Payload.FeaturedImage != nil && imagestore.IsDataURI(*f.Payload.FeaturedImage) {
		n++
	}
	for _, img := range f.Payload.GalleryImages {
		if imagestore.IsDataURI(img) {
			n++
		}
	}
	return n
}

// Featured returns the featured image value or "".
func (f *Form) Featured() string {
	if f.Payload.FeaturedImage == nil {
		return ""
	}
	return *f.Payload.FeaturedImage
}

// TagsText renders the tags for a single text input.
func (f *Form) TagsText() string {
	return strings.Join(f.Payload.Tags, ", ")
}

// Newsletter reports the show_newsletter value.
func (f *Form) Newsletter() bool {
	return f.Payload.Newsletter()
}

// ParseTags splits a comma separated tag list, dropping blanks.
func ParseTags(s string) []string {
	tags := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
