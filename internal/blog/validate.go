// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package blog

import (
	"errors"
	"sort"
	"strings"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"piskovna/internal/models"
	"piskovna/internal/store"
)

// Validation limits for post fields.
const (
	maxTitleLen       = 300
	maxSlugLen        = 300
	maxBodyLen        = 500_000
	maxTagLen         = 64
	maxTags           = 50
	maxGalleryImages  = 50
	maxMetaTitleLen   = 300
	maxMetaKeywordLen = 500
)

// ValidationError carries per-field messages for a rejected payload.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid post: " + strings.Join(parts, "; ")
}

func validatePayload(p *models.PostPayload) error {
	err := validation.ValidateStruct(p,
		validation.Field(&p.Title,
			validation.RuneLength(0, maxTitleLen).Error("title is too long (max 300 characters)"),
		),
		validation.Field(&p.Slug,
			validation.RuneLength(0, maxSlugLen).Error("slug is too long (max 300 characters)"),
			validation.By(notNumeric),
			validation.By(noSlash),
		),
		validation.Field(&p.Description, validation.By(maxRunes(maxBodyLen))),
		validation.Field(&p.DescriptionHTML1, validation.By(maxRunes(maxBodyLen))),
		validation.Field(&p.DescriptionHTML2, validation.By(maxRunes(maxBodyLen))),
		validation.Field(&p.Tags,
			validation.Length(0, maxTags).Error("too many tags (max 50)"),
			validation.Each(validation.RuneLength(0, maxTagLen).Error("tag is too long (max 64 characters)")),
		),
		validation.Field(&p.GalleryImages,
			validation.Length(0, maxGalleryImages).Error("too many gallery images (max 50)"),
		),
		validation.Field(&p.Date, validation.By(validDate)),
		validation.Field(&p.MetaTitle, validation.RuneLength(0, maxMetaTitleLen)),
		validation.Field(&p.MetaKeywords, validation.RuneLength(0, maxMetaKeywordLen)),
		validation.Field(&p.AOSDuration, is.Float.Error("must be a number")),
	)
	if err == nil {
		return nil
	}

	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for k, v := range verrs {
		fields[k] = v.Error()
	}
	return &ValidationError{Fields: fields}
}

// A numeric slug would be unreachable, since lookups treat digits as ids.
func notNumeric(value any) error {
	s, _ := value.(string)
	if _, ok := store.ParseID(s); ok {
		return validation.NewError("slug_numeric", "slug must not be a number")
	}
	return nil
}

func noSlash(value any) error {
	s, _ := value.(string)
	if strings.ContainsAny(s, `/\?#`) {
		return validation.NewError("slug_path", "slug must not contain / \\ ? or #")
	}
	return nil
}

func maxRunes(n int) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if utf8.RuneCountInString(s) > n {
			return validation.NewError("too_long", "content is too long")
		}
		return nil
	}
}

func validDate(value any) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if _, err := models.ParseDate(s); err != nil {
		return validation.NewError("invalid_date", "must be a date in YYYY-MM-DD format")
	}
	return nil
}
