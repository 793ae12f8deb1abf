// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package slug provides URL-friendly slug generation from arbitrary strings.
package slug

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// nonAlphanumeric matches anything that isn't a letter, digit, space or hyphen.
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9\s-]`)
	// whitespace runs become a single hyphen.
	whitespace = regexp.MustCompile(`\s+`)
	// multipleHyphens collapses consecutive hyphens into one.
	multipleHyphens = regexp.MustCompile(`-{2,}`)
)

// stripMarks decomposes accented letters and drops the combining marks,
// so "Čertovo" becomes "Certovo".
func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Generate creates a URL-friendly slug from the given string.
// Example: "Vinařství Čertovo 2026!" → "vinarstvi-certovo-2026"
func Generate(s string) string {
	result := strings.ToLower(strings.TrimSpace(stripMarks(s)))
	result = nonAlphanumeric.ReplaceAllString(result, "")
	result = whitespace.ReplaceAllString(result, "-")
	result = multipleHyphens.ReplaceAllString(result, "-")
	result = strings.Trim(result, "-")
	return result
}

// Fallback returns the slug used when neither an explicit slug nor a
// usable title is available.
func Fallback(now time.Time) string {
	return fmt.Sprintf("post-%d", now.UnixMilli())
}

// Resolve picks a post slug: the explicit value when it is not blank,
// else one derived from the title, else a timestamp fallback. The result
// is never empty.
func Resolve(explicit, title string, now time.Time) string {
	if s := strings.TrimSpace(explicit); s != "" {
		return s
	}
	if s := Generate(title); s != "" {
		return s
	}
	return Fallback(now)
}
