// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package slug

import (
	"regexp"
	"strings"
	"testing"
	"time"
)

// TestGenerate exercises the slug generator with typical titles, special
// characters, diacritics and edge cases.
func TestGenerate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		// --- Normal titles ---
		{name: "simple two words", input: "Hello World", want: "hello-world"},
		{name: "title with year", input: "Harvest Season 2024", want: "harvest-season-2024"},
		{name: "single word", input: "GoLang", want: "golang"},

		// --- Special characters ---
		{name: "punctuation marks", input: "Hello, World! How's it going?", want: "hello-world-hows-it-going"},
		{name: "ampersand", input: "Rock & Roll", want: "rock-roll"},
		{name: "slashes", input: "Organic vs. Biodynamic/Natural", want: "organic-vs-biodynamicnatural"},
		{name: "explicit hyphens kept", input: "top-10 red wines", want: "top-10-red-wines"},

		// --- Diacritics ---
		{name: "czech diacritics", input: "Vinařství Čertovo", want: "vinarstvi-certovo"},
		{name: "long vowels", input: "Mlýn Resort Publikováno", want: "mlyn-resort-publikovano"},
		{name: "french accents", input: "Café Crème Brûlée", want: "cafe-creme-brulee"},
		{name: "german umlauts, eszett dropped", input: "Über Grüße", want: "uber-grue"},

		// --- Whitespace ---
		{name: "leading and trailing spaces", input: "   padded title   ", want: "padded-title"},
		{name: "tabs and newlines", input: "tab\there\nnewline", want: "tab-here-newline"},
		{name: "multiple spaces", input: "a    b", want: "a-b"},

		// --- Edge cases ---
		{name: "empty", input: "", want: ""},
		{name: "only symbols", input: "!@#$%^&*()", want: ""},
		{name: "only hyphens", input: "---", want: ""},
		{name: "non-latin script dropped", input: "日本語 title", want: "title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Generate(tt.input)
			if got != tt.want {
				t.Errorf("Generate(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestGenerate_Shape checks that every slug is a lowercase, diacritic-free,
// hyphen-separated token.
func TestGenerate_Shape(t *testing.T) {
	shape := regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	inputs := []string{
		"The Art of Wine Tasting",
		"Žluťoučký kůň úpěl ďábelské ódy",
		"  --Weird--  spacing__and_underscores  ",
		"Top 10 Red Wines!!!",
	}
	for _, in := range inputs {
		got := Generate(in)
		if !shape.MatchString(got) {
			t.Errorf("Generate(%q) = %q does not match slug shape", in, got)
		}
	}
}

// TestGenerate_Idempotent verifies that slugifying a slug is a no-op.
func TestGenerate_Idempotent(t *testing.T) {
	for _, in := range []string{"Hello World", "Vinařství Čertovo", "Winter Wine Pairings"} {
		once := Generate(in)
		twice := Generate(once)
		if once != twice {
			t.Errorf("not idempotent: %q -> %q -> %q", in, once, twice)
		}
	}
}

func TestResolve(t *testing.T) {
	now := time.UnixMilli(1730000000000)

	tests := []struct {
		name     string
		explicit string
		title    string
		want     string
	}{
		{"explicit wins", "custom-url", "Hello World", "custom-url"},
		{"explicit is trimmed", "  custom-url ", "Hello World", "custom-url"},
		{"blank explicit uses title", "   ", "Hello World", "hello-world"},
		{"empty explicit uses title", "", "Hello World", "hello-world"},
		{"no title falls back", "", "", "post-1730000000000"},
		{"symbol title falls back", "", "???", "post-1730000000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.explicit, tt.title, now); got != tt.want {
				t.Errorf("Resolve(%q, %q) = %q, want %q", tt.explicit, tt.title, got, tt.want)
			}
		})
	}
}

func TestFallbackNeverEmpty(t *testing.T) {
	got := Fallback(time.Now())
	if !strings.HasPrefix(got, "post-") || len(got) <= len("post-") {
		t.Errorf("Fallback() = %q", got)
	}
}
