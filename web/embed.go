// Package web provides embedded static assets (CSS, JS) for the admin interface.
// In development, templates load Tailwind from CDN; in production the
// stylesheet embedded here is served at /static/.
package web

import "embed"

// StaticFS embeds the web/static/ directory tree.
//
//go:embed all:static
var StaticFS embed.FS
