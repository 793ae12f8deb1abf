// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package imagestore

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"slices"

	_ "golang.org/x/image/webp"
)

// Content types accepted by the admin upload form.
var AllowedTypes = []string{"image/jpeg", "image/png", "image/webp", "image/avif"}

// Rules describe what the admin form accepts for an image field. The JSON
// API does not apply them.
type Rules struct {
	MaxBytes     int64
	AllowedTypes []string
	Ratio        float64 // width / height, 0 disables the check
	Tolerance    float64
}

// FeaturedRules applies to a post's featured image (16:9).
var FeaturedRules = Rules{
	MaxBytes:     5 << 20,
	AllowedTypes: AllowedTypes,
	Ratio:        16.0 / 9.0,
	Tolerance:    0.01,
}

// GalleryRules applies to each gallery image (9:16).
var GalleryRules = Rules{
	MaxBytes:     5 << 20,
	AllowedTypes: AllowedTypes,
	Ratio:        9.0 / 16.0,
	Tolerance:    0.01,
}

// WithMaxBytes returns a copy of r with a different size limit.
func (r Rules) WithMaxBytes(n int64) Rules {
	r.MaxBytes = n
	return r
}

// Check validates an upload. AVIF has no decoder in the standard image
// registry, so its ratio is not checked.
func (r Rules) Check(contentType string, data []byte) error {
	if r.MaxBytes > 0 && int64(len(data)) > r.MaxBytes {
		return fmt.Errorf("file too large (%.1f MB, max %d MB)", float64(len(data))/(1<<20), r.MaxBytes>>20)
	}
	if len(r.AllowedTypes) > 0 && !slices.Contains(r.AllowedTypes, contentType) {
		return fmt.Errorf("unsupported format %q (allowed: JPEG, PNG, WebP, AVIF)", contentType)
	}
	if r.Ratio <= 0 || contentType == "image/avif" {
		return nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("unreadable image: %w", err)
	}
	if cfg.Height == 0 {
		return fmt.Errorf("unreadable image: zero height")
	}
	ratio := float64(cfg.Width) / float64(cfg.Height)
	if math.Abs(ratio-r.Ratio) > r.Tolerance {
		return fmt.Errorf("wrong aspect ratio %dx%d (want %s)", cfg.Width, cfg.Height, ratioLabel(r.Ratio))
	}
	return nil
}

func ratioLabel(r float64) string {
	switch {
	case math.Abs(r-16.0/9.0) < 1e-9:
		return "16:9"
	case math.Abs(r-9.0/16.0) < 1e-9:
		return "9:16"
	}
	return fmt.Sprintf("%.3f", r)
}
