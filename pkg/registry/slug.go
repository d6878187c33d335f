package registry

import (
	"regexp"
	"strconv"
	"strings"
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a display name into a storable identifier: lowercased,
// runs of anything but letters and digits collapsed to single underscores.
// Empty results fall back to the given default.
func Slugify(value, fallback string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(value), "_")
	slug = strings.Trim(slug, "_")
	if slug == "" {
		return fallback
	}
	return slug
}

// UniqueSlug appends _2, _3, ... until the slug is not taken.
func UniqueSlug(slug string, taken func(string) bool) string {
	if !taken(slug) {
		return slug
	}
	for suffix := 2; ; suffix++ {
		candidate := slug + "_" + strconv.Itoa(suffix)
		if !taken(candidate) {
			return candidate
		}
	}
}
