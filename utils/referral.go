package utils

import (
	"regexp"
	"strings"
)

var (
	slugInvalid  = regexp.MustCompile(`[^a-z0-9-]+`)
	slugCollapse = regexp.MustCompile(`-{2,}`)
)

// Slugify folds a display name into a lowercase url-safe slug, the base form
// of a referral code
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = slugInvalid.ReplaceAllString(slug, "")
	slug = slugCollapse.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "affiliate"
	}
	return slug
}
