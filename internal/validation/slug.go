package validation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	// MaxSlugLength bounds content slugs.
	MaxSlugLength = 128
	// MaxNameLength bounds the greeting name path segment.
	MaxNameLength = 64
)

// NormalizeSlug canonicalizes a slug: NFC, trimmed, lower-cased.
func NormalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(slug)))
}

// ValidateSlug checks a normalized slug: 1-128 characters of [a-z0-9-], not
// starting or ending with a hyphen.
func ValidateSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("slug cannot be empty")
	}
	if len(slug) > MaxSlugLength {
		return fmt.Errorf("slug exceeds %d characters", MaxSlugLength)
	}
	if strings.HasPrefix(slug, "-") || strings.HasSuffix(slug, "-") {
		return fmt.Errorf("slug cannot start or end with a hyphen")
	}

	for _, r := range slug {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
			return fmt.Errorf("slug contains invalid character: %q", r)
		}
	}

	return nil
}

// NormalizeName canonicalizes a free-form name segment to NFC with control
// characters removed and surrounding space trimmed.
func NormalizeName(name string) string {
	return strings.TrimSpace(SanitizeInput(norm.NFC.String(name)))
}

// ValidateName checks a normalized name: 1-64 runes, printable.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("name is not valid UTF-8")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Errorf("name exceeds %d characters", MaxNameLength)
	}
	for _, r := range name {
		if !unicode.IsPrint(r) {
			return fmt.Errorf("name contains non-printable character: %q", r)
		}
	}

	return nil
}
