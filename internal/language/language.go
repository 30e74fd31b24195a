// Package language normalizes the language tags used across the subtitle
// and dub documents and renders display names for subtitle labels.
package language

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Normalize parses a tag like "zh", "zh-CN", or "en_US" and returns its
// canonical BCP-47 form.
func Normalize(tag string) (string, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(tag), "_", "-")
	if cleaned == "" {
		return "", fmt.Errorf("empty language tag")
	}
	parsed, err := language.Parse(cleaned)
	if err != nil {
		return "", fmt.Errorf("parse language tag %q: %w", tag, err)
	}
	return parsed.String(), nil
}

// Base returns the two-letter base of a tag ("zh-CN" -> "zh"); unparseable
// tags come back unchanged.
func Base(tag string) string {
	normalized, err := Normalize(tag)
	if err != nil {
		return tag
	}
	parsed := language.MustParse(normalized)
	base, _ := parsed.Base()
	return base.String()
}

// DisplayName renders the English name of a language tag, or the tag
// itself when it cannot be parsed.
func DisplayName(tag string) string {
	normalized, err := Normalize(tag)
	if err != nil {
		return tag
	}
	return display.English.Tags().Name(language.MustParse(normalized))
}
