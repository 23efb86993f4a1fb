package ws

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Abhishekverma657/AroundU-backend/internal/domain"
)

var (
	htmlTagRegex     = regexp.MustCompile(`<[^>]*>`)
	controlCharRegex = regexp.MustCompile(`[\x00-\x1F\x7F]`)
)

// SanitizeDisplayName cleans a client-chosen display name. Returns "" when
// nothing usable remains, which callers reject as invalid input.
func SanitizeDisplayName(name string) string {
	name = strings.TrimSpace(name)

	if utf8.RuneCountInString(name) > domain.MaxDisplayNameLength {
		runes := []rune(name)
		name = string(runes[:domain.MaxDisplayNameLength])
	}

	// Remove HTML tags to prevent XSS
	name = htmlTagRegex.ReplaceAllString(name, "")

	// Remove control characters
	name = controlCharRegex.ReplaceAllString(name, "")

	return strings.TrimSpace(name)
}
