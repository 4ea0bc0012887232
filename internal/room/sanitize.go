package room

import "strings"

const (
	// DefaultTitle is used when a client submits an empty or blank title.
	DefaultTitle = "Racing Room"
	// DefaultName is used when a client submits an empty or blank racer name.
	DefaultName = "Racer"

	maxTitleLen = 80
	maxNameLen  = 30
)

// SanitizeTitle trims, truncates to 80 characters and falls back to
// DefaultTitle. Applied uniformly at every entry point that writes a title.
func SanitizeTitle(raw string) string {
	return sanitize(raw, maxTitleLen, DefaultTitle)
}

// SanitizeName trims, truncates to 30 characters and falls back to
// DefaultName.
func SanitizeName(raw string) string {
	return sanitize(raw, maxNameLen, DefaultName)
}

func sanitize(raw string, max int, fallback string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return fallback
	}
	// Truncate on runes so a multibyte name cannot be split mid-character.
	runes := []rune(s)
	if len(runes) > max {
		s = string(runes[:max])
	}
	return s
}
