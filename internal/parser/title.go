package parser

import "strings"

// UnknownTitle is used when a URL has no final path segment.
const UnknownTitle = "Unknown"

// TitleFromURL returns the last path segment of rawURL with underscores
// turned into spaces. Percent escapes are left as they are.
func TitleFromURL(rawURL string) string {
	parts := strings.Split(rawURL, "/")
	last := parts[len(parts)-1]
	if last == "" {
		return UnknownTitle
	}
	return strings.ReplaceAll(last, "_", " ")
}

// TitleToPath turns a human title into the /wiki/ path segment.
func TitleToPath(title string) string {
	return strings.ReplaceAll(strings.TrimSpace(title), " ", "_")
}
