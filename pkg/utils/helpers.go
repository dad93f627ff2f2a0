// Package utils holds small helpers not specific to APT repositories.
package utils

import (
	"mime"
	"path/filepath"
	"strings"
)

// aptExtensions maps well-known extensionless APT repository files to their
// closest conventional extension, for content-type guessing.
var aptExtensions = map[string]string{
	"Packages":     ".txt",
	"Release":      ".txt",
	"InRelease":    ".sig",
	"Release.gpg":  ".sig",
	"apt-add-repo": ".sh",
}

// contentTypes covers the extensions mime.TypeByExtension does not know on a
// stock system.
var contentTypes = map[string]string{
	".deb": "application/vnd.debian.binary-package",
	".sig": "application/pgp-signature",
	".gpg": "application/pgp-signature",
	".key": "application/pgp-keys",
	".asc": "application/pgp-keys",
	".sh":  "application/x-sh",
	".txt": "text/plain; charset=utf-8",
}

// GuessContentType returns the most appropriate MIME type for an APT
// repository file name, falling back to text/plain for anything unknown.
func GuessContentType(name string) string {
	ext := filepath.Ext(name)
	if ext == "" {
		ext = aptExtensions[name]
		if ext == "" {
			ext = ".txt"
		}
	}

	if contentType, ok := contentTypes[strings.ToLower(ext)]; ok {
		return contentType
	}
	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return contentType
	}

	return contentTypes[".txt"]
}

// QuoteDotted escapes a string as a URL would, but using dots instead of
// `%xx` escapes. Useful for names that must be both URL-safe and readable,
// such as a public key file named after an email address.
func QuoteDotted(orig string) string {
	var dotted strings.Builder
	for _, char := range orig {
		if isAlwaysSafe(char) {
			dotted.WriteRune(char)
		} else {
			dotted.WriteByte('.')
		}
	}

	// Collapse runs of dots and trim the ends.
	result := dotted.String()
	for strings.Contains(result, "..") {
		result = strings.ReplaceAll(result, "..", ".")
	}
	return strings.Trim(result, ".")
}

// isAlwaysSafe reports whether a character never needs quoting in a URL.
func isAlwaysSafe(char rune) bool {
	switch {
	case char >= 'a' && char <= 'z':
		return true
	case char >= 'A' && char <= 'Z':
		return true
	case char >= '0' && char <= '9':
		return true
	case char == '_' || char == '.' || char == '-' || char == '~':
		return true
	}
	return false
}
