package utils

import (
	"path/filepath"
	"strings"
)

// SecureFilename reduces name to a safe basename: path components are
// dropped, whitespace becomes '_', and only ASCII letters, digits, '.', '_'
// and '-' survive. Leading dots and underscores are trimmed so the result is
// never hidden. It may return "".
func SecureFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base("/" + name)
	name = strings.Join(strings.Fields(name), "_")

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "._")
}

// Extension is the lower-cased extension of name without the dot.
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// AllowedExtension reports whether name carries one of the allowed extensions.
func AllowedExtension(name string, allowed []string) bool {
	ext := Extension(name)
	if ext == "" {
		return false
	}
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimPrefix(a, "."), ext) {
			return true
		}
	}
	return false
}

// BaseName strips the extension from name.
func BaseName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
