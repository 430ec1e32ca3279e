package naming

import (
	"path/filepath"
	"strings"
)

// ExtensionMatches compares two extensions case-insensitively, with or
// without their leading dot.
func ExtensionMatches(a, b string) bool {
	return strings.EqualFold(strings.TrimPrefix(a, "."), strings.TrimPrefix(b, "."))
}

// Split separates path into everything before the final extension and the
// extension itself (with its dot).
func Split(path string) (base, ext string) {
	ext = filepath.Ext(path)
	return strings.TrimSuffix(path, ext), ext
}

// WithExtension replaces the extension of path. ext may carry a dot.
func WithExtension(path, ext string) string {
	base, _ := Split(path)
	return base + "." + strings.TrimPrefix(ext, ".")
}

// HasExtension reports whether path ends in ext.
func HasExtension(path, ext string) bool {
	return ExtensionMatches(filepath.Ext(path), ext)
}

// HasAnyExtension reports whether path ends in one of exts.
func HasAnyExtension(path string, exts []string) bool {
	got := filepath.Ext(path)
	if got == "" {
		return false
	}
	for _, e := range exts {
		if ExtensionMatches(got, e) {
			return true
		}
	}
	return false
}
