package webhook

import (
	"path/filepath"
	"strings"

	"github.com/backmassage/mediasweep/internal/config"
)

// MapPath rewrites path using the mapping with the longest matching From
// prefix. A From prefix matches only on a path-segment boundary.
func MapPath(mappings []config.PathMapping, path string) string {
	best := -1
	for i, m := range mappings {
		from := strings.TrimRight(m.From, "/")
		if from == "" {
			continue
		}
		if path != from && !strings.HasPrefix(path, from+"/") {
			continue
		}
		if best < 0 || len(from) > len(strings.TrimRight(mappings[best].From, "/")) {
			best = i
		}
	}
	if best < 0 {
		return path
	}
	from := strings.TrimRight(mappings[best].From, "/")
	return strings.TrimRight(mappings[best].To, "/") + path[len(from):]
}

// episodePath joins a Sonarr series folder and an episode path relative
// to it. Windows separators in the relative part are normalized.
func episodePath(seriesPath, relative string) string {
	relative = strings.ReplaceAll(relative, `\`, "/")
	return filepath.Join(seriesPath, filepath.FromSlash(relative))
}
