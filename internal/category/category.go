// Package category defines media categories, their target bitrates, and
// the pluggable lookup that maps a library path to a category.
package category

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/backmassage/mediasweep/internal/config"
)

// Category classifies a library section. Each category has a target
// bitrate for 1920-wide video.
type Category string

const (
	TV        Category = "tv"
	Movie     Category = "movie"
	Animation Category = "animation"
)

// ErrUnresolved is returned when no category can be determined for a path.
var ErrUnresolved = errors.New("category unresolved")

// ErrUnknown is returned for a category name with no bitrate entry.
var ErrUnknown = errors.New("unknown category")

// Table maps categories to target bitrates in bits per second. It is built
// once at startup and only read afterwards.
type Table struct {
	rates map[Category]int64
}

// NewTable builds a Table from the configured bitrate map.
func NewTable(rates map[string]int64) *Table {
	t := &Table{rates: make(map[Category]int64, len(rates))}
	for name, rate := range rates {
		t.rates[Category(name)] = rate
	}
	return t
}

// BitRate returns the target bitrate for c, or false when c is unknown.
func (t *Table) BitRate(c Category) (int64, bool) {
	r, ok := t.rates[c]
	return r, ok
}

// Parse validates a category name against the table.
func (t *Table) Parse(name string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := t.rates[c]; !ok {
		return "", fmt.Errorf("%w: %q (known: %s)", ErrUnknown, name, strings.Join(t.Names(), ", "))
	}
	return c, nil
}

// Names returns the known category names, sorted.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.rates))
	for c := range t.rates {
		names = append(names, string(c))
	}
	sort.Strings(names)
	return names
}

// Resolver maps a file path to its category.
type Resolver interface {
	Resolve(path string) (Category, error)
}

// SegmentResolver looks up the folder name at a fixed position of the
// slash-separated path. With index 3, "/data/media/Movies/x.mkv" resolves
// through the folder "Movies".
type SegmentResolver struct {
	Index   int
	Folders map[string]Category
}

// Resolve implements [Resolver].
func (r SegmentResolver) Resolve(path string) (Category, error) {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if r.Index < 0 || r.Index >= len(parts) {
		return "", fmt.Errorf("%w: %s has no path segment %d", ErrUnresolved, path, r.Index)
	}
	c, ok := r.Folders[parts[r.Index]]
	if !ok {
		return "", fmt.Errorf("%w: folder %q in %s", ErrUnresolved, parts[r.Index], path)
	}
	return c, nil
}

// LibraryResolver picks the category of the longest library root that
// contains the path.
type LibraryResolver struct {
	Libraries []Library
}

// Library is a root directory whose files share one category.
type Library struct {
	Root     string
	Category Category
}

// Resolve implements [Resolver].
func (r LibraryResolver) Resolve(path string) (Category, error) {
	clean := filepath.Clean(path)
	best := -1
	var found Category
	for _, lib := range r.Libraries {
		root := filepath.Clean(lib.Root)
		if !within(root, clean) {
			continue
		}
		if len(root) > best {
			best = len(root)
			found = lib.Category
		}
	}
	if best < 0 {
		return "", fmt.Errorf("%w: %s is outside every library", ErrUnresolved, path)
	}
	return found, nil
}

func within(root, path string) bool {
	if root == string(filepath.Separator) {
		return filepath.IsAbs(path)
	}
	return path == root || strings.HasPrefix(path, root+string(filepath.Separator))
}

// FromConfig builds the Table and the configured Resolver.
func FromConfig(cfg *config.Config) (*Table, Resolver) {
	table := NewTable(cfg.Category.BitRates)
	if cfg.Category.Resolver == config.ResolverLibrary {
		return table, LibraryResolver{Libraries: Libraries(cfg)}
	}
	folders := make(map[string]Category, len(cfg.Category.Folders))
	for _, f := range cfg.Category.Folders {
		folders[f.Folder] = Category(f.Category)
	}
	return table, SegmentResolver{Index: cfg.Category.SegmentIndex, Folders: folders}
}

// Libraries converts the configured library list.
func Libraries(cfg *config.Config) []Library {
	libs := make([]Library, 0, len(cfg.Libraries))
	for _, l := range cfg.Libraries {
		libs = append(libs, Library{Root: l.Path, Category: Category(l.Category)})
	}
	return libs
}
