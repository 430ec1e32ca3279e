package pipeline

import (
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/backmassage/mediasweep/internal/category"
	"github.com/backmassage/mediasweep/internal/naming"
)

// Item is a discovered media file and the category of its library.
type Item struct {
	Path     string
	Category category.Category
}

// Discovery is the result of walking a set of libraries.
type Discovery struct {
	Items []Item
	// Stranded lists temp-extension files. Each is a source parked by a job
	// that was killed before it could restore the name.
	Stranded []string
}

// Discover walks root and returns files whose extension is in exts, plus
// any files carrying tempExt. Both lists are sorted lexicographically for
// deterministic processing order.
func Discover(root string, exts []string, tempExt string) (files, stranded []string, err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		switch {
		case naming.HasAnyExtension(path, exts):
			files = append(files, path)
		case naming.HasExtension(path, tempExt):
			stranded = append(stranded, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	sort.Strings(files)
	sort.Strings(stranded)
	return files, stranded, nil
}

// DiscoverLibraries runs [Discover] over every library in order. A file
// reachable from two nested libraries is reported once, tagged with the
// category of the deepest library that contains it, matching
// [category.LibraryResolver].
func DiscoverLibraries(libs []category.Library, exts []string, tempExt string) (Discovery, error) {
	var out Discovery
	resolver := category.LibraryResolver{Libraries: libs}
	seen := make(map[string]bool)
	for _, lib := range libs {
		files, stranded, err := Discover(lib.Root, exts, tempExt)
		if err != nil {
			return Discovery{}, err
		}
		for _, f := range files {
			if seen[f] {
				continue
			}
			seen[f] = true
			c, err := resolver.Resolve(f)
			if err != nil {
				c = lib.Category
			}
			out.Items = append(out.Items, Item{Path: f, Category: c})
		}
		for _, s := range stranded {
			if !seen[s] {
				seen[s] = true
				out.Stranded = append(out.Stranded, s)
			}
		}
	}
	return out, nil
}
