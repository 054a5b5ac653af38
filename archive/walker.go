// Package archive walks stylesheets packed into zip archives.
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"path"
	"slices"
	"strings"
)

// WalkFunc is called for each matching entry visited by Walk. Name is the
// entry path relative to the requested prefix directory, or the base name
// when prefix points to the entry itself. If an error is returned, walking
// stops.
type WalkFunc func(name string, file *zip.File) error

// Walk visits regular files in archive located under prefix whose extension
// is one of exts (case-insensitive, empty exts matches everything), in
// archive order. Prefix is either a directory inside archive or a single
// entry, empty prefix means whole archive. Entries with absolute paths or
// path traversal components fail the walk to prevent Zip Slip. Returns the
// number of visited entries.
func Walk(ctx context.Context, archive, prefix string, exts []string, walkFn WalkFunc) (int, error) {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	prefix = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(prefix, `\`, "/")), "/")

	var count int
	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		name := f.FileHeader.Name
		if !isSafePath(name) {
			return count, fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name)
		}
		if f.FileInfo().IsDir() || !hasExt(name, exts) {
			continue
		}
		rel, ok := relative(name, prefix)
		if !ok {
			continue
		}
		count++
		if err := walkFn(rel, f); err != nil {
			return count, err
		}
	}
	return count, nil
}

// relative returns entry name relative to prefix and reports whether entry is
// under prefix at all.
func relative(name, prefix string) (string, bool) {
	switch {
	case prefix == "":
		return name, true
	case name == prefix:
		return path.Base(name), true
	case strings.HasPrefix(name, prefix+"/"):
		return name[len(prefix)+1:], true
	default:
		return "", false
	}
}

func hasExt(name string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(path.Ext(name))
	return slices.ContainsFunc(exts, func(e string) bool {
		return strings.ToLower(e) == ext
	})
}

// isSafePath returns false for paths that could escape the extraction
// directory: absolute paths and those containing ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, `\`) || (len(name) > 1 && name[1] == ':') {
		return false
	}
	return !slices.Contains(strings.Split(strings.ReplaceAll(name, `\`, "/"), "/"), "..")
}
