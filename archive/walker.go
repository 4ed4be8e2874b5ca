// Package archive builds Walk abstraction on top of "archive/zip".
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/maruel/natural"
)

// WalkFunc is the type of the function called for each file in archive
// visited by Walk. The archive argument contains path to archive passed to
// Walk, name is the path of the file inside archive relative to the walked
// prefix. If an error is returned, processing stops.
type WalkFunc func(archive, name string, file *zip.File) error

// Filter decides if a file (path relative to walked prefix) is of interest.
// Nil Filter accepts every file.
type Filter func(name string) bool

// Walk walks all files in the archive located under prefix which satisfy
// filter, calling walkFn for each of them in natural order of their names.
// Prefix either names a single file or a directory inside archive. Archives
// with absolute entries or entries with path traversal components ("..") are
// rejected.
func Walk(ctx context.Context, archive, prefix string, filter Filter, walkFn WalkFunc) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	prefix = strings.Trim(path.Clean("/"+prefix), "/")

	files := make([]*zip.File, 0, len(r.File))
	for _, f := range r.File {
		if !isSafePath(f.Name) {
			return fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", f.Name)
		}
		if !f.FileInfo().IsDir() {
			files = append(files, f)
		}
	}
	slices.SortStableFunc(files, func(a, b *zip.File) int {
		switch {
		case natural.Less(a.Name, b.Name):
			return -1
		case natural.Less(b.Name, a.Name):
			return 1
		}
		return 0
	})

	for _, f := range files {
		rel, ok := relative(f.Name, prefix)
		if !ok || (filter != nil && !filter(rel)) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := walkFn(archive, rel, f); err != nil {
			return err
		}
	}
	return nil
}

// relative returns name relative to prefix. Name equal to prefix is relative
// to its own directory.
func relative(name, prefix string) (string, bool) {
	switch {
	case prefix == "":
		return name, true
	case name == prefix:
		return path.Base(name), true
	case strings.HasPrefix(name, prefix+"/"):
		return name[len(prefix)+1:], true
	}
	return "", false
}

// isSafePath returns false for paths that could escape the extraction
// directory: absolute paths and those containing ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, `\`) {
		return false
	}
	return !slices.Contains(strings.Split(name, "/"), "..")
}
