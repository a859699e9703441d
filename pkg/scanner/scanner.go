// Package scanner implements C2: walking a configured directory root,
// applying ordered include/exclude glob patterns, and yielding file
// descriptors with their content hash already computed (spec.md §4.2).
package scanner

import (
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/edombelayneh/Qlippy/pkg/hashtree"
	"github.com/edombelayneh/Qlippy/pkg/qerrors"
)

// File is one yielded file descriptor.
type File struct {
	RelativePath string
	AbsolutePath string
	Size         int64
	ModTime      time.Time
	ContentHash  string
}

// Patterns are the ordered glob lists from the Directory entity (spec.md §3).
type Patterns struct {
	Include []string
	Exclude []string
}

// Scan walks root, applying exclude patterns first (directory components or
// the filename matching any exclude glob skips the entry — and for
// directories, prunes the walk so excluded subtrees are never descended
// into) and then admitting a file only if at least one include pattern
// matches the filename.
func Scan(root string, patterns Patterns) ([]File, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.IOFailure, "failed to resolve root", err)
	}

	var files []File

	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A single unreadable entry shouldn't abort the whole scan; the
			// caller's batch-level error policy (spec.md §4.5) handles this
			// at the file level, not here.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && matchesExclude(rel, patterns.Exclude) {
				return fs.SkipDir
			}
			return nil
		}

		if matchesExclude(rel, patterns.Exclude) {
			return nil
		}
		if !matchesInclude(rel, patterns.Include) {
			return nil
		}

		info, ierr := d.Info()
		if ierr != nil {
			return nil
		}

		files = append(files, File{
			RelativePath: rel,
			AbsolutePath: path,
			Size:         info.Size(),
			ModTime:      info.ModTime(),
			ContentHash:  hashtree.ContentHash(path),
		})

		return nil
	})

	if walkErr != nil {
		return nil, qerrors.Wrap(qerrors.IOFailure, "failed to walk directory", walkErr)
	}

	return files, nil
}

// matchesExclude reports whether any directory component OR the filename
// itself matches any exclude glob, per spec.md §4.2.
func matchesExclude(relPath string, excludes []string) bool {
	if len(excludes) == 0 {
		return false
	}

	base := filepath.Base(relPath)
	components := strings.Split(relPath, "/")

	for _, pattern := range excludes {
		if pattern == "" {
			continue
		}
		if ok, _ := doublestar.Match(pattern, base); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, relPath); ok {
			return true
		}
		for _, comp := range components {
			if ok, _ := doublestar.Match(pattern, comp); ok {
				return true
			}
		}
	}

	return false
}

// matchesInclude reports whether the filename matches at least one include
// glob. An empty include list admits nothing, matching spec.md §4.2's "a
// file is admitted only if at least one [include pattern] matches".
func matchesInclude(relPath string, includes []string) bool {
	if len(includes) == 0 {
		return false
	}

	base := filepath.Base(relPath)
	for _, pattern := range includes {
		if pattern == "" {
			continue
		}
		if ok, _ := doublestar.Match(pattern, base); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, relPath); ok {
			return true
		}
	}

	return false
}
