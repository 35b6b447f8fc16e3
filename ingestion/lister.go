package ingestion

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/mattn/go-zglob"
)

// ListFiles returns the regular files under root whose base name matches pattern.
// Without recursive only files directly inside root are considered. The result
// is sorted lexicographically and never contains directories.
// A missing root yields a *NotFoundError.
func ListFiles(root, pattern string, recursive bool) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Path: root}
		}
		return nil, fmt.Errorf("stat root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, &NotFoundError{Path: root}
	}

	if pattern == "" {
		pattern = "*"
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("%w: pattern %q: %v", ErrInvalidConfig, pattern, err)
	}

	globs := []string{filepath.Join(root, pattern)}
	if recursive {
		globs = append(globs, filepath.Join(root, "**", pattern))
	}

	seen := make(map[string]struct{})
	var files []string
	for _, g := range globs {
		matches, err := zglob.Glob(g)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("glob %s: %w", g, err)
		}

		for _, m := range matches {
			if _, dup := seen[m]; dup {
				continue
			}
			if ok, _ := filepath.Match(pattern, filepath.Base(m)); !ok {
				continue
			}
			fi, err := os.Stat(m)
			if err != nil || fi.IsDir() {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}

	sort.Strings(files)
	return files, nil
}
