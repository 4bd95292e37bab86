// Package imagelist expands the command-line path arguments into the
// ordered, de-duplicated list of image files svt displays.
package imagelist

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// allowedExtensions are the image formats svt can decode, matching the
// codecs registered in internal/imageproc.
var allowedExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}

// IsImage reports whether path has a supported image extension,
// case-insensitively.
func IsImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, a := range allowedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

// Build expands each of args (a file or a directory) into the
// de-duplicated list of image paths to display, preserving argument
// order. Directories expand to their immediate image children only (no
// recursion), sorted by path. Returns an error if the result is empty.
func Build(args []string) ([]string, error) {
	var collected []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %q: %w", arg, err)
		}
		if info.IsDir() {
			entries, err := os.ReadDir(arg)
			if err != nil {
				return nil, fmt.Errorf("read directory %q: %w", arg, err)
			}
			var children []string
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				if IsImage(e.Name()) {
					children = append(children, filepath.Join(arg, e.Name()))
				}
			}
			sort.Strings(children)
			collected = append(collected, children...)
			continue
		}
		if IsImage(arg) {
			collected = append(collected, arg)
		}
	}

	deduped := dedupe(collected)

	if len(deduped) == 0 {
		return nil, fmt.Errorf("no images found in %v", args)
	}
	return deduped, nil
}

// dedupe removes duplicate paths while preserving order.
func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
