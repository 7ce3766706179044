// Package discovery enumerates the input files of a run.
package discovery

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

// DefaultIgnorePatterns matches OS-generated clutter that should never end
// up on a backup volume.
var DefaultIgnorePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\.DS_Store$`),
}

// ListFiles returns the absolute paths of the regular files directly inside
// dir, sorted, excluding names matched by any ignore pattern. Subdirectories
// are not descended into: one run protects one flat directory.
func ListFiles(dir string, ignore []*regexp.Regexp) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if ignored(entry.Name(), ignore) {
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}
		abs, err := filepath.Abs(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		files = append(files, abs)
	}
	sort.Strings(files)
	return files, nil
}

// Sizes stats every path and returns a path to byte-size mapping.
func Sizes(paths []string) (map[string]int64, error) {
	sizes := make(map[string]int64, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		sizes[path] = info.Size()
	}
	return sizes, nil
}

func ignored(name string, patterns []*regexp.Regexp) bool {
	for _, pattern := range patterns {
		if pattern.MatchString(name) {
			return true
		}
	}
	return false
}
