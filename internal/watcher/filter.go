package watcher

import (
	"path/filepath"
	"strings"
)

// DefaultIgnorePatterns lists temporary and lock files that never hold a
// finished spreadsheet.
func DefaultIgnorePatterns() []string {
	return []string{
		"*.tmp",
		"*.part",
		"*.download",
		"*.crdownload", // Chrome partial downloads
		"~$*",          // Office owner/lock files
		".~*",          // LibreOffice lock files
	}
}

// DefaultPatterns lists the files handed to the importer.
func DefaultPatterns() []string {
	return []string{"*.xlsx"}
}

// FileFilter decides which paths are handled. Matching is done on the base
// name, case-insensitively, with filepath.Match globs.
type FileFilter struct {
	include []string
	ignore  []string
}

// NewFileFilter creates a filter; empty lists fall back to the defaults.
func NewFileFilter(include, ignore []string) *FileFilter {
	if len(include) == 0 {
		include = DefaultPatterns()
	}
	if len(ignore) == 0 {
		ignore = DefaultIgnorePatterns()
	}
	return &FileFilter{include: include, ignore: ignore}
}

// Accepts reports whether path matches an include pattern and no ignore
// pattern.
func (f *FileFilter) Accepts(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	if matchAny(f.ignore, name) {
		return false
	}
	return matchAny(f.include, name)
}

func matchAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if matched, err := filepath.Match(strings.ToLower(pattern), name); err == nil && matched {
			return true
		}
	}
	return false
}
