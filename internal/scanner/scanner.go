// Package scanner finds workbooks in import directories.
package scanner

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
)

// ScanErrorType represents the type of scanning error.
type ScanErrorType string

const (
	DirectoryNotFound ScanErrorType = "DIRECTORY_NOT_FOUND"
	PermissionDenied  ScanErrorType = "PERMISSION_DENIED"
	NotADirectory     ScanErrorType = "NOT_A_DIRECTORY"
)

// ScanError represents an error that occurred during directory scanning.
type ScanError struct {
	Type ScanErrorType
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return string(e.Type) + ": " + e.Path
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// Options configures scanning behavior.
type Options struct {
	MaxDepth       int                    // 0 = immediate only, -1 = unlimited
	FollowSymlinks bool                   // Symlinked entries are skipped otherwise
	Accept         func(path string) bool // nil accepts every file
}

// Scan returns the files under directory accepted by opts.Accept, as
// absolute paths in lexical order.
func Scan(directory string, opts Options) ([]string, error) {
	info, err := os.Stat(directory)
	if err != nil {
		return nil, statError(directory, err)
	}
	if !info.IsDir() {
		return nil, &ScanError{Type: NotADirectory, Path: directory, Err: errors.New("path is not a directory")}
	}

	abs, err := filepath.Abs(directory)
	if err != nil {
		abs = directory
	}
	files, err := scanDirectory(abs, opts, 0)
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func scanDirectory(directory string, opts Options, depth int) ([]string, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return nil, statError(directory, err)
	}

	var files []string
	for _, entry := range entries {
		path := filepath.Join(directory, entry.Name())

		info, err := os.Lstat(path)
		if err != nil {
			continue // vanished since ReadDir
		}
		if info.Mode()&os.ModeSymlink != 0 {
			if !opts.FollowSymlinks {
				continue
			}
			if info, err = os.Stat(path); err != nil {
				continue // broken link
			}
		}

		if info.IsDir() {
			if opts.MaxDepth == -1 || depth < opts.MaxDepth {
				sub, err := scanDirectory(path, opts, depth+1)
				if err != nil {
					return nil, err
				}
				files = append(files, sub...)
			}
			continue
		}
		if opts.Accept == nil || opts.Accept(path) {
			files = append(files, path)
		}
	}
	return files, nil
}

func statError(path string, err error) error {
	switch {
	case os.IsNotExist(err):
		return &ScanError{Type: DirectoryNotFound, Path: path, Err: err}
	case os.IsPermission(err):
		return &ScanError{Type: PermissionDenied, Path: path, Err: err}
	default:
		return err
	}
}
