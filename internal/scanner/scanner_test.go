package scanner

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func xlsxOnly(path string) bool {
	return strings.HasSuffix(path, ".xlsx")
}

func TestScan_DepthAndFilter(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.xlsx"))
	touch(t, filepath.Join(dir, "a.xlsx"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "2023", "old.xlsx"))
	touch(t, filepath.Join(dir, "2023", "q1", "older.xlsx"))

	files, err := Scan(dir, Options{Accept: xlsxOnly})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.xlsx"), filepath.Join(dir, "b.xlsx")}, files)

	files, err = Scan(dir, Options{MaxDepth: 1, Accept: xlsxOnly})
	require.NoError(t, err)
	assert.Len(t, files, 3)

	files, err = Scan(dir, Options{MaxDepth: -1})
	require.NoError(t, err)
	assert.Len(t, files, 5)
}

func TestScan_Symlinks(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(t.TempDir(), "real.xlsx")
	touch(t, target)
	if err := os.Symlink(target, filepath.Join(dir, "link.xlsx")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	files, err := Scan(dir, Options{})
	require.NoError(t, err)
	assert.Empty(t, files)

	files, err = Scan(dir, Options{FollowSymlinks: true})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "link.xlsx")}, files)
}

func TestScan_Errors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.xlsx")
	touch(t, file)

	var scanErr *ScanError
	_, err := Scan(filepath.Join(dir, "missing"), Options{})
	require.True(t, errors.As(err, &scanErr))
	assert.Equal(t, DirectoryNotFound, scanErr.Type)

	_, err = Scan(file, Options{})
	require.True(t, errors.As(err, &scanErr))
	assert.Equal(t, NotADirectory, scanErr.Type)
}

func TestScanReturnsOnlyFiles(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every created file is found and no directory is returned", prop.ForAll(
		func(files, dirs []string) bool {
			root, err := os.MkdirTemp("", "scanner-*")
			if err != nil {
				return false
			}
			defer os.RemoveAll(root)

			want := map[string]bool{}
			for _, f := range files {
				path := filepath.Join(root, f+".xlsx")
				if os.WriteFile(path, nil, 0o644) != nil {
					return false
				}
				want[path] = true
			}
			for _, d := range dirs {
				if os.MkdirAll(filepath.Join(root, "dir_"+d), 0o755) != nil {
					return false
				}
			}

			got, err := Scan(root, Options{})
			if err != nil || len(got) != len(want) {
				return false
			}
			for _, path := range got {
				if !want[path] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Identifier()),
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t)
}
