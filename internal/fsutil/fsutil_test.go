package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, contents string, mode os.FileMode) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), mode))
	require.NoError(t, os.Chmod(path, mode))
}

// TestCopyTree copies nested files, modes and symlinks.
func TestCopyTree(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "npm_package")
	writeFile(t, filepath.Join(src, "package.json"), `{"name":"zone.js"}`, 0o444)
	writeFile(t, filepath.Join(src, "bundles", "zone.umd.js"), "umd", 0o644)
	writeFile(t, filepath.Join(src, "bin", "run.sh"), "#!/bin/sh", 0o555)
	require.NoError(t, os.Symlink("bundles/zone.umd.js", filepath.Join(src, "zone.js")))

	dst := filepath.Join(t.TempDir(), "out", "zone.js")
	require.NoError(t, CopyTree(src, dst))

	data, err := os.ReadFile(filepath.Join(dst, "bundles", "zone.umd.js"))
	require.NoError(t, err)
	require.Equal(t, "umd", string(data))

	info, err := os.Stat(filepath.Join(dst, "package.json"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o444), info.Mode().Perm())

	info, err = os.Stat(filepath.Join(dst, "bin", "run.sh"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o555), info.Mode().Perm())

	link, err := os.Readlink(filepath.Join(dst, "zone.js"))
	require.NoError(t, err)
	require.Equal(t, "bundles/zone.umd.js", link)
}

// TestCopyTreeMissingSource fails without creating the destination.
func TestCopyTreeMissingSource(t *testing.T) {
	t.Parallel()

	dst := filepath.Join(t.TempDir(), "dst")
	require.ErrorIs(t, CopyTree(filepath.Join(t.TempDir(), "missing"), dst), os.ErrNotExist)

	ok, err := Exists(dst)
	require.NoError(t, err)
	require.False(t, ok)
}

// TestCopyTreeRejectsFile requires a directory source.
func TestCopyTreeRejectsFile(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "file")
	writeFile(t, src, "x", 0o644)

	require.ErrorIs(t, CopyTree(src, filepath.Join(t.TempDir(), "dst")), errNotDirectory)
}

// TestMakeOwnerWritable adds u+w and keeps the other bits.
func TestMakeOwnerWritable(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "index.js"), "a", 0o444)
	writeFile(t, filepath.Join(root, "b.js"), "b", 0o555)
	require.NoError(t, os.Chmod(filepath.Join(root, "a"), 0o555))

	require.NoError(t, MakeOwnerWritable(root))

	for path, want := range map[string]os.FileMode{
		filepath.Join(root, "a"):             0o755,
		filepath.Join(root, "a", "index.js"): 0o644,
		filepath.Join(root, "b.js"):          0o755,
	} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		require.Equal(t, want, info.Mode().Perm(), path)
	}
}

// TestRemoveAll deletes read-only trees and ignores missing paths.
func TestRemoveAll(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "zone.js")
	writeFile(t, filepath.Join(root, "lib", "zone.js"), "z", 0o444)
	require.NoError(t, os.Chmod(filepath.Join(root, "lib"), 0o555))

	require.NoError(t, RemoveAll(root))

	ok, err := Exists(root)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, RemoveAll(root))
}

// TestMoveFile renames the file and removes the source.
func TestMoveFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "zone.js-0.15.0.tgz")
	dst := filepath.Join(dir, "archive", "zone.js.tgz")
	writeFile(t, src, "tgz", 0o644)
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0o755))

	require.NoError(t, MoveFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "tgz", string(data))

	ok, err := Exists(src)
	require.NoError(t, err)
	require.False(t, ok)

	require.ErrorIs(t, MoveFile(src, dst), os.ErrNotExist)
}
