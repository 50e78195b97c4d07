package fsutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
)

// ownerWrite is the u+w permission bit.
const ownerWrite fs.FileMode = 0o200

var errNotDirectory = errors.New("not a directory")

// CopyTree copies the directory src to dst recursively.
// File modes and symlinks are preserved; dst must not exist yet.
func CopyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%s: %w", src, errNotDirectory)
	}

	return filepath.WalkDir(src, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		target := filepath.Join(dst, rel)

		switch {
		case entry.IsDir():
			return copyDirEntry(entry, target)
		case entry.Type()&fs.ModeSymlink != 0:
			return copySymlink(path, target)
		default:
			return copyFile(path, target)
		}
	})
}

func copyDirEntry(entry fs.DirEntry, target string) error {
	info, err := entry.Info()
	if err != nil {
		return err
	}

	// Owner must be able to fill the directory even if the source was read-only.
	if err = os.MkdirAll(target, info.Mode().Perm()|0o700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	return nil
}

func copySymlink(path, target string) error {
	link, err := os.Readlink(path)
	if err != nil {
		return fmt.Errorf("read symlink: %w", err)
	}

	if err = os.Symlink(link, target); err != nil {
		return fmt.Errorf("create symlink: %w", err)
	}

	return nil
}

func copyFile(src, dst string) (err error) {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}

	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}

	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(filepath.Clean(dst), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	defer func() {
		if closeErr := out.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("close file: %w", closeErr)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}

	return nil
}

// MakeOwnerWritable adds u+w to every file and directory under root.
// Symlinks are left alone.
func MakeOwnerWritable(root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if entry.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}

		if info.Mode().Perm()&ownerWrite != 0 {
			return nil
		}

		if err = os.Chmod(path, info.Mode().Perm()|ownerWrite); err != nil {
			return fmt.Errorf("chmod %s: %w", path, err)
		}

		return nil
	})
}

// RemoveAll deletes path recursively. Read-only directories left by earlier
// runs are made writable first. A missing path is not an error.
func RemoveAll(path string) error {
	if _, err := os.Lstat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err := os.RemoveAll(path); err == nil {
		return nil
	}

	if err := MakeOwnerWritable(path); err != nil {
		return err
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}

	return nil
}

// MoveFile renames src to dst, copying across filesystems when rename cannot.
func MoveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}

	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("move %s: %w", src, err)
	}

	if err = copyFile(src, dst); err != nil {
		return err
	}

	if err = os.Remove(src); err != nil {
		return fmt.Errorf("remove %s: %w", src, err)
	}

	return nil
}

// Exists reports whether path exists. Errors other than not-exist are returned.
func Exists(path string) (bool, error) {
	_, err := os.Lstat(path)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}
