package assembler

import (
	"errors"
	"fmt"
)

var (
	// ErrBuildFailure wraps failures of the build tool, including output root queries.
	ErrBuildFailure = errors.New("build failed")
	// ErrPackagingFailure wraps failures of the archive tool and archive verification.
	ErrPackagingFailure = errors.New("packaging failed")
	// ErrFilesystemFailure wraps mkdir, copy, move, chmod, remove and manifest read failures.
	ErrFilesystemFailure = errors.New("filesystem operation failed")
	// ErrAssemblerRunning means another run holds the project root marker.
	ErrAssemblerRunning = errors.New("another assembly is running in this project root")

	errArchiveNotFound = errors.New("packed archive not found")
	errNotADirectory   = errors.New("destination exists and is not a directory")
)

func buildFailure(err error) error {
	return fmt.Errorf("%w: %w", ErrBuildFailure, err)
}

func packagingFailure(err error) error {
	return fmt.Errorf("%w: %w", ErrPackagingFailure, err)
}

func filesystemFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrFilesystemFailure, op, err)
}
