package assembler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/package-assembler/internal/logger"
)

const (
	// MarkerFilename marks a running assembly inside the project root.
	MarkerFilename = ".package-assembler.lock"

	// markerFileMode is the permission of the marker file.
	markerFileMode os.FileMode = 0o644

	// commLength is how many bytes of an executable name Linux keeps in /proc/<pid>/stat.
	commLength = 15
)

// runGuard keeps two assemblies from sharing one project root, since the pack
// tool writes its archive there.
type runGuard struct {
	// path is the marker location.
	path string
	// lifetime is the age after which a marker without a pid may be stale.
	lifetime time.Duration
	// executable is the base name other assembler processes run under.
	executable string
	// pid is written into the marker.
	pid int
}

func newRunGuard(projectRoot string, lifetime time.Duration) *runGuard {
	executable, err := os.Executable()
	if err != nil {
		executable = os.Args[0]
	}

	return &runGuard{
		path:       filepath.Join(projectRoot, MarkerFilename),
		lifetime:   lifetime,
		executable: filepath.Base(executable),
		pid:        os.Getpid(),
	}
}

// Acquire creates the marker and returns a function removing it.
func (g *runGuard) Acquire(ctx context.Context) (func(), error) {
	logger.Debug(ctx, "Checking for a running assembly marker")

	info, err := os.Stat(g.path)

	switch {
	case err == nil:
		if err = g.clearStale(ctx, info); err != nil {
			return nil, err
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, filesystemFailure("stat marker", err)
	}

	f, err := os.OpenFile(g.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, markerFileMode)
	if errors.Is(err, os.ErrExist) {
		return nil, ErrAssemblerRunning
	}

	if err != nil {
		return nil, filesystemFailure("create marker", err)
	}

	_, writeErr := f.WriteString(strconv.Itoa(g.pid))
	if closeErr := f.Close(); writeErr == nil {
		writeErr = closeErr
	}

	if writeErr != nil {
		_ = os.Remove(g.path)
		return nil, filesystemFailure("write marker", writeErr)
	}

	release := func() {
		if err := os.Remove(g.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.WarnKV(ctx, "Unable to remove assembly marker", "path", g.path, "error", err)
		}
	}

	return release, nil
}

// clearStale removes a marker left behind by a run that no longer exists.
// A marker naming a pid is judged by that process alone, whatever its age.
// Without a readable pid a young marker is busy and an old one is stale
// unless some other process runs the assembler.
func (g *runGuard) clearStale(ctx context.Context, info os.FileInfo) error {
	pid, hasPID, err := g.markerPID()

	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		return filesystemFailure("read marker", err)
	}

	if !hasPID && time.Since(info.ModTime()) <= g.lifetime {
		return ErrAssemblerRunning
	}

	var alive bool
	if hasPID {
		alive, err = g.processAlive(pid)
	} else {
		alive, err = g.anyOtherAlive()
	}

	if err != nil {
		return filesystemFailure("inspect marker owner", err)
	}

	if alive {
		return ErrAssemblerRunning
	}

	logger.InfoKV(ctx, "The assembly marker is stale, removing it", "path", g.path, "age", time.Since(info.ModTime()))

	if err = os.Remove(g.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return filesystemFailure("remove stale marker", err)
	}

	return nil
}

// markerPID reads the pid written into the marker.
func (g *runGuard) markerPID() (int, bool, error) {
	contents, err := os.ReadFile(g.path)
	if err != nil {
		return 0, false, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil || pid <= 0 {
		return 0, false, nil
	}

	return pid, true, nil
}

// processAlive reports whether pid still runs the assembler. Our own pid means
// this process already holds the marker.
func (g *runGuard) processAlive(pid int) (bool, error) {
	if pid == g.pid {
		return true, nil
	}

	process, err := ps.FindProcess(pid)
	if err != nil {
		return false, err
	}

	return process != nil && sameExecutable(process.Executable(), g.executable), nil
}

// anyOtherAlive scans every process for another assembler.
func (g *runGuard) anyOtherAlive() (bool, error) {
	processes, err := ps.Processes()
	if err != nil {
		return false, err
	}

	for _, process := range processes {
		if process.Pid() == g.pid {
			continue
		}

		if sameExecutable(process.Executable(), g.executable) {
			return true, nil
		}
	}

	return false, nil
}

// sameExecutable compares a process table name with an executable base name,
// accounting for the kernel truncating long names.
func sameExecutable(processName, executable string) bool {
	if processName == executable {
		return true
	}

	return len(processName) == commLength && strings.HasPrefix(executable, processName)
}
