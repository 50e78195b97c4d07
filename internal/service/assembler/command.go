package assembler

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/package-assembler/internal/archive"
	"github.com/oshokin/package-assembler/internal/config"
	"github.com/oshokin/package-assembler/internal/domain/manifest"
	"github.com/oshokin/package-assembler/internal/fsutil"
	"github.com/oshokin/package-assembler/internal/logger"
	"github.com/oshokin/package-assembler/internal/toolexec"
)

const (
	// BuildCommandEnv overrides the configured build command, as the monorepo scripts do.
	BuildCommandEnv = "BAZEL"

	// ArchiveDirName is the directory under the destination that receives the archive.
	ArchiveDirName = "archive"

	// outputRootQuery is passed to the build tool when no output root is configured.
	outputRootQuery = "bazel-bin"

	bannerLine = "##############################"
)

// Options are inputs accepted by the assembler entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// DestinationPath is the output root, absolute or relative to the project root.
	DestinationPath string
	// ProjectRoot overrides the configured project root when set.
	ProjectRoot string
	// BuildCommand overrides both the configured command and the BAZEL variable when set.
	BuildCommand string
	// SkipVerify disables reading the archive back.
	SkipVerify bool
}

// Assembler runs one package assembly. It holds no state between runs.
type Assembler struct {
	// cfg describes the package and the tools.
	cfg *config.Config
	// projectRoot is the absolute project root.
	projectRoot string
	// runner starts the build and pack tools.
	runner toolexec.Runner
	// progress receives the plain progress lines printed between tool output.
	progress io.Writer
}

// Option customises an Assembler.
type Option func(*Assembler)

// WithProgressOutput sets where plain progress lines go. They are discarded by default.
func WithProgressOutput(w io.Writer) Option {
	return func(a *Assembler) {
		a.progress = w
	}
}

// Run loads configuration, applies overrides and assembles the package.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "package-assembler")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if opts.ProjectRoot != "" {
		cfg.ProjectRoot = opts.ProjectRoot
	}

	if command, ok := os.LookupEnv(BuildCommandEnv); ok && strings.TrimSpace(command) != "" {
		cfg.BuildCommand = command
	}

	if opts.BuildCommand != "" {
		cfg.BuildCommand = opts.BuildCommand
	}

	if opts.SkipVerify {
		cfg.VerifyArchive = false
	}

	asm, err := New(cfg, toolexec.NewExecRunner(os.Stdout), WithProgressOutput(os.Stdout))
	if err != nil {
		return err
	}

	return asm.Assemble(ctx, opts.DestinationPath)
}

// New validates cfg and resolves the project root.
func New(cfg *config.Config, runner toolexec.Runner, opts ...Option) (*Assembler, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	projectRoot, err := filepath.Abs(cfg.ProjectRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}

	asm := &Assembler{
		cfg:         cfg,
		projectRoot: projectRoot,
		runner:      runner,
		progress:    io.Discard,
	}

	for _, opt := range opts {
		opt(asm)
	}

	return asm, nil
}

// Assemble builds the package and writes <dest>/<package-name> and
// <dest>/archive/<package-name><ext>. Prior output under those two paths is replaced.
func (a *Assembler) Assemble(ctx context.Context, destinationPath string) error {
	ctx = logger.WithKV(ctx, "package", a.cfg.PackageName)

	release, err := newRunGuard(a.projectRoot, a.cfg.MarkerLifetime).Acquire(ctx)
	if err != nil {
		return err
	}

	defer release()

	pkg, err := manifest.Read(a.resolve(a.cfg.Manifest))
	if err != nil {
		return filesystemFailure("read manifest", err)
	}

	a.printBanner(ctx)

	if err = a.build(ctx); err != nil {
		return err
	}

	absDest := a.resolve(destinationPath)
	if err = ensureDir(absDest); err != nil {
		return err
	}

	buildOutputDir, err := a.buildOutputDir(ctx)
	if err != nil {
		return err
	}

	// Also create an archive so the package itself can be tested.
	reported, err := a.pack(ctx, buildOutputDir)
	if err != nil {
		return err
	}

	distTargetDir := filepath.Join(absDest, a.cfg.PackageName)
	if err = a.copyPackage(ctx, buildOutputDir, distTargetDir); err != nil {
		return err
	}

	archiveSource, err := a.locateArchive(pkg, reported)
	if err != nil {
		return err
	}

	archivePath, err := a.moveArchive(ctx, archiveSource, filepath.Join(absDest, ArchiveDirName))
	if err != nil {
		return err
	}

	if a.cfg.VerifyArchive {
		if err = a.verifyArchive(ctx, archivePath, distTargetDir); err != nil {
			return err
		}
	}

	a.printSummary(ctx, distTargetDir, archivePath, pkg.Version)

	// Separates this run from whatever the caller prints next.
	_, _ = fmt.Fprintln(a.progress)

	return nil
}

// printBanner announces the package being built.
func (a *Assembler) printBanner(ctx context.Context) {
	logger.Info(ctx, bannerLine)
	logger.Infof(ctx, "  Building %s npm package", a.cfg.PackageName)
	logger.Info(ctx, bannerLine)
}

func (a *Assembler) build(ctx context.Context) error {
	cmd, err := toolexec.NewCommand(a.projectRoot, a.cfg.BuildCommand, "build", a.cfg.BuildTarget)
	if err != nil {
		return buildFailure(err)
	}

	logger.InfoKV(ctx, "Building target", "command", cmd.String())

	if _, err = a.runner.Run(ctx, cmd); err != nil {
		return buildFailure(err)
	}

	return nil
}

// buildOutputDir returns <output-root>/<output-suffix>, asking the build tool
// for its output root when none is configured.
func (a *Assembler) buildOutputDir(ctx context.Context) (string, error) {
	outputRoot := a.cfg.OutputRoot

	if outputRoot == "" {
		cmd, err := toolexec.NewCommand(a.projectRoot, a.cfg.BuildCommand, "info", outputRootQuery)
		if err != nil {
			return "", buildFailure(err)
		}

		res, err := a.runner.Run(ctx, cmd)
		if err != nil {
			return "", buildFailure(err)
		}

		outputRoot = firstLine(res.Stdout)
		if outputRoot == "" {
			return "", buildFailure(fmt.Errorf("%s printed no output root", cmd))
		}

		logger.DebugKV(ctx, "Resolved build output root", "output_root", outputRoot)
	}

	return filepath.Join(a.resolve(outputRoot), filepath.FromSlash(a.cfg.OutputSuffix)), nil
}

// pack runs the archive tool in the project root and returns the filename it
// reported on its last line of output, if any.
func (a *Assembler) pack(ctx context.Context, buildOutputDir string) (string, error) {
	cmd, err := toolexec.NewCommand(a.projectRoot, a.cfg.PackCommand, buildOutputDir)
	if err != nil {
		return "", packagingFailure(err)
	}

	logger.InfoKV(ctx, "Packing build output", "command", cmd.String())

	res, err := a.runner.Run(ctx, cmd)
	if err != nil {
		return "", packagingFailure(err)
	}

	return lastLine(res.Stdout), nil
}

// copyPackage replaces distTargetDir with a writable copy of the build output.
func (a *Assembler) copyPackage(ctx context.Context, buildOutputDir, distTargetDir string) error {
	logger.Infof(ctx, "# Copy npm package artifacts to %s", distTargetDir)

	if err := fsutil.RemoveAll(distTargetDir); err != nil {
		return filesystemFailure("remove previous package copy", err)
	}

	if err := fsutil.CopyTree(buildOutputDir, distTargetDir); err != nil {
		return filesystemFailure("copy build output", err)
	}

	// Build systems commonly mark their outputs read-only.
	if err := fsutil.MakeOwnerWritable(distTargetDir); err != nil {
		return filesystemFailure("make package copy writable", err)
	}

	return nil
}

// locateArchive finds the archive the pack tool left in the project root.
// The name derived from the manifest is preferred; the name the tool printed
// covers naming rules the derivation does not know about.
func (a *Assembler) locateArchive(pkg *manifest.Manifest, reported string) (string, error) {
	candidates := []string{pkg.ArchiveFilename(a.cfg.ArchiveExt)}

	if name := filepath.Base(reported); reported != "" && strings.HasSuffix(name, a.cfg.ArchiveExt) {
		candidates = append(candidates, name)
	}

	for _, name := range candidates {
		path := filepath.Join(a.projectRoot, name)

		ok, err := fsutil.Exists(path)
		if err != nil {
			return "", filesystemFailure("stat archive", err)
		}

		if ok {
			return path, nil
		}
	}

	return "", filesystemFailure("locate archive",
		fmt.Errorf("%s: %w", filepath.Join(a.projectRoot, candidates[0]), errArchiveNotFound))
}

// moveArchive recreates archiveDir and moves the archive into it under its fixed name.
func (a *Assembler) moveArchive(ctx context.Context, source, archiveDir string) (string, error) {
	logger.Infof(ctx, "# Copy npm package archive file to %s", archiveDir)

	if err := fsutil.RemoveAll(archiveDir); err != nil {
		return "", filesystemFailure("remove previous archive directory", err)
	}

	if err := os.MkdirAll(archiveDir, os.ModePerm); err != nil {
		return "", filesystemFailure("create archive directory", err)
	}

	target := filepath.Join(archiveDir, manifest.FixedFilename(a.cfg.PackageName, a.cfg.ArchiveExt))
	if err := fsutil.MoveFile(source, target); err != nil {
		return "", filesystemFailure("move archive", err)
	}

	return target, nil
}

// verifyArchive reads the archive back and compares it with the package copy.
// Files the pack tool chose to leave out are only reported.
func (a *Assembler) verifyArchive(ctx context.Context, archivePath, distTargetDir string) error {
	omitted, err := archive.VerifyTree(archivePath, distTargetDir, archive.DefaultPrefix)
	if err != nil {
		return packagingFailure(err)
	}

	if len(omitted) > 0 {
		logger.WarnKV(ctx, "Archive leaves out files of the package tree",
			"archive", archivePath,
			"omitted", omitted,
		)
	}

	logger.DebugKV(ctx, "Archive matches the package tree", "archive", archivePath)

	return nil
}

// printSummary logs what the run produced.
func (a *Assembler) printSummary(ctx context.Context, distTargetDir, archivePath, version string) {
	listing, err := archive.ListTree(distTargetDir)
	if err != nil {
		logger.WarnKV(ctx, "Unable to list package copy", "error", err)
		return
	}

	var size int64
	if info, statErr := os.Stat(archivePath); statErr == nil {
		size = info.Size()
	}

	logger.InfoKV(ctx, "Package assembled",
		"version", version,
		"package_dir", distTargetDir,
		"files", len(listing),
		"archive", archivePath,
		"archive_bytes", size,
	)
}

// resolve makes p absolute relative to the project root.
func (a *Assembler) resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}

	return filepath.Join(a.projectRoot, p)
}

// ensureDir creates dir and its parents unless it already exists.
func ensureDir(dir string) error {
	info, err := os.Stat(dir)

	switch {
	case err == nil && info.IsDir():
		return nil
	case err == nil:
		return filesystemFailure("create destination", fmt.Errorf("%s: %w", dir, errNotADirectory))
	case !errors.Is(err, os.ErrNotExist):
		return filesystemFailure("stat destination", err)
	}

	if err = os.MkdirAll(dir, os.ModePerm); err != nil {
		return filesystemFailure("create destination", err)
	}

	return nil
}

func firstLine(out []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line
		}
	}

	return ""
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")

	return strings.TrimSpace(lines[len(lines)-1])
}
