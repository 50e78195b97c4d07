package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config describes how one npm package is built and assembled.
type Config struct {
	// ProjectRoot is the directory the tools run in and relative paths resolve against.
	ProjectRoot string `yaml:"project_root"`
	// BuildCommand is the build system invocation, possibly several shell words.
	BuildCommand string `yaml:"build_command"`
	// BuildTarget is the single target that produces the package.
	BuildTarget string `yaml:"build_target"`
	// OutputRoot is the build system's artifact root. Empty means ask the build tool.
	OutputRoot string `yaml:"output_root"`
	// OutputSuffix is the package directory relative to OutputRoot.
	OutputSuffix string `yaml:"output_suffix"`
	// PackCommand creates the archive from a directory.
	PackCommand string `yaml:"pack_command"`
	// Manifest is the package.json providing the version, relative to ProjectRoot.
	Manifest string `yaml:"manifest"`
	// PackageName names the copied directory and the renamed archive.
	PackageName string `yaml:"package_name"`
	// ArchiveExt is the archive extension including the leading dot.
	ArchiveExt string `yaml:"archive_ext"`
	// VerifyArchive enables reading the archive back after it is moved.
	VerifyArchive bool `yaml:"verify_archive"`
	// MarkerLifetime is the age after which a run marker is treated as stale.
	MarkerLifetime time.Duration `yaml:"marker_lifetime"`
}

const (
	// DefaultConfigFilename is looked up in the working directory when no --config is given.
	DefaultConfigFilename = "package-assembler.yaml"

	// DefaultBuildCommand runs the bazel the monorepo pins through yarn.
	DefaultBuildCommand = "yarn -s bazel"

	// DefaultBuildTarget builds the zone.js npm package.
	DefaultBuildTarget = "//packages/zone.js:npm_package"

	// DefaultOutputSuffix is where bazel leaves the npm_package output.
	DefaultOutputSuffix = "packages/zone.js/npm_package"

	// DefaultPackCommand is the archive tool.
	DefaultPackCommand = "npm pack"

	// DefaultManifest provides the package version.
	DefaultManifest = "packages/zone.js/package.json"

	// DefaultPackageName is the directory name under the destination path.
	DefaultPackageName = "zone.js"

	// DefaultArchiveExt is what npm pack produces.
	DefaultArchiveExt = ".tgz"

	// DefaultMarkerLifetime bounds how long a crashed run can block the next one.
	DefaultMarkerLifetime = 30 * time.Minute

	// DefaultFilePermissions is the mode used when saving the config.
	DefaultFilePermissions = 0o600
)

var (
	errConfigIsNotSet      = errors.New("configuration is not set")
	errBuildTargetRequired = errors.New("build target must be provided")
	errPackageNameInvalid  = errors.New("package name must be a single path element")
	errArchiveExtInvalid   = errors.New("archive extension must start with a dot")
	errOutputSuffixInvalid = errors.New("output suffix must be a relative path")
)

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		ProjectRoot:    ".",
		BuildCommand:   DefaultBuildCommand,
		BuildTarget:    DefaultBuildTarget,
		OutputSuffix:   DefaultOutputSuffix,
		PackCommand:    DefaultPackCommand,
		Manifest:       DefaultManifest,
		PackageName:    DefaultPackageName,
		ArchiveExt:     DefaultArchiveExt,
		VerifyArchive:  true,
		MarkerLifetime: DefaultMarkerLifetime,
	}
}

// Load reads configuration from path on top of Default.
// A missing file at the default location is not an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilename
	}

	cfg := Default()

	contents, err := os.ReadFile(filepath.Clean(path))
	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
		return cfg, Validate(cfg)
	case err != nil:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err = yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills in defaults for empty optional ones.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ProjectRoot == "" {
		cfg.ProjectRoot = "."
	}

	if cfg.BuildCommand == "" {
		cfg.BuildCommand = DefaultBuildCommand
	}

	if cfg.PackCommand == "" {
		cfg.PackCommand = DefaultPackCommand
	}

	if cfg.Manifest == "" {
		cfg.Manifest = DefaultManifest
	}

	if cfg.ArchiveExt == "" {
		cfg.ArchiveExt = DefaultArchiveExt
	}

	if cfg.MarkerLifetime <= 0 {
		cfg.MarkerLifetime = DefaultMarkerLifetime
	}

	if strings.TrimSpace(cfg.BuildTarget) == "" {
		return errBuildTargetRequired
	}

	name := cfg.PackageName
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || name == "archive" {
		return fmt.Errorf("%q: %w", name, errPackageNameInvalid)
	}

	if !strings.HasPrefix(cfg.ArchiveExt, ".") {
		return fmt.Errorf("%q: %w", cfg.ArchiveExt, errArchiveExtInvalid)
	}

	if cfg.OutputSuffix == "" || filepath.IsAbs(cfg.OutputSuffix) {
		return fmt.Errorf("%q: %w", cfg.OutputSuffix, errOutputSuffixInvalid)
	}

	return nil
}
