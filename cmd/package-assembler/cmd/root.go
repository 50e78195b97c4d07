package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/package-assembler/internal/logger"
	"github.com/oshokin/package-assembler/internal/service/assembler"
	"github.com/oshokin/package-assembler/internal/toolexec"
	"github.com/oshokin/package-assembler/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// projectRoot overrides project_root from the configuration.
	projectRoot string
	// buildCommand overrides build_command and the BAZEL variable.
	buildCommand string
	// skipVerify disables reading the archive back.
	skipVerify bool
	// logLevel is the minimum level printed.
	logLevel string

	errUnknownLogLevel = errors.New("unknown log level")

	// rootCmd builds the package and copies it with its archive to the destination.
	rootCmd = &cobra.Command{
		Use:   "package-assembler [destination-path]",
		Short: "Build the npm package and copy it with its archive to a destination",
		Long: "Builds the configured target, packs the build output, copies the package tree to " +
			"<destination-path>/<package-name> and moves the archive to " +
			"<destination-path>/archive/<package-name><ext>. Relative destinations resolve against the project root.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("%q: %w", logLevel, errUnknownLogLevel)
			}

			logger.SetLevel(level)

			return nil
		},
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &assembler.Options{
				ConfigPath:      configPath,
				DestinationPath: args[0],
				ProjectRoot:     projectRoot,
				BuildCommand:    buildCommand,
				SkipVerify:      skipVerify,
			}

			return assembler.Run(ctx, options)
		},
	}
)

// Execute runs the CLI and exits with the failing tool's exit code, or 1.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	err := rootCmd.Execute()
	if err == nil {
		return
	}

	logger.Error(context.Background(), err)
	_ = logger.Logger().Sync()

	os.Exit(ExitCode(err))
}

// ExitCode maps an assembly error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var toolErr *toolexec.ToolError
	if errors.As(err, &toolErr) && toolErr.ExitCode > 0 {
		return toolErr.ExitCode
	}

	return 1
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "path to configuration file (default package-assembler.yaml if present)")
	flags.StringVarP(&projectRoot, "project-root", "r", "", "project root the tools run in")
	flags.StringVar(&buildCommand, "build-command", "", "build system command, overrides $"+assembler.BuildCommandEnv)
	flags.BoolVar(&skipVerify, "skip-verify", false, "do not compare the archive with the package tree")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
}
