package toolexec

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestParseCommandLine checks shell word splitting of configured commands.
func TestParseCommandLine(t *testing.T) {
	t.Parallel()

	words, err := ParseCommandLine(`yarn -s bazel`)
	require.NoError(t, err)
	require.Equal(t, []string{"yarn", "-s", "bazel"}, words)

	words, err = ParseCommandLine(`"/opt/my tools/bazel" --output_base='/tmp/a b'`)
	require.NoError(t, err)
	require.Equal(t, []string{"/opt/my tools/bazel", "--output_base=/tmp/a b"}, words)

	_, err = ParseCommandLine("   ")
	require.ErrorIs(t, err, errEmptyCommand)

	_, err = ParseCommandLine(`npm "pack`)
	require.Error(t, err)
}

// TestNewCommand appends extra arguments after the configured words.
func TestNewCommand(t *testing.T) {
	t.Parallel()

	cmd, err := NewCommand("/repo", "npm pack", "dist/bin/pkg")
	require.NoError(t, err)
	require.Equal(t, "/repo", cmd.Dir)
	require.Equal(t, "npm", cmd.Name)
	require.Equal(t, []string{"pack", "dist/bin/pkg"}, cmd.Args)
	require.Equal(t, "npm pack dist/bin/pkg", cmd.String())
}

// TestExecRunnerSuccess captures stdout separately from the combined stream.
func TestExecRunnerSuccess(t *testing.T) {
	t.Parallel()

	var echo bytes.Buffer

	dir := t.TempDir()
	runner := NewExecRunner(&echo)

	res, err := runner.Run(context.Background(), Command{
		Dir:  dir,
		Name: "sh",
		Args: []string{"-c", `echo out; echo err 1>&2; pwd`},
	})
	require.NoError(t, err)
	require.Contains(t, string(res.Stdout), "out")
	require.NotContains(t, string(res.Stdout), "err")
	require.Contains(t, string(res.Combined), "err")
	require.Contains(t, string(res.Stdout), dir)
	require.Equal(t, string(res.Combined), echo.String())
}

// TestExecRunnerExitCode maps a non-zero exit to ToolError.
func TestExecRunnerExitCode(t *testing.T) {
	t.Parallel()

	_, err := NewExecRunner(nil).Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo broken target 1>&2; exit 3"},
	})

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	require.Equal(t, 3, toolErr.ExitCode)
	require.Contains(t, toolErr.Output, "broken target")
	require.Contains(t, toolErr.Error(), "exit status 3")
	require.Contains(t, toolErr.Error(), "broken target")
}

// TestExecRunnerMissingTool reports tools absent from PATH.
func TestExecRunnerMissingTool(t *testing.T) {
	t.Parallel()

	_, err := NewExecRunner(nil).Run(context.Background(), Command{
		Name: "definitely-not-a-real-build-tool",
	})

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	require.Equal(t, ExitCodeNotStarted, toolErr.ExitCode)
}

// TestExecRunnerEnv appends variables to the inherited environment.
func TestExecRunnerEnv(t *testing.T) {
	t.Parallel()

	res, err := NewExecRunner(nil).Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", `printf %s "$ASSEMBLER_TEST"`},
		Env:  []string{"ASSEMBLER_TEST=set"},
	})
	require.NoError(t, err)
	require.Equal(t, "set", string(res.Stdout))
}

// TestExecRunnerCancel kills the tool when the context ends.
func TestExecRunnerCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := NewExecRunner(nil).Run(ctx, Command{Name: "sleep", Args: []string{"10"}})
	require.Error(t, err)
	require.True(t, errors.Is(ctx.Err(), context.DeadlineExceeded))
}
