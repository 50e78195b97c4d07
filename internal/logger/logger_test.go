package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"WARN":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		" error ": zapcore.ErrorLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok, s)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("verbose")
	require.False(t, ok)
}

// TestContextHelpers checks that names and key-values travel with the context.
func TestContextHelpers(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	ctx := ToContext(context.Background(), zap.New(core).Sugar())
	ctx = WithName(ctx, "assembler")
	ctx = WithKV(ctx, "package", "zone.js")

	InfoKV(ctx, "copying", "files", 3)

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "assembler", entries[0].LoggerName)
	require.Equal(t, "copying", entries[0].Message)

	fields := entries[0].ContextMap()
	require.Equal(t, "zone.js", fields["package"])
	require.EqualValues(t, 3, fields["files"])
}

// TestFromContextFallsBackToGlobal ensures a bare context still logs.
func TestFromContextFallsBackToGlobal(t *testing.T) {
	t.Parallel()

	require.Same(t, Logger(), FromContext(context.Background()))
}

// TestNewWritesConsoleLines checks the console encoder output.
func TestNewWritesConsoleLines(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	l := New(&buf)
	l.Infow("archive moved", "path", "dist/archive/zone.js.tgz")
	require.NoError(t, l.Sync())

	require.Contains(t, buf.String(), "archive moved")
	require.Contains(t, buf.String(), "dist/archive/zone.js.tgz")
}
