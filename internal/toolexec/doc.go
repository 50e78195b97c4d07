// Package toolexec runs the external build and archive tools.
//
// Tools run synchronously with their output captured; a non-zero exit is
// reported as a *ToolError carrying the exit code and combined output so the
// CLI can surface both.
package toolexec
