// Package version exposes build metadata of the assembler binary.
//
// Version, Commit and BuildTime are injected with -ldflags -X at build time.
package version
