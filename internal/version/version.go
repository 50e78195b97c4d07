package version

import "fmt"

var (
	// Version is the semantic version of the assembler. Set via ldflags.
	Version = "0.1.0"
	// Commit is the short git SHA the binary was built from.
	Commit = "none"
	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full returns the version with commit and build time.
func Full() string {
	return fmt.Sprintf("package-assembler %s (commit %s, built %s)", Version, Commit, BuildTime)
}
