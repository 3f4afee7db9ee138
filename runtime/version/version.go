// Package version exposes the build version of the rustchain node, populated
// at link time via -ldflags.
package version

import "fmt"

var (
	gitCommit = "dev"
	buildDate = "unknown"
)

// Version returns the human readable version of the running binary.
func Version() string {
	return fmt.Sprintf("rustchain/%s built at %s", gitCommit, buildDate)
}

// GitCommit returns the bare commit string.
func GitCommit() string {
	return gitCommit
}
