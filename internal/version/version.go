// Package version holds build-time version information, injected via ldflags.
package version

var (
	// Version is the semantic version or git tag.
	Version = "dev"
	// Commit is the git commit hash.
	Commit = "unknown"
)
