// Package version holds build metadata stamped in via -ldflags.
package version

import "runtime"

var (
	// GitRelease is the release tag, or "dev" for local builds.
	GitRelease = "dev"
	// GitCommit is the short commit hash the binary was built from.
	GitCommit = "unknown"
	// GitCommitDate is the commit date of GitCommit.
	GitCommitDate = "unknown"
	// GoInfo is the Go toolchain that built the binary.
	GoInfo = runtime.Version()
)
