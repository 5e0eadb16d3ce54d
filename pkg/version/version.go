// Package version holds build-time version information.
package version

import "fmt"

// Set via ldflags at build time:
//
//	go build -ldflags "-X github.com/gridsub/gridsub/pkg/version.Version=v1.2.3"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// String returns a human-readable version line.
func String() string {
	return fmt.Sprintf("gridsub %s (commit %s, built %s)", Version, GitCommit, BuildDate)
}
