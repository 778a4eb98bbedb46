// Package version holds build metadata injected via ldflags:
//
//	-X github.com/kailas-cloud/shopsearch/internal/version.Version=v1.2.0
package version

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String renders the build metadata for logs and the health endpoint.
func String() string {
	return Version + " (" + Commit + ", " + Date + ")"
}
