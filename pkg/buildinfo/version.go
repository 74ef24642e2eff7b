// Package buildinfo holds the version stamped into octi binaries.
//
//	go build -ldflags "-X github.com/matzehuels/octi/pkg/buildinfo.Version=v0.3.0 \
//	    -X github.com/matzehuels/octi/pkg/buildinfo.Commit=$(git rev-parse HEAD)" ./cmd/octi
package buildinfo

import "fmt"

var (
	// Version is the release tag, "dev" for local builds.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Template returns the cobra version template.
func Template() string {
	return fmt.Sprintf("{{.Name}} version %s\ncommit: %s\nbuilt: %s\n", Version, Commit, Date)
}
