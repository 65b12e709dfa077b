// Package buildinfo carries build identification, overridable at link time:
//
//	go build -ldflags "-X github.com/qforge-dev/qmemory/internal/buildinfo.Version=v1.2.3"
package buildinfo

var (
	Version   = "dev"
	Revision  = "unknown"
	BuildDate = "unknown"
)
