// Package version holds the symbolic version of the running code.
package version

// Version is the symbolic version. It can be set at build time with:
//
//	-ldflags "-X github.com/m-lab/rspeed/pkg/version.Version=v0.1.0"
var Version = "v0.0.0-dev"
