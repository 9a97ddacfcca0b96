// Package version carries the build version of the ember binary.
package version

import "runtime/debug"

// Version is overridden at build time via:
//
//	go build -ldflags "-X github.com/vanderheijden86/ember/pkg/version.Version=v0.2.0"
var Version = "v0.1.0-dev"

// String returns Version, preferring the module version stamped by
// `go install` when no ldflags override was given.
func String() string {
	if Version != "v0.1.0-dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}
