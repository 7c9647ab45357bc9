// Package version reports the build version of site-weaver.
package version

import "runtime/debug"

// Version is set at build time via ldflags
var Version = ""

// String returns the version.
// Priority: ldflags > debug.ReadBuildInfo > "(devel)"
func String() string {
	if Version != "" {
		return Version
	}
	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		if buildInfo.Main.Version != "" {
			return buildInfo.Main.Version
		}
	}
	return "(devel)"
}
