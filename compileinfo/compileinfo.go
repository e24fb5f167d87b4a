// Package compileinfo reports the VCS provenance that the Go toolchain stamps
// into a binary, so that result tables can be traced to the code that scored
// them.
package compileinfo

import (
	"fmt"
	"os"
	"runtime/debug"
)

type CompileInfo struct {
	Binary     string
	GoVersion  string
	Commit     string
	CommitTime string
	Dirty      bool
}

func (c CompileInfo) String() string {
	if c.Commit == "" {
		return fmt.Sprintf("%s (%s): no VCS information was stamped into this build.", c.Binary, c.GoVersion)
	}

	dirty := ""
	if c.Dirty {
		dirty = " with uncommitted changes"
	}

	return fmt.Sprintf("%s (%s) built from commit %s (%s)%s.", c.Binary, c.GoVersion, c.Commit, c.CommitTime, dirty)
}

// Get reads the build info of the running binary. Outside of a module build
// every field is empty.
func Get() CompileInfo {
	z, ok := debug.ReadBuildInfo()
	if !ok {
		return CompileInfo{}
	}

	return fromBuildInfo(z)
}

func fromBuildInfo(z *debug.BuildInfo) CompileInfo {
	out := CompileInfo{
		Binary:    z.Path,
		GoVersion: z.GoVersion,
	}

	for _, s := range z.Settings {
		switch s.Key {
		case "vcs.revision":
			out.Commit = s.Value
		case "vcs.time":
			out.CommitTime = s.Value
		case "vcs.modified":
			out.Dirty = s.Value == "true"
		}
	}

	return out
}

func PrintToStdErr() {
	fmt.Fprintln(os.Stderr, Get())
}
