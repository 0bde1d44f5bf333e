// Package build contains build-related variables set at compile time and
// publishes them through github.com/prometheus/common/version.
package build

import (
	"runtime/debug"

	"github.com/prometheus/common/version"
)

var (
	Version = "N/A"
	GitSHA  = "N/A"
	Branch  = "N/A"
	Time    = "N/A"
)

func init() {
	if Version == "N/A" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
			Version = info.Main.Version
		}
	}
	version.Version = Version
	version.Revision = GitSHA
	version.Branch = Branch
	version.BuildDate = Time
}
