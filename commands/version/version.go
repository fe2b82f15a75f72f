package version

import (
	"regexp"
	"runtime/debug"
	"strings"
)

var tags = ""     // -ldflags "-X github.com/demiflat/orbeon-forms/commands/version.tags=`git tag -l --points-at HEAD`"
var revision = "" // -ldflags "-X github.com/demiflat/orbeon-forms/commands/version.revision=`git rev-parse HEAD`"

var versionPattern = regexp.MustCompile(`^v\d+\.\d+\.\d+$`)

// Version returns the semver version of this build on the form 0.0.0, or
// empty string if not built with a version number.
func Version() string {
	for _, tag := range strings.Split(tags, "\n") {
		if versionPattern.MatchString(tag) {
			return tag[1:]
		}
	}
	// Fall back to the module version when installed with go install
	if info, ok := debug.ReadBuildInfo(); ok && versionPattern.MatchString(info.Main.Version) {
		return info.Main.Version[1:]
	}
	return ""
}

// Revision returns the git revision hash of this build, or empty string if
// not known.
func Revision() string {
	if len(revision) == 40 {
		return revision
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && len(s.Value) == 40 {
				return s.Value
			}
		}
	}
	return ""
}
