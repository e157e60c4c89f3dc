// Package version reports the build version of the openly binary.
package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Set at build time with -ldflags "-X github.com/openlyhq/openly/pkg/version.version=v1.2.3".
//
//nolint:gochecknoglobals // Overridden by the linker.
var (
	version   = "0.0.0-dev"
	gitCommit = ""
	buildDate = ""
)

// GetVersion returns the version without a leading "v".
func GetVersion() string {
	return strings.TrimPrefix(version, "v")
}

// GetGitCommit returns the commit the binary was built from, if known.
func GetGitCommit() string {
	return gitCommit
}

// GetBuildDate returns the build timestamp, if known.
func GetBuildDate() string {
	return buildDate
}

// Parse returns the version as a semver value.
func Parse() (*semver.Version, error) {
	return semver.NewVersion(GetVersion())
}

// IsDevelopment reports whether this is an unreleased build: an unparseable
// version or one with a prerelease suffix.
func IsDevelopment() bool {
	v, err := Parse()
	if err != nil {
		return true
	}
	return v.Prerelease() != ""
}
