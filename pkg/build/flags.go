// SPDX-License-Identifier: MIT
//
// Package build holds version metadata embedded at link time, for example:
//
//	go build -ldflags "-X tuner/pkg/build.buildVersion=0.3.0 -X tuner/pkg/build.buildCommit=$(git rev-parse --short HEAD)"
//
// Development builds run without ldflags and report "dev" values.
package build

import (
	"errors"
	"fmt"
)

const (
	defaultName        = "tuner"
	defaultDescription = "Real-time multi-channel pitch tuner"
)

// Info describes the running binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String is the line printed by --version.
func (i Info) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", i.Version, i.Commit, i.Time)
}

// Populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &Info{
		Name:        defaultName,
		Description: defaultDescription,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
)

// Initialize copies the ldflags values into the build info. Values that
// were not set keep their development defaults and are reported in the
// returned error, which callers may treat as a warning.
func Initialize() error {
	var errs []error
	set := func(dst *string, v, flag string) {
		if v == "" {
			errs = append(errs, fmt.Errorf("%s is not set", flag))
			return
		}
		*dst = v
	}

	set(&buildFlags.Name, buildName, "BuildName")
	set(&buildFlags.Time, buildTime, "BuildTime")
	set(&buildFlags.Commit, buildCommit, "BuildCommit")
	set(&buildFlags.Version, buildVersion, "BuildVersion")

	return errors.Join(errs...)
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *Info {
	return buildFlags
}
