package version //nolint:revive // package name intentionally matches build-info convention

import (
	"fmt"
	"runtime/debug"
)

// Set at build time with -ldflags "-X github.com/pitabwire/polyglot/version.Version=...".
//
//nolint:gochecknoglobals //version information is set at build time
var (
	Repository string
	Version    string
	Commit     string
	Date       string
)

const unknown = "unknown"

// Info describes the running build.
type Info struct {
	Repository string
	Version    string
	Commit     string
	Date       string
}

// Get returns the build information. Values not set at link time are taken
// from the module build info where possible.
func Get() Info {
	info := Info{
		Repository: Repository,
		Version:    Version,
		Commit:     Commit,
		Date:       Date,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		if info.Repository == "" {
			info.Repository = bi.Main.Path
		}
		if info.Version == "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		for _, setting := range bi.Settings {
			switch setting.Key {
			case "vcs.revision":
				if info.Commit == "" {
					info.Commit = setting.Value
				}
			case "vcs.time":
				if info.Date == "" {
					info.Date = setting.Value
				}
			}
		}
	}

	return info.withDefaults()
}

func (i Info) withDefaults() Info {
	for _, field := range []*string{&i.Repository, &i.Version, &i.Commit, &i.Date} {
		if *field == "" {
			*field = unknown
		}
	}
	return i
}

func (i Info) String() string {
	return fmt.Sprintf("repository: %s\nversion:    %s\ncommit:     %s\ndate:       %s",
		i.Repository, i.Version, i.Commit, i.Date)
}
