// Package version reports what scoutgate binary is running and where.
//
// Release builds stamp Version, GitCommit and BuildDate through -ldflags:
//
//	-X scoutgate/internal/version.Version=v1.4.0
//	-X scoutgate/internal/version.GitCommit=$(git rev-parse HEAD)
//	-X scoutgate/internal/version.BuildDate=$(date -u +%FT%TZ)
//
// Plain `go build` binaries fall back to the VCS stamp the toolchain embeds.
package version

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
)

const unknown = "unknown"

// Set via -ldflags.
var (
	Version   = unknown
	GitCommit = unknown
	BuildDate = unknown
)

// Info describes the running instance. InstanceID is unique per process so
// logs, metrics and health responses from replicas can be told apart.
type Info struct {
	Version    string `json:"version"`
	GitCommit  string `json:"git_commit"`
	BuildDate  string `json:"build_date"`
	Modified   bool   `json:"modified,omitempty"`
	GoVersion  string `json:"go_version"`
	InstanceID string `json:"instance_id"`
	Hostname   string `json:"hostname"`
}

var (
	once    sync.Once
	current Info
)

// GetInfo returns the process-wide Info, resolving it on first use.
func GetInfo() Info {
	once.Do(func() {
		bi, _ := debug.ReadBuildInfo()
		current = resolve(bi)
		current.InstanceID = uuid.NewString()
		current.Hostname = hostname()
	})
	return current
}

// resolve merges the -ldflags values with the toolchain's build info. Stamped
// values always win.
func resolve(bi *debug.BuildInfo) Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
	if bi == nil {
		return info
	}

	if info.Version == unknown && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == unknown {
				info.GitCommit = s.Value
			}
		case "vcs.time":
			if info.BuildDate == unknown {
				info.BuildDate = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return unknown
	}
	return name
}

// ShortCommit returns the first seven characters of the commit.
func (i Info) ShortCommit() string {
	if len(i.GitCommit) > 7 {
		return i.GitCommit[:7]
	}
	return i.GitCommit
}

// String formats the info for -version output.
func (i Info) String() string {
	commit := i.ShortCommit()
	if i.Modified {
		commit += "-dirty"
	}
	return fmt.Sprintf("scoutgate %s (commit %s, built %s, %s)", i.Version, commit, i.BuildDate, i.GoVersion)
}

// UserAgent identifies scoutgate in outbound requests.
func (i Info) UserAgent() string {
	return "scoutgate/" + i.Version
}

// LogAttrs are attached to every log record.
func (i Info) LogAttrs() []any {
	return []any{
		slog.String("version", i.Version),
		slog.String("git_commit", i.ShortCommit()),
		slog.String("instance_id", i.InstanceID),
	}
}
