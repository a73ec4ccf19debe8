package buildinfo

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"
)

// Build-time variables (set via ldflags).
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	startedAt = time.Now()
	vcsOnce   sync.Once
	vcsCommit string
)

// Info contains build information.
type Info struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildTime string `json:"build_time" yaml:"build_time"`
	GoVersion string `json:"go_version" yaml:"go_version"`
}

// Get returns the build information.
func Get() Info {
	commit := Commit
	if commit == "unknown" {
		if c := readVCSCommit(); c != "" {
			commit = c
		}
	}
	return Info{
		Version:   Version,
		Commit:    commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

// String returns a formatted version string.
func String() string {
	i := Get()
	return i.Version + " (" + i.Commit + ") built at " + i.BuildTime
}

// Uptime returns the time since the process loaded this package.
func Uptime() time.Duration {
	return time.Since(startedAt)
}

func readVCSCommit() string {
	vcsOnce.Do(func() {
		bi, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				vcsCommit = s.Value
				if len(vcsCommit) > 12 {
					vcsCommit = vcsCommit[:12]
				}
			}
		}
	})
	return vcsCommit
}
