package buildconfig

import "runtime"

// Set with -ldflags "-X .../internal/buildconfig.version=..."
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = ""
)

func Version() string {
	return version
}

func Commit() string {
	return commit
}

// VersionInfo is served by /version and printed by citadelctl.
func VersionInfo() map[string]string {
	info := map[string]string{
		"service": "citadel",
		"version": version,
		"commit":  commit,
		"go":      runtime.Version(),
	}
	if buildDate != "" {
		info["built"] = buildDate
	}
	return info
}
