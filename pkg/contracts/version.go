package contracts

import "runtime"

// APIVersion tags the HTTP and WebSocket payloads.
const APIVersion = "v1"

// Build metadata, overridden with -ldflags "-X rollbook/pkg/contracts.Version=...".
var (
	Version   = "0.3.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// VersionInfo is served by /api/version.
type VersionInfo struct {
	Version    string `json:"version"`
	BuildTime  string `json:"build_time"`
	GitCommit  string `json:"git_commit"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
	APIVersion string `json:"api_version"`
}

// GetVersionInfo collects the build metadata of the running binary.
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:    Version,
		BuildTime:  BuildTime,
		GitCommit:  GitCommit,
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
		APIVersion: APIVersion,
	}
}
