package api

import "runtime"

// Set at build time:
//
//	go build -ldflags "-X github.com/MJE43/photohunt/internal/api.EngineVersion=v1.2.0"
var (
	EngineVersion = "dev"
	GitCommit     = "unknown"
	BuildTime     = "unknown"
)

func GetVersionInfo() VersionInfo {
	return VersionInfo{
		EngineVersion: EngineVersion,
		GitCommit:     GitCommit,
		BuildTime:     BuildTime,
		GoVersion:     runtime.Version(),
	}
}
