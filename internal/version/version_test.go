package version

import (
	"runtime/debug"
	"testing"
)

func TestFillFromBuildInfo(t *testing.T) {
	bi := &debug.BuildInfo{
		Main: debug.Module{Version: "v1.2.3"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}

	info := Info{Version: "dev", GitCommit: "unknown", BuildDate: "unknown"}
	fillFromBuildInfo(&info, bi)
	if info.Version != "v1.2.3" || info.GitCommit != "0123456789abcdef" || info.BuildDate != "2026-01-02T03:04:05Z" || !info.Modified {
		t.Errorf("info = %+v", info)
	}

	// ldflags values win.
	info = Info{Version: "v2.0.0", GitCommit: "feedbeef", BuildDate: "yesterday"}
	fillFromBuildInfo(&info, bi)
	if info.Version != "v2.0.0" || info.GitCommit != "feedbeef" || info.BuildDate != "yesterday" {
		t.Errorf("ldflags values overwritten: %+v", info)
	}

	info = Info{Version: "dev"}
	fillFromBuildInfo(&info, &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})
	if info.Version != "dev" {
		t.Errorf("devel build version = %q, want dev", info.Version)
	}
}

func TestGet(t *testing.T) {
	info := Get()
	if info.GoVersion == "" || info.Platform == "" || info.Version == "" {
		t.Errorf("Get() = %+v", info)
	}
	if Short() == "" {
		t.Error("Short() is empty")
	}
}
