package version

import (
	"runtime"
	"strings"
	"testing"
)

func setBuildVars(t *testing.T, version, commit, buildTime string) {
	t.Helper()
	origVersion, origCommit, origBuildTime := Version, Commit, BuildTime
	t.Cleanup(func() {
		Version, Commit, BuildTime = origVersion, origCommit, origBuildTime
	})
	Version, Commit, BuildTime = version, commit, buildTime
}

func TestString(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		setBuildVars(t, "dev", "unknown", "unknown")

		result := String()

		if !strings.Contains(result, "dev") {
			t.Errorf("String() = %q, should contain 'dev'", result)
		}
		if !strings.Contains(result, "built") {
			t.Errorf("String() = %q, should contain 'built'", result)
		}
	})

	t.Run("custom values", func(t *testing.T) {
		setBuildVars(t, "0.4.0", "9f1c2ab", "2026-03-02T08:00:00Z")

		expected := "0.4.0 (9f1c2ab) built 2026-03-02T08:00:00Z"
		if result := String(); result != expected {
			t.Errorf("String() = %q, want %q", result, expected)
		}
	})
}

func TestGet(t *testing.T) {
	setBuildVars(t, "0.4.0", "9f1c2ab", "2026-03-02T08:00:00Z")

	info := Get()

	if info.Version != "0.4.0" {
		t.Errorf("Version = %q, want 0.4.0", info.Version)
	}
	if info.Commit != "9f1c2ab" {
		t.Errorf("Commit = %q, want 9f1c2ab", info.Commit)
	}
	if info.BuildTime != "2026-03-02T08:00:00Z" {
		t.Errorf("BuildTime = %q", info.BuildTime)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
}

func TestDefaultValues(t *testing.T) {
	// ldflags may override these in release builds
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if Commit == "" {
		t.Error("Commit should not be empty")
	}
	if BuildTime == "" {
		t.Error("BuildTime should not be empty")
	}
}
