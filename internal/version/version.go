// Package version carries the build identity injected with -ldflags, e.g.
// -X github.com/nupi-ai/chorus/internal/version.version=0.4.0.
package version

import (
	"runtime/debug"
	"strings"
)

var (
	version = "dev"
	commit  = ""
)

// String returns the build version for the current binary.
func String() string {
	return version
}

// ForTesting overrides the version string and returns a cleanup function
// that restores the original value. Must not be called concurrently.
func ForTesting(v string) func() {
	original := version
	version = v
	return func() { version = original }
}

// Commit returns the VCS revision, preferring the injected value over the
// one the Go toolchain embeds.
func Commit() string {
	if commit != "" {
		return commit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}

// FormatVersion returns a display-friendly version string. For normal versions
// it ensures a "v" prefix (e.g. "0.3.0" → "v0.3.0"). Special values like
// "dev" and empty strings are returned as-is.
func FormatVersion(v string) string {
	if v == "" || v == "dev" {
		return v
	}
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

// Display renders the version with a short commit, as printed by
// `chorusd version`.
func Display() string {
	out := FormatVersion(version)
	if c := Commit(); c != "" {
		if len(c) > 12 {
			c = c[:12]
		}
		out += " (" + c + ")"
	}
	return out
}
