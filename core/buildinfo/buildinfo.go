// Package buildinfo carries version metadata stamped at link time:
//
//	-X 'github.com/m3rciful/consultbot/core/buildinfo.Version=v1.2.3'
//	-X 'github.com/m3rciful/consultbot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/consultbot/core/buildinfo.Date=2026-10-17T12:00:00Z'
package buildinfo

import "fmt"

var (
	Version = "dev"
	Commit  = "local"
	// Date is the build time in RFC3339, empty for local builds.
	Date = ""
)

// String renders "consultbot dev (local)" with the build date when known.
func String(name string) string {
	s := fmt.Sprintf("%s %s (%s)", name, Version, Commit)
	if Date != "" {
		s += " built " + Date
	}
	return s
}
