// Package buildinfo carries the version stamped into binaries at link time.
package buildinfo

import (
	"fmt"
	"io"
)

const unknown = "N/A"

// Info describes one build. Empty fields render as N/A.
type Info struct {
	Version string
	Date    string
	Commit  string
}

// New returns Info with blanks replaced by N/A.
func New(version, date, commit string) Info {
	return Info{Version: orNA(version), Date: orNA(date), Commit: orNA(commit)}
}

func orNA(v string) string {
	if v == "" {
		return unknown
	}
	return v
}

// Print writes the three build lines to w.
func (i Info) Print(w io.Writer) {
	fmt.Fprintf(w, "Build version: %s\n", i.Version)
	fmt.Fprintf(w, "Build date: %s\n", i.Date)
	fmt.Fprintf(w, "Build commit: %s\n", i.Commit)
}

func (i Info) String() string {
	return fmt.Sprintf("%s (%s, %s)", i.Version, i.Commit, i.Date)
}
