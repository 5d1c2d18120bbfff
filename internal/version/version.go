// Package version compares client and server release strings of the form
// "MAJOR.MINOR.PATCH[-suffix]".
package version

import (
	"regexp"
	"strconv"
)

var leading = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)`)

// Version is a parsed three-component release number.
type Version struct {
	Major, Minor, Patch int
}

// Parse extracts the leading numeric triple of s. Suffixes are ignored.
func Parse(s string) (Version, bool) {
	m := leading.FindStringSubmatch(s)
	if m == nil {
		return Version{}, false
	}
	var v Version
	var err error
	if v.Major, err = strconv.Atoi(m[1]); err != nil {
		return Version{}, false
	}
	if v.Minor, err = strconv.Atoi(m[2]); err != nil {
		return Version{}, false
	}
	if v.Patch, err = strconv.Atoi(m[3]); err != nil {
		return Version{}, false
	}
	return v, true
}

// Less reports whether v is an earlier release than o.
func (v Version) Less(o Version) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	if v.Minor != o.Minor {
		return v.Minor < o.Minor
	}
	return v.Patch < o.Patch
}

// Outdated reports whether client is older than server. Unparseable strings
// are never reported as outdated.
func Outdated(client, server string) bool {
	c, ok := Parse(client)
	if !ok {
		return false
	}
	s, ok := Parse(server)
	if !ok {
		return false
	}
	return c.Less(s)
}
