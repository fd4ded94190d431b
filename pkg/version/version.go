// Package version handles firmware version strings and their packed
// 32-bit form reported by the token runner.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Current is the firmware version reported by the simulator.
const Current = "1.0.0"

// Field limits of the packed form: 10 bits major, 16 bits minor, 6 bits patch.
const (
	MaxMajor = 1<<10 - 1
	MaxMinor = 1<<16 - 1
	MaxPatch = 1<<6 - 1
)

// Version is a parsed "major.minor.patch" firmware version.
type Version struct {
	Major uint16
	Minor uint16
	Patch uint8
}

// Parse parses a "major.minor.patch" version string.
func Parse(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("invalid version %q: expected major.minor.patch", s)
	}

	fields := [3]uint64{}
	limits := [3]uint64{MaxMajor, MaxMinor, MaxPatch}
	names := [3]string{"major", "minor", "patch"}
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil || p == "" || n > limits[i] {
			return Version{}, fmt.Errorf("invalid version %q: bad %s component", s, names[i])
		}
		fields[i] = n
	}

	return Version{Major: uint16(fields[0]), Minor: uint16(fields[1]), Patch: uint8(fields[2])}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Decode unpacks the 32-bit form.
func Decode(packed uint32) Version {
	return Version{
		Major: uint16(packed >> 22),
		Minor: uint16(packed >> 6),
		Patch: uint8(packed & MaxPatch),
	}
}

// Encode packs v into 32 bits. Components above their limits are truncated.
func (v Version) Encode() uint32 {
	return uint32(v.Major&MaxMajor)<<22 | uint32(v.Minor)<<6 | uint32(v.Patch&MaxPatch)
}

// String returns the version as "major.minor.patch".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compatible returns true if the other version has the same major version.
func (v Version) Compatible(other Version) bool {
	return v.Major == other.Major
}

// Less reports whether v is older than other.
func (v Version) Less(other Version) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}
	if v.Minor != other.Minor {
		return v.Minor < other.Minor
	}
	return v.Patch < other.Patch
}
