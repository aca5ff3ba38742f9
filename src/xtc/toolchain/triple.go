// Package toolchain holds the data model shared by every xtc component:
// triples, buildable modules, their repositories, and the immutable
// configuration of one invocation.
package toolchain

import (
	"strings"

	xerrors "github.com/bitswalk/xtc/src/common/errors"
)

// Triple identifies a (machine, vendor, OS/ABI) combination
type Triple string

const (
	// TripleLinux is the Linux-native triple and the fixed build machine
	TripleLinux Triple = "x86_64-linux-gnu"
	// TripleWindows is the mingw-w64 Windows triple
	TripleWindows Triple = "x86_64-w64-mingw32"
)

// SupportedTriples lists the host/target values accepted on the command line
var SupportedTriples = []Triple{TripleLinux, TripleWindows}

// ParseTriple validates s against the supported triples
func ParseTriple(s string) (Triple, error) {
	t := Triple(strings.TrimSpace(s))
	for _, supported := range SupportedTriples {
		if t == supported {
			return t, nil
		}
	}
	return "", xerrors.ErrInvalidTriple.WithMessagef("unsupported triple %q (expected one of %s)", s, SupportedTripleNames())
}

// SupportedTripleNames returns the supported triples as a comma-separated list
func SupportedTripleNames() string {
	names := make([]string, len(SupportedTriples))
	for i, t := range SupportedTriples {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// String implements fmt.Stringer
func (t Triple) String() string {
	return string(t)
}

// IsLinux reports whether t is the Linux-native triple
func (t Triple) IsLinux() bool {
	return t == TripleLinux
}

// IsWindows reports whether t is the mingw-w64 triple
func (t Triple) IsWindows() bool {
	return t == TripleWindows
}

// ToolPrefix returns the prefix of cross tools targeting t, e.g.
// "x86_64-w64-mingw32-" for x86_64-w64-mingw32-gcc
func (t Triple) ToolPrefix() string {
	return string(t) + "-"
}
