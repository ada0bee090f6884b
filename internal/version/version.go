// Package version declares the format version of the allocator's
// header layout and lets embedding applications assert compatibility with
// it using ordinary semver constraints.
//
// The heap itself is in-memory only and never persists or transmits a
// header across a process boundary, so this is not a wire-compatibility
// check in the usual sense. It exists for the same reason a library's
// SOVERSION does: so a caller that was built against an incompatible
// revision of this package fails fast at startup instead of silently
// misinterpreting block headers it did not author.
package version

import "github.com/Masterminds/semver/v3"

// Format is the current header-layout format version.
const Format = "1.0.0"

var formatVersion = semver.MustParse(Format)

// Satisfies reports whether the current format version meets the given
// semver constraint (e.g. ">= 1.0.0, < 2.0.0"). An empty constraint is
// always satisfied.
func Satisfies(constraint string) (bool, error) {
	if constraint == "" {
		return true, nil
	}

	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, err
	}

	return c.Check(formatVersion), nil
}
