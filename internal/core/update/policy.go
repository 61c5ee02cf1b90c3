// Package update detects image updates by comparing locally-known digests
// against what the registry currently serves for the resolved tag family,
// and runs the process-wide cancellable bulk scan.
package update

import (
	"fmt"
	"regexp"
)

// Policy selects the tag family an image is allowed to float within.
type Policy string

const (
	// PolicyDisabled compares the exact deployed tag only.
	PolicyDisabled Policy = "disabled"
	// PolicyLatest compares against the latest tag.
	PolicyLatest Policy = "latest"
	// PolicyMajor floats within the major version, e.g. 8.2.2 -> 8.
	PolicyMajor Policy = "major"
	// PolicyMinor floats within the minor version, e.g. 8.2.2 -> 8.2.
	PolicyMinor Policy = "minor"
)

// ParsePolicy validates a configured policy string.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyDisabled, PolicyLatest, PolicyMajor, PolicyMinor:
		return p, nil
	default:
		return "", fmt.Errorf("unknown update policy %q", s)
	}
}

// semverishRe matches version-shaped tags: an optional v prefix, one to
// three numeric components, and an arbitrary trailer (e.g. -alpine).
var semverishRe = regexp.MustCompile(`^(v?)(\d+)(?:\.(\d+))?(?:\.(\d+))?((?:-|\.).*)?$`)

// ResolveTag is the pure tag-family resolution: the tag whose digest the
// checker compares against the local one. Tags that do not look like
// versions fall back to the exact tag under every policy except latest, so
// the result is always usable.
func ResolveTag(policy Policy, tag string) string {
	if tag == "" {
		tag = "latest"
	}
	switch policy {
	case PolicyLatest:
		return "latest"
	case PolicyMajor, PolicyMinor:
		m := semverishRe.FindStringSubmatch(tag)
		if m == nil {
			return tag
		}
		prefix, major, minor, trailer := m[1], m[2], m[3], m[5]
		resolved := prefix + major
		if policy == PolicyMinor && minor != "" {
			resolved += "." + minor
		}
		return resolved + trailer
	default:
		return tag
	}
}
