// Package semverx adapts golang.org/x/mod/semver (which operates on
// "v"-prefixed strings) to Hermes's bare "M.m.p" version strings, and adds
// the bump helpers the Python original implements via python-semver's
// bump_major/bump_minor/bump_patch.
package semverx

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/hrygo/hermes/internal/herrors"
)

// Initial is the version assigned to a prompt's first stored version.
const Initial = "1.0.0"

func canonical(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

func bare(v string) string {
	return strings.TrimPrefix(v, "v")
}

// Valid reports whether v parses as "M.m.p".
func Valid(v string) bool {
	return semver.IsValid(canonical(v)) && len(strings.Split(bare(v), ".")) == 3
}

// Compare returns -1, 0, or +1 the way semver.Compare does, operating on
// bare "M.m.p" strings.
func Compare(a, b string) int {
	return semver.Compare(canonical(a), canonical(b))
}

func parseParts(v string) (major, minor, patch int, err error) {
	parts := strings.Split(bare(v), ".")
	if len(parts) != 3 {
		return 0, 0, 0, herrors.Invalidf("version %q is not M.m.p", v)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, convErr := strconv.Atoi(p)
		if convErr != nil {
			return 0, 0, 0, herrors.Invalidf("version %q has non-numeric component %q", v, p)
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2], nil
}

// BumpPatch returns v with its patch component incremented and minor/major
// untouched. This is the only bump the Prompt Store performs automatically;
// major/minor bumps are reserved for explicit caller intent (spec §4.1).
func BumpPatch(v string) (string, error) {
	major, minor, patch, err := parseParts(v)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d.%d.%d", major, minor, patch+1), nil
}

// BumpMinor returns v with minor incremented and patch reset to 0.
func BumpMinor(v string) (string, error) {
	major, minor, _, err := parseParts(v)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d.%d.0", major, minor+1), nil
}

// BumpMajor returns v with major incremented and minor/patch reset to 0.
func BumpMajor(v string) (string, error) {
	major, _, _, err := parseParts(v)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d.0.0", major+1), nil
}

// StrictlyIncreasing reports whether versions is strictly monotonically
// increasing in semver order, the invariant spec.md §8 property 2 requires
// of a prompt's version history.
func StrictlyIncreasing(versions []string) bool {
	for i := 1; i < len(versions); i++ {
		if Compare(versions[i-1], versions[i]) >= 0 {
			return false
		}
	}
	return true
}
