package sdktools

import (
	"path/filepath"
	"regexp"

	"github.com/hashicorp/go-version"
	"golang.org/x/exp/slices"
)

// sdkVersionRegex matches the versioned bin directories, eg: 10.0.22621.0
var sdkVersionRegex = regexp.MustCompile(`^\d+\.\d+\.\d+\.\d+$`)

type versionedDir struct {
	path    string
	name    string
	version *version.Version
}

// newVersionedDir returns false for entries that aren't a parseable
// SDK version, including ones whose parts overflow.
func newVersionedDir(parent, name string) (versionedDir, bool) {
	if !sdkVersionRegex.MatchString(name) {
		return versionedDir{}, false
	}

	v, err := version.NewVersion(name)
	if err != nil {
		return versionedDir{}, false
	}

	return versionedDir{
		path:    filepath.Join(parent, name),
		name:    name,
		version: v,
	}, true
}

// sortNewestFirst orders by descending version. Equal versions
// (eg: 10.0.1.0 and 010.0.1.0) fall back to descending name, so the
// pick doesn't depend on directory read order.
func sortNewestFirst(dirs []versionedDir) {
	slices.SortStableFunc(dirs, func(a, b versionedDir) bool {
		if c := a.version.Compare(b.version); c != 0 {
			return c > 0
		}
		return a.name > b.name
	})
}
