package packaging

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver"
	"github.com/kolide/msixkit/pkg/packagekit/msix"
	"github.com/pkg/errors"
)

// maxVersionPart is the largest value windows accepts in any one
// component of a package version.
const maxVersionPart = 65535

var leadingDigits = regexp.MustCompile(`^(\d+)`)

// FormatVersion formats a version for a windows package, which must
// be W.X.Y.Z. A version already in that form passes through.
// Otherwise it's read as semver, and the build number comes from a
// numeric prerelease, as `git describe` produces. So `v1.2.3-45-gabc`
// becomes 1.2.3.45, and `1.2.3-beta` becomes 1.2.3.0
func FormatVersion(rawVersion string) (string, error) {
	rawVersion = strings.TrimSpace(rawVersion)

	if msix.IsPackageVersion(rawVersion) {
		return rawVersion, nil
	}

	v, err := semver.NewVersion(rawVersion)
	if err != nil {
		return "", errors.Wrapf(err, "version %s did not match expected format", rawVersion)
	}

	build := "0"
	if matches := leadingDigits.FindStringSubmatch(v.Prerelease()); len(matches) == 2 {
		build = matches[1]
	}

	parts := []string{
		strconv.FormatInt(v.Major(), 10),
		strconv.FormatInt(v.Minor(), 10),
		strconv.FormatInt(v.Patch(), 10),
		build,
	}

	if err := checkVersionParts(parts...); err != nil {
		return "", errors.Wrapf(err, "version %s", rawVersion)
	}

	return strings.Join(parts, "."), nil
}

func checkVersionParts(parts ...string) error {
	for _, part := range parts {
		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil || n > maxVersionPart {
			return fmt.Errorf("component %s is larger than %d", part, maxVersionPart)
		}
	}
	return nil
}
