package packagekit

import (
	"os"

	"github.com/pkg/errors"
)

// IsDirectory returns an error unless d exists and is a directory.
func IsDirectory(d string) error {
	dStat, err := os.Stat(d)

	if os.IsNotExist(err) {
		return errors.Wrapf(err, "directory not found: %s", d)
	}

	if err != nil {
		return errors.Wrapf(err, "stat %s", d)
	}

	if !dStat.IsDir() {
		return errors.Errorf("%s isn't a directory", d)
	}

	return nil
}
