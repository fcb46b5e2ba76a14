package internal

import (
	"embed"

	"github.com/pkg/errors"
)

//go:embed assets
var assets embed.FS

// AppxManifestTemplate returns the default manifest template. Its icon
// paths and resource language must stay in sync with the icon stager
// and the resource indexer.
func AppxManifestTemplate() ([]byte, error) {
	data, err := assets.ReadFile("assets/AppxManifest.xml")
	if err != nil {
		return nil, errors.Wrap(err, "getting embedded AppxManifest.xml")
	}
	return data, nil
}
