package packaging

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/kolide/msixkit/pkg/packagekit/msix"
	"github.com/pkg/errors"
)

const (
	defaultDeviceFamily           = "Windows.Desktop"
	defaultDeviceFamilyMinVersion = "10.0.17763.0"
	defaultDeviceFamilyMaxTested  = "10.0.22621.0"
	defaultBackgroundColor        = "transparent"
	defaultAppID                  = "App"
)

// Metadata describes the app being packaged. It's usually read from a
// yaml file kept next to the app's build.
type Metadata struct {
	// PackageName names the build directories and the output file. When
	// empty, it's derived from the display name.
	PackageName string `json:"package_name,omitempty"`

	IdentityName         string `json:"identity_name"`
	Publisher            string `json:"publisher"`
	PublisherDisplayName string `json:"publisher_display_name"`
	DisplayName          string `json:"display_name"`
	Description          string `json:"description,omitempty"`

	// Version may be semver, it is reformatted for windows. When empty,
	// it's detected by running the executable.
	Version string `json:"version,omitempty"`

	// Executable is relative to the app directory.
	Executable      string `json:"executable"`
	AppID           string `json:"app_id,omitempty"`
	BackgroundColor string `json:"background_color,omitempty"`

	// Icon is a raster image. A relative path is resolved against the
	// metadata file's directory.
	Icon string `json:"icon,omitempty"`

	DeviceFamily DeviceFamily `json:"device_family"`
}

type DeviceFamily struct {
	Name             string `json:"name,omitempty"`
	MinVersion       string `json:"min_version,omitempty"`
	MaxVersionTested string `json:"max_version_tested,omitempty"`
}

// LoadMetadata reads a metadata file. Yaml and json are both accepted.
func LoadMetadata(path string) (*Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading metadata")
	}

	var md Metadata
	if err := yaml.Unmarshal(raw, &md); err != nil {
		return nil, errors.Wrapf(err, "parsing metadata %s", path)
	}

	if md.Icon != "" && !filepath.IsAbs(md.Icon) {
		md.Icon = filepath.Join(filepath.Dir(path), md.Icon)
	}

	return &md, nil
}

// ManifestFields fills in the manifest for a given architecture. The
// version is formatted, and defaults applied. The result is not
// validated, the pipeline does that.
func (md *Metadata) ManifestFields(arch Arch) (msix.ManifestFields, error) {
	version, err := FormatVersion(md.Version)
	if err != nil {
		return msix.ManifestFields{}, err
	}

	fields := msix.ManifestFields{
		IdentityName:                       md.IdentityName,
		Publisher:                          md.Publisher,
		Version:                            version,
		ProcessorArchitecture:              arch.String(),
		DisplayName:                        md.DisplayName,
		PublisherDisplayName:               md.PublisherDisplayName,
		Description:                        md.Description,
		BackgroundColor:                    md.BackgroundColor,
		AppExecutable:                      windowsPath(md.Executable),
		AppID:                              md.AppID,
		TargetDeviceFamilyName:             md.DeviceFamily.Name,
		TargetDeviceFamilyMinVersion:       md.DeviceFamily.MinVersion,
		TargetDeviceFamilyMaxVersionTested: md.DeviceFamily.MaxVersionTested,
	}

	if fields.Description == "" {
		fields.Description = md.DisplayName
	}
	if fields.BackgroundColor == "" {
		fields.BackgroundColor = defaultBackgroundColor
	}
	if fields.AppID == "" {
		fields.AppID = defaultAppID
	}
	if fields.TargetDeviceFamilyName == "" {
		fields.TargetDeviceFamilyName = defaultDeviceFamily
	}
	if fields.TargetDeviceFamilyMinVersion == "" {
		fields.TargetDeviceFamilyMinVersion = defaultDeviceFamilyMinVersion
	}
	if fields.TargetDeviceFamilyMaxVersionTested == "" {
		fields.TargetDeviceFamilyMaxVersionTested = defaultDeviceFamilyMaxTested
	}

	return fields, nil
}

// windowsPath makes a manifest relative path. Metadata is often
// written on a unix machine.
func windowsPath(p string) string {
	return strings.TrimPrefix(strings.ReplaceAll(p, "/", `\`), `\`)
}
