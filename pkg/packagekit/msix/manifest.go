package msix

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/kolide/msixkit/pkg/packagekit/internal"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Placeholder names understood by the manifest template, as
// {{name}}.
const (
	KeyIdentityName                       = "identityName"
	KeyPublisher                          = "publisher"
	KeyVersion                            = "version"
	KeyProcessorArchitecture              = "processorArchitecture"
	KeyDisplayName                        = "displayName"
	KeyPublisherDisplayName               = "publisherDisplayName"
	KeyDescription                        = "description"
	KeyBackgroundColor                    = "backgroundColor"
	KeyAppExecutable                      = "appExecutable"
	KeyAppID                              = "appId"
	KeyTargetDeviceFamilyName             = "targetDeviceFamilyName"
	KeyTargetDeviceFamilyMinVersion       = "targetDeviceFamilyMinVersion"
	KeyTargetDeviceFamilyMaxVersionTested = "targetDeviceFamilyMaxVersionTested"
)

// ManifestContext maps placeholder names to their values.
type ManifestContext map[string]string

// ManifestFields is the metadata that goes into AppxManifest.xml.
type ManifestFields struct {
	IdentityName                       string
	Publisher                          string
	Version                            string
	ProcessorArchitecture              string
	DisplayName                        string
	PublisherDisplayName               string
	Description                        string
	BackgroundColor                    string
	AppExecutable                      string
	AppID                              string
	TargetDeviceFamilyName             string
	TargetDeviceFamilyMinVersion       string
	TargetDeviceFamilyMaxVersionTested string
}

var (
	identityNameRegex    = regexp.MustCompile(`^[A-Za-z0-9.\-]{3,50}$`)
	backgroundColorRegex = regexp.MustCompile(`^(transparent|#[0-9a-fA-F]{6}|[a-zA-Z]+)$`)
	appIDRegex           = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9.]{0,63}$`)

	knownArchitectures = map[string]bool{
		"x86":     true,
		"x64":     true,
		"arm":     true,
		"arm64":   true,
		"neutral": true,
	}
)

// Context returns the template values. They are XML escaped, since
// every placeholder lands in XML text or an attribute.
func (f ManifestFields) Context() ManifestContext {
	raw := map[string]string{
		KeyIdentityName:                       f.IdentityName,
		KeyPublisher:                          f.Publisher,
		KeyVersion:                            f.Version,
		KeyProcessorArchitecture:              f.ProcessorArchitecture,
		KeyDisplayName:                        f.DisplayName,
		KeyPublisherDisplayName:               f.PublisherDisplayName,
		KeyDescription:                        f.Description,
		KeyBackgroundColor:                    f.BackgroundColor,
		KeyAppExecutable:                      f.AppExecutable,
		KeyAppID:                              f.AppID,
		KeyTargetDeviceFamilyName:             f.TargetDeviceFamilyName,
		KeyTargetDeviceFamilyMinVersion:       f.TargetDeviceFamilyMinVersion,
		KeyTargetDeviceFamilyMaxVersionTested: f.TargetDeviceFamilyMaxVersionTested,
	}

	mc := make(ManifestContext, len(raw))
	for k, v := range raw {
		var buf bytes.Buffer
		// EscapeText only fails on writer errors, and bytes.Buffer has none
		_ = xml.EscapeText(&buf, []byte(v))
		mc[k] = buf.String()
	}
	return mc
}

// Validate checks the fields against what the msix schema will accept.
func (f ManifestFields) Validate() error {
	var problems []string

	for k, v := range map[string]string{
		KeyIdentityName:                       f.IdentityName,
		KeyPublisher:                          f.Publisher,
		KeyVersion:                            f.Version,
		KeyProcessorArchitecture:              f.ProcessorArchitecture,
		KeyDisplayName:                        f.DisplayName,
		KeyPublisherDisplayName:               f.PublisherDisplayName,
		KeyDescription:                        f.Description,
		KeyBackgroundColor:                    f.BackgroundColor,
		KeyAppExecutable:                      f.AppExecutable,
		KeyAppID:                              f.AppID,
		KeyTargetDeviceFamilyName:             f.TargetDeviceFamilyName,
		KeyTargetDeviceFamilyMinVersion:       f.TargetDeviceFamilyMinVersion,
		KeyTargetDeviceFamilyMaxVersionTested: f.TargetDeviceFamilyMaxVersionTested,
	} {
		if strings.TrimSpace(v) == "" {
			problems = append(problems, fmt.Sprintf("%s is required", k))
		}
	}

	if f.IdentityName != "" && !identityNameRegex.MatchString(f.IdentityName) {
		problems = append(problems, fmt.Sprintf("identityName %q must be 3-50 letters, digits, periods or dashes", f.IdentityName))
	}

	if f.Publisher != "" && !strings.HasPrefix(f.Publisher, "CN=") {
		problems = append(problems, fmt.Sprintf("publisher %q must be a distinguished name starting with CN=", f.Publisher))
	}

	for k, v := range map[string]string{
		KeyVersion:                            f.Version,
		KeyTargetDeviceFamilyMinVersion:       f.TargetDeviceFamilyMinVersion,
		KeyTargetDeviceFamilyMaxVersionTested: f.TargetDeviceFamilyMaxVersionTested,
	} {
		if v != "" && !IsPackageVersion(v) {
			problems = append(problems, fmt.Sprintf("%s %q must look like W.X.Y.Z, each part at most 65535", k, v))
		}
	}

	if f.ProcessorArchitecture != "" && !knownArchitectures[f.ProcessorArchitecture] {
		problems = append(problems, fmt.Sprintf("processorArchitecture %q must be one of x86, x64, arm, arm64, neutral", f.ProcessorArchitecture))
	}

	if f.BackgroundColor != "" && !backgroundColorRegex.MatchString(f.BackgroundColor) {
		problems = append(problems, fmt.Sprintf("backgroundColor %q must be transparent, a color name, or #RRGGBB", f.BackgroundColor))
	}

	if f.AppID != "" && !appIDRegex.MatchString(f.AppID) {
		problems = append(problems, fmt.Sprintf("appId %q must start with a letter, and contain only letters, digits and periods", f.AppID))
	}

	if f.AppExecutable != "" && !strings.EqualFold(filepath.Ext(f.AppExecutable), ".exe") {
		problems = append(problems, fmt.Sprintf("appExecutable %q must be an .exe", f.AppExecutable))
	}

	if len(problems) == 0 {
		return nil
	}

	slices.Sort(problems)
	return errors.Errorf("invalid manifest metadata: %s", strings.Join(problems, "; "))
}

// IsPackageVersion reports whether v is a four part msix version.
func IsPackageVersion(v string) bool {
	parts := strings.Split(v, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil || n > 65535 {
			return false
		}
	}
	return true
}

// LoadTemplate reads a user supplied manifest template. An empty path
// selects the bundled default.
//
// A user template must keep the icon paths under VisualAssets and the
// en-us resource language, since the icon and resource steps write
// exactly those.
func LoadTemplate(path string) (string, error) {
	if path == "" {
		data, err := internal.AppxManifestTemplate()
		if err != nil {
			return "", errors.Wrap(err, "loading default manifest template")
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "reading manifest template %s", path)
	}
	return string(data), nil
}

// RenderManifest replaces every {{name}} in tmpl with its value from
// mc. Tokens with no value in mc are left as they are.
func RenderManifest(tmpl string, mc ManifestContext) string {
	keys := maps.Keys(mc)
	slices.Sort(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{{"+k+"}}", mc[k])
	}

	return strings.NewReplacer(pairs...).Replace(tmpl)
}
