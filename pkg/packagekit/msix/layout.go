package msix

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const (
	ManifestFileName   = "AppxManifest.xml"
	ResourcesDirName   = "VisualAssets"
	PriFileName        = "resources.pri"
	priConfigFileName  = "priconfig.xml"
	PackageExtension   = ".msix"
	ResourceLanguage   = "en-us"
	stagedAppDirName   = "app"
	credentialsDirName = "tmp"
)

// Layout is the set of paths one packaging run reads and writes. It is
// derived once, from the package name, and not modified after.
type Layout struct {
	PackageName        string
	SourceDirectory    string // the prebuilt application
	AppDirectory       string // staged copy, this is what gets packed
	ResourcesDirectory string
	ManifestFile       string
	PriConfigFile      string
	PriFile            string
	OutputPackageFile  string
	TempDirectory      string
}

func NewLayout(packageName, sourceDir, buildDir, outputDir string) Layout {
	base := filepath.Join(buildDir, packageName)
	appDir := filepath.Join(base, stagedAppDirName)

	return Layout{
		PackageName:        packageName,
		SourceDirectory:    sourceDir,
		AppDirectory:       appDir,
		ResourcesDirectory: filepath.Join(appDir, ResourcesDirName),
		ManifestFile:       filepath.Join(appDir, ManifestFileName),
		PriConfigFile:      filepath.Join(base, priConfigFileName),
		PriFile:            filepath.Join(appDir, PriFileName),
		OutputPackageFile:  filepath.Join(outputDir, packageName+PackageExtension),
		TempDirectory:      filepath.Join(base, credentialsDirName),
	}
}

// Validate rejects layouts whose staging directories and source
// overlap. Staging wipes AppDirectory, and copies the source into it,
// so nesting either way would delete or recursively copy the app.
func (l Layout) Validate() error {
	staged := []string{l.AppDirectory, l.TempDirectory}
	for _, dir := range staged {
		if isWithin(l.SourceDirectory, dir) || isWithin(dir, l.SourceDirectory) {
			return errors.Errorf("build directory %s overlaps source directory %s", dir, l.SourceDirectory)
		}
	}
	return nil
}

// isWithin reports whether child is parent, or somewhere below it.
func isWithin(parent, child string) bool {
	p, err := filepath.Abs(parent)
	if err != nil {
		return false
	}
	c, err := filepath.Abs(child)
	if err != nil {
		return false
	}

	rel, err := filepath.Rel(p, c)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
