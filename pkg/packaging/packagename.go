package packaging

import (
	"os"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// PackageNameProvider supplies the name a run's directories and output
// file are derived from. Providers return false when they have no
// opinion.
type PackageNameProvider interface {
	ResolvePackageName() (string, bool)
}

// StaticName is an explicitly configured name.
type StaticName string

func (s StaticName) ResolvePackageName() (string, bool) {
	name := sanitizeName(string(s))
	return name, name != ""
}

// MetadataName follows the naming convention. The metadata's
// package_name wins, otherwise the display name is used.
type MetadataName struct {
	Metadata *Metadata
}

func (m MetadataName) ResolvePackageName() (string, bool) {
	if m.Metadata == nil {
		return "", false
	}

	for _, candidate := range []string{m.Metadata.PackageName, m.Metadata.DisplayName} {
		if name := sanitizeName(candidate); name != "" {
			return name, true
		}
	}

	return "", false
}

// DirectoryScan looks in a build output directory. If it holds exactly
// one app directory, that's the name. Hidden directories are ignored.
type DirectoryScan struct {
	Dir string
}

func (d DirectoryScan) ResolvePackageName() (string, bool) {
	if d.Dir == "" {
		return "", false
	}

	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return "", false
	}

	var found []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		found = append(found, e.Name())
	}

	if len(found) != 1 {
		return "", false
	}

	name := sanitizeName(found[0])
	return name, name != ""
}

// FirstOf asks each provider in turn.
type FirstOf []PackageNameProvider

func (f FirstOf) ResolvePackageName() (string, bool) {
	for _, p := range f {
		if p == nil {
			continue
		}
		if name, ok := p.ResolvePackageName(); ok {
			return name, true
		}
	}
	return "", false
}

var unsafeNameChars = regexp.MustCompile(`[^a-z0-9._-]+`)

// sanitizeName makes a name safe to use as a path component. Accents
// are folded, it's lower cased, and runs of anything else become "-".
func sanitizeName(name string) string {
	foldAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(foldAccents, name); err == nil {
		name = folded
	}

	name = strings.ToLower(strings.TrimSpace(name))
	name = unsafeNameChars.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-.")
	return name
}
