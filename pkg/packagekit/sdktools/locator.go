package sdktools

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	MakeAppx = "makeappx.exe"
	SignTool = "signtool.exe"
	MakePri  = "makepri.exe"
)

// programFilesVars are checked in order. 64bit first.
var programFilesVars = []string{
	"ProgramFiles",
	"ProgramFiles(x86)",
}

var kitSubpaths = []string{
	filepath.Join("Windows Kits", "10"),
	filepath.Join("Windows Kits", "8.1"),
}

// NotFoundError is returned by Require when a tool cannot be located.
type NotFoundError struct {
	Tool string
	Arch string
	Root string
}

func (e *NotFoundError) Error() string {
	where := "no Windows SDK installation was found"
	if e.Root != "" {
		where = fmt.Sprintf("not present under %s", e.Root)
	}

	return fmt.Sprintf(
		"could not find %s for %s: %s. "+
			"Install the Windows 10 SDK (or newer) from https://developer.microsoft.com/windows/downloads/windows-sdk/ "+
			"making sure the \"Windows SDK for Desktop C++ x86/amd64 Apps\" feature is selected, "+
			"or point at an existing installation with the sdk root setting",
		e.Tool, e.Arch, where,
	)
}

type Locator struct {
	root         string
	lookupEnv    func(string) (string, bool)
	knownFolders func() []string
}

type Opt func(*Locator)

// WithRoot skips discovery and uses the given Windows Kits directory.
func WithRoot(root string) Opt {
	return func(l *Locator) {
		l.root = root
	}
}

func WithLookupEnv(fn func(string) (string, bool)) Opt {
	return func(l *Locator) {
		l.lookupEnv = fn
	}
}

// WithKnownFolders replaces the operating system's idea of where
// Program Files is. It's consulted after the environment.
func WithKnownFolders(fn func() []string) Opt {
	return func(l *Locator) {
		l.knownFolders = fn
	}
}

func New(opts ...Opt) *Locator {
	l := &Locator{
		lookupEnv:    os.LookupEnv,
		knownFolders: knownProgramFilesDirs,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Root returns the Windows Kits installation directory, and whether
// one was found.
func (l *Locator) Root() (string, bool) {
	if l.root != "" {
		return l.root, isDir(l.root)
	}

	var bases []string
	for _, envVar := range programFilesVars {
		if base, ok := l.lookupEnv(envVar); ok && base != "" {
			bases = append(bases, base)
		}
	}
	if l.knownFolders != nil {
		bases = append(bases, l.knownFolders()...)
	}

	for _, base := range bases {
		for _, sub := range kitSubpaths {
			candidate := filepath.Join(base, sub)
			if isDir(candidate) {
				return candidate, true
			}
		}
	}

	return "", false
}

// Find returns the absolute path of toolName for the given
// architecture. A missing tool is reported through the boolean, never
// as an error.
func (l *Locator) Find(toolName, arch string) (string, bool) {
	root, ok := l.Root()
	if !ok {
		return "", false
	}

	binDir := filepath.Join(root, "bin")

	// Some installs put the tools at the bin root
	direct := filepath.Join(binDir, arch, toolName)
	if isFile(direct) {
		return absPath(direct), true
	}

	entries, err := os.ReadDir(binDir)
	if err != nil {
		return "", false
	}

	var dirs []versionedDir
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if d, ok := newVersionedDir(binDir, e.Name()); ok {
			dirs = append(dirs, d)
		}
	}

	sortNewestFirst(dirs)

	for _, d := range dirs {
		candidate := filepath.Join(d.path, arch, toolName)
		if isFile(candidate) {
			return absPath(candidate), true
		}
	}

	return "", false
}

// Require is Find, but a miss is returned as a *NotFoundError.
func (l *Locator) Require(toolName, arch string) (string, error) {
	if p, ok := l.Find(toolName, arch); ok {
		return p, nil
	}

	root, _ := l.Root()
	return "", &NotFoundError{Tool: toolName, Arch: arch, Root: root}
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
