package packaging

import (
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Arch is a windows processor architecture, as the manifest and the
// SDK bin directories name them.
type Arch string

const (
	X64     Arch = "x64"
	X86     Arch = "x86"
	Arm64   Arch = "arm64"
	Arm     Arch = "arm"
	Neutral Arch = "neutral"
)

// goArchs maps GOARCH values onto windows names. Windows names map to
// themselves, so either may be given.
var goArchs = map[string]Arch{
	"amd64": X64,
	"386":   X86,
	"arm64": Arm64,
	"arm":   Arm,

	string(X64):     X64,
	string(X86):     X86,
	string(Neutral): Neutral,
}

// ArchFromString parses either a GOARCH or a windows architecture name.
func ArchFromString(s string) (Arch, error) {
	if arch, ok := goArchs[strings.ToLower(strings.TrimSpace(s))]; ok {
		return arch, nil
	}
	return "", errors.Errorf("unknown architecture %q, expected one of %s", s, strings.Join(KnownArchs(), ", "))
}

// KnownArchs lists the accepted architecture names.
func KnownArchs() []string {
	names := maps.Keys(goArchs)
	slices.Sort(names)
	return names
}

// HostToolArch is the SDK tool architecture to run on this machine.
// The SDK ships no 32 bit arm tools, and x86 tools run everywhere
// else.
func HostToolArch() Arch {
	switch runtime.GOARCH {
	case "amd64":
		return X64
	case "arm64":
		return Arm64
	default:
		return X86
	}
}

func (a Arch) String() string {
	return string(a)
}
