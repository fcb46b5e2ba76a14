package packagekit

import "runtime"

// Platform reports whether the native packaging tools can run here.
type Platform interface {
	IsTargetPlatform() bool
}

// PlatformFunc adapts a function to a Platform.
type PlatformFunc func() bool

func (f PlatformFunc) IsTargetPlatform() bool {
	return f()
}

// HostPlatform is the running host. The msix tools only exist on windows.
type HostPlatform struct{}

func (HostPlatform) IsTargetPlatform() bool {
	return runtime.GOOS == "windows"
}
