//go:build !windows

package sdktools

func knownProgramFilesDirs() []string {
	return nil
}
