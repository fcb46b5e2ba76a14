//go:build windows

package sdktools

import "golang.org/x/sys/windows"

// knownProgramFilesDirs asks the shell where Program Files is. Service
// accounts, and some CI runners, don't have the environment variables.
func knownProgramFilesDirs() []string {
	var dirs []string
	for _, id := range []*windows.KNOWNFOLDERID{windows.FOLDERID_ProgramFiles, windows.FOLDERID_ProgramFilesX86} {
		if dir, err := windows.KnownFolderPath(id, windows.KF_FLAG_DEFAULT); err == nil && dir != "" {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}
