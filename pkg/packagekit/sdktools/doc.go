/*
Package sdktools finds the Windows SDK binaries used to build msix
packages. There is no registry or package manager lookup. Instead, we
walk the well known install locations of the Windows Kits.

An SDK install looks roughly like:

	C:\Program Files (x86)\Windows Kits\10\bin\x64\makeappx.exe
	C:\Program Files (x86)\Windows Kits\10\bin\10.0.19041.0\x64\makeappx.exe
	C:\Program Files (x86)\Windows Kits\10\bin\10.0.22621.0\x64\makeappx.exe

A version-less binary directly under bin wins. Otherwise the newest
versioned directory holding the tool is used.
*/
package sdktools
