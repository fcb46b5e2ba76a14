/*
Package msix builds msix packages out of a prebuilt application
directory, using the Windows SDK tools.

The basic steps of making a package:
 1. Copy the application into a staging directory
 2. Write the visual assets (icons) the manifest refers to
 3. Render AppxManifest.xml from a template
 4. Use `makepri` to index the package resources
 5. Use `makeappx` to pack the staging directory
 6. Optionally use `signtool` to sign the result

Steps 1 through 3 are plain file operations, and run everywhere. The
remaining steps need the SDK tools, and are skipped, with a log line,
when not running on windows. This keeps cross platform builds working.
*/
package msix
