// Provides platform-appropriate paths for cpbuild.
//
// User-level paths follow XDG conventions on Linux and platform-native
// conventions on macOS and Windows. Project-level defaults (the staged build
// directory, the project file name) are relative to the working directory.
package paths
