package catalog

import (
	"fmt"
	"runtime"
	"strings"
)

// NormalizeOS maps the many spellings of an operating system to the names
// used as keys of package_targets: linux, mac or win.
func NormalizeOS(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "linux", "linux2":
		return "linux", nil
	case "mac", "darwin", "osx", "macos":
		return "mac", nil
	case "win", "windows", "win32", "cygwin":
		return "win", nil
	default:
		return "", fmt.Errorf("unrecognized platform: %s", name)
	}
}

// NormalizeArch maps an architecture spelling to x86-32, x86-64, arm or
// mips32.
func NormalizeArch(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "x86-32", "x86_32", "x86", "x32", "386", "i386", "i686", "ia32", "32":
		return "x86-32", nil
	case "x86-64", "x86_64", "amd64", "x64", "64":
		return "x86-64", nil
	case "arm", "arm64", "aarch64", "armv7l", "armv7", "armv6l":
		return "arm", nil
	case "mips32", "mips", "mipsel", "mipsle":
		return "mips32", nil
	default:
		return "", fmt.Errorf("unrecognized arch: %s", name)
	}
}

// HostOS returns the normalized name of the running operating system.
func HostOS() string {
	if name, err := NormalizeOS(runtime.GOOS); err == nil {
		return name
	}
	return runtime.GOOS
}

// HostArch returns the normalized name of the running architecture.
func HostArch() string {
	if arch, err := NormalizeArch(runtime.GOARCH); err == nil {
		return arch
	}
	return runtime.GOARCH
}
