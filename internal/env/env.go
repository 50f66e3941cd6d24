package env

import (
	"os"
	"path/filepath"
)

// Version is stamped by the version command's build variables.
var Version = "dev"

// (default: %USERPROFILE%/.pkgsync on Windows, $HOME/.pkgsync on Linux)
var PkgsyncDir string = GetPkgsyncDir()

/**
 * Get pkgsync directory path
 * @returns {string} Returns pkgsync directory path, "" when the home directory is unknown
 */
func GetPkgsyncDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".pkgsync")
}
