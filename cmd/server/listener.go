package server

import (
	"net"
	"os"
	"path/filepath"
	"runtime"

	"pkgsync/internal/logger"
)

// ListenAddr is one network/address pair passed to net.Listen.
type ListenAddr struct {
	Network string
	Address string
}

/**
 * Report whether unix sockets can be used for the mirror
 * @returns {bool} Always true off Windows; on Windows a probe socket is created
 */
func IsUnixSocketSupported() bool {
	if runtime.GOOS != "windows" {
		return true
	}
	// Windows 10 之前的版本不支持AF_UNIX
	probe := filepath.Join(os.TempDir(), "pkgsync_probe.sock")
	_ = os.Remove(probe)
	l, err := net.Listen("unix", probe)
	if err != nil {
		return false
	}
	l.Close()
	_ = os.Remove(probe)
	return true
}

/**
 * Create the listeners of the blob mirror
 * @param {[]ListenAddr} addrs - tcp and unix addresses to listen on
 * @returns {[]net.Listener} Array of created listeners
 * @returns {error} Last error seen, listeners may still be non-empty
 * @description
 * - A stale unix socket file is removed before listening
 * - The parent directory of a unix socket is created when missing
 * - Addresses that fail are logged and skipped, the last error is returned
 */
func CreateListeners(addrs []ListenAddr) ([]net.Listener, error) {
	var listeners []net.Listener

	var lastErr error
	for _, addr := range addrs {
		if addr.Network == "unix" {
			if err := os.MkdirAll(filepath.Dir(addr.Address), 0755); err != nil {
				logger.Errorf("Failed to create socket directory: %v", err)
				lastErr = err
				continue
			}
			if err := os.Remove(addr.Address); err != nil && !os.IsNotExist(err) {
				logger.Errorf("Failed to remove existing socket file: %v", err)
				continue
			}
		}
		listener, err := net.Listen(addr.Network, addr.Address)
		if err != nil {
			logger.Errorf("Failed to create listener on %s://%s: %v", addr.Network, addr.Address, err)
			lastErr = err
			continue
		}
		listeners = append(listeners, listener)
	}
	return listeners, lastErr
}
