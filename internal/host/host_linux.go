//go:build linux

// Package host performs machine-level power actions on behalf of remote
// operators. These are last-resort recovery tools for a unit with no
// local console.
package host

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Reboot syncs filesystems and restarts the machine. On success it does
// not return.
func Reboot() error {
	unix.Sync()
	if err := unix.Reboot(unix.LINUX_REBOOT_CMD_RESTART); err != nil {
		return fmt.Errorf("reboot: %w", err)
	}
	return nil
}

// Shutdown syncs filesystems and powers the machine off. On success it
// does not return.
func Shutdown() error {
	unix.Sync()
	if err := unix.Reboot(unix.LINUX_REBOOT_CMD_POWER_OFF); err != nil {
		return fmt.Errorf("power off: %w", err)
	}
	return nil
}
