//go:build !linux

package host

import "errors"

var errNotLinux = errors.New("host power control requires linux")

// Reboot is unavailable off-target.
func Reboot() error { return errNotLinux }

// Shutdown is unavailable off-target.
func Shutdown() error { return errNotLinux }
