package main

import (
	"errors"
	"fmt"

	"github.com/srg/bluegatt/pkg/gatt"
)

// FormatUserError turns library failures into actionable one-liners.
// Anything outside the known taxonomy passes through unchanged.
func FormatUserError(err error) string {
	var daemonErr *gatt.DaemonError
	switch {
	case errors.Is(err, gatt.ErrNoAdapters):
		return "no Bluetooth adapters found - is the bluetooth service running?"
	case errors.Is(err, gatt.ErrNotFound):
		return fmt.Sprintf("%s (try scanning first)", err)
	case errors.Is(err, gatt.ErrNotConnected):
		return "device is not connected"
	case errors.Is(err, gatt.ErrTimeout):
		return "operation timed out - device may be out of range or busy"
	case errors.Is(err, gatt.ErrTransport):
		return fmt.Sprintf("lost connection to the Bluetooth daemon: %s", err)
	case errors.As(err, &daemonErr):
		return fmt.Sprintf("daemon refused the operation: %s", daemonErr)
	default:
		return err.Error()
	}
}
