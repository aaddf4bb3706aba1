package gatt

import (
	"context"
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/srg/bluegatt/internal/bus"
	"github.com/srg/bluegatt/internal/topology"
)

// Failure taxonomy. Every operation returns one of these sentinels
// (possibly wrapped) or nil.
var (
	// ErrNotFound means the identifier never existed or has been
	// invalidated by a removal.
	ErrNotFound = errors.New("not found")
	// ErrNotReady means the owning device is not connected or GATT
	// resolution has not completed.
	ErrNotReady = errors.New("not ready")
	// ErrNotConnected means the device dropped before or during the
	// operation.
	ErrNotConnected = errors.New("not connected")
	// ErrNotSupported means the characteristic lacks the requested
	// capability flag.
	ErrNotSupported = errors.New("operation not supported")
	// ErrTimeout means the deadline elapsed before the daemon replied.
	ErrTimeout = errors.New("operation timed out")
	// ErrDaemon wraps a daemon failure that has no dedicated mapping.
	ErrDaemon = errors.New("daemon error")
	// ErrTransport means the bus connection is gone; the session is dead.
	ErrTransport = errors.New("transport failure")
	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("session closed")
	// ErrNoAdapters means the system has no Bluetooth adapters.
	ErrNoAdapters = errors.New("no Bluetooth adapters found")
)

// DaemonError carries the daemon's own error name and message for
// failures outside the taxonomy. It matches ErrDaemon under errors.Is.
type DaemonError struct {
	Name    string
	Message string
}

func (e *DaemonError) Error() string {
	if e.Message == "" {
		return e.Name
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

func (e *DaemonError) Unwrap() error { return ErrDaemon }

// mapDaemonError translates a failed daemon call into the taxonomy.
func mapDaemonError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, bus.ErrClosed) {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}

	var dbusErr dbus.Error
	if errors.As(err, &dbusErr) {
		switch dbusErr.Name {
		case bus.ErrNameNotConnected:
			return ErrNotConnected
		case bus.ErrNameNotSupported:
			return ErrNotSupported
		case bus.ErrNameNotReady:
			return ErrNotReady
		}
		msg := ""
		if len(dbusErr.Body) > 0 {
			if s, ok := dbusErr.Body[0].(string); ok {
				msg = s
			}
		}
		return &DaemonError{Name: dbusErr.Name, Message: msg}
	}

	return fmt.Errorf("%w: %v", ErrTransport, err)
}

// mapCacheError translates topology-cache failures into the taxonomy.
func mapCacheError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, topology.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, topology.ErrNotReady):
		return ErrNotReady
	case errors.Is(err, topology.ErrDisconnected):
		return ErrNotConnected
	default:
		return err
	}
}
