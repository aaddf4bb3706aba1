// Package bus is the boundary to the D-Bus transport. It exposes the BlueZ
// object tree as a stream of topology events plus a request/response call
// surface, so the rest of the library never touches raw signals.
package bus

import (
	"context"

	"github.com/godbus/dbus/v5"
)

// Properties is one interface's property set as delivered by the daemon.
type Properties = map[string]dbus.Variant

// InterfaceSet maps interface names to their properties for one object path.
type InterfaceSet = map[string]Properties

// ObjectMap is the daemon's full object tree, as returned by GetManagedObjects.
type ObjectMap = map[dbus.ObjectPath]InterfaceSet

// Event is a topology-change notification. Exactly one of the concrete
// types below is delivered per event.
type Event interface {
	EventPath() dbus.ObjectPath
}

// ObjectAdded reports a new object (or new interfaces on an existing one).
type ObjectAdded struct {
	Path       dbus.ObjectPath
	Interfaces InterfaceSet
}

// ObjectRemoved reports that the daemon has forgotten an object.
type ObjectRemoved struct {
	Path       dbus.ObjectPath
	Interfaces []string
}

// PropertiesChanged reports a partial property update on a known object.
type PropertiesChanged struct {
	Path        dbus.ObjectPath
	Interface   string
	Changed     Properties
	Invalidated []string
}

func (e ObjectAdded) EventPath() dbus.ObjectPath       { return e.Path }
func (e ObjectRemoved) EventPath() dbus.ObjectPath     { return e.Path }
func (e PropertiesChanged) EventPath() dbus.ObjectPath { return e.Path }

// Bus abstracts the shared daemon connection. The real implementation talks
// to org.bluez over the system bus; tests substitute a fake.
//
// Events are delivered on a single channel in bus order; the channel is
// closed when the transport fails or the bus is closed, after which Err
// reports the reason (nil for a clean Close).
type Bus interface {
	// ManagedObjects bulk-loads the daemon's current object tree.
	ManagedObjects(ctx context.Context) (ObjectMap, error)

	// Call invokes method on the object at path and stores the reply, if
	// any, into ret. iface is the destination interface (e.g. Device1).
	Call(ctx context.Context, path dbus.ObjectPath, iface, method string, args []interface{}, ret ...interface{}) error

	// SetProperty sets a property on the object at path.
	SetProperty(ctx context.Context, path dbus.ObjectPath, iface, prop string, value interface{}) error

	// Events returns the topology event channel. Subsequent calls return
	// the same channel.
	Events() <-chan Event

	// Err reports why the event channel closed. Undefined before closure.
	Err() error

	Close() error
}
