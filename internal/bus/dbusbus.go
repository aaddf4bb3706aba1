package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"github.com/srg/bluegatt/internal/groutine"
)

// ErrClosed is returned by calls issued after the bus has been closed.
var ErrClosed = errors.New("bus connection closed")

// DbusBus is the production Bus backed by a private connection to the
// system bus. A single goroutine translates raw BlueZ signals into Events.
type DbusBus struct {
	conn   *dbus.Conn
	logger *logrus.Logger

	events  chan Event
	signals chan *dbus.Signal

	mu     sync.Mutex
	err    error
	closed bool
}

// SystemBus connects to the D-Bus system bus and subscribes to BlueZ
// topology signals. The returned bus delivers events until Close.
func SystemBus(logger *logrus.Logger) (*DbusBus, error) {
	if logger == nil {
		logger = logrus.New()
	}

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}

	matches := [][]dbus.MatchOption{
		{
			dbus.WithMatchSender(BluezBusName),
			dbus.WithMatchInterface(ObjectManagerIface),
			dbus.WithMatchMember("InterfacesAdded"),
		},
		{
			dbus.WithMatchSender(BluezBusName),
			dbus.WithMatchInterface(ObjectManagerIface),
			dbus.WithMatchMember("InterfacesRemoved"),
		},
		{
			dbus.WithMatchSender(BluezBusName),
			dbus.WithMatchInterface(PropertiesIface),
			dbus.WithMatchMember("PropertiesChanged"),
		},
	}
	for _, opts := range matches {
		if err := conn.AddMatchSignal(opts...); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to add signal match: %w", err)
		}
	}

	b := &DbusBus{
		conn:    conn,
		logger:  logger,
		events:  make(chan Event, 64),
		signals: make(chan *dbus.Signal, 64),
	}
	conn.Signal(b.signals)

	groutine.Go(context.Background(), "dbus-signal-translate", func(context.Context) { b.translate() })

	return b, nil
}

// translate converts raw signals to typed events. The signal channel is
// closed by godbus when the connection drops, which ends the event stream.
func (b *DbusBus) translate() {
	for sig := range b.signals {
		ev, ok := decodeSignal(sig)
		if !ok {
			b.logger.WithField("signal", sig.Name).Trace("Ignoring unrelated signal")
			continue
		}
		b.events <- ev
	}

	b.mu.Lock()
	if !b.closed {
		b.err = errors.New("dbus connection lost")
		b.closed = true
	}
	b.mu.Unlock()
	close(b.events)
}

func decodeSignal(sig *dbus.Signal) (Event, bool) {
	switch sig.Name {
	case InterfacesAddedSignal:
		if len(sig.Body) < 2 {
			return nil, false
		}
		path, ok := sig.Body[0].(dbus.ObjectPath)
		if !ok {
			return nil, false
		}
		ifaces, ok := sig.Body[1].(map[string]map[string]dbus.Variant)
		if !ok {
			return nil, false
		}
		return ObjectAdded{Path: path, Interfaces: ifaces}, true

	case InterfacesRemovedSignal:
		if len(sig.Body) < 2 {
			return nil, false
		}
		path, ok := sig.Body[0].(dbus.ObjectPath)
		if !ok {
			return nil, false
		}
		ifaces, ok := sig.Body[1].([]string)
		if !ok {
			return nil, false
		}
		return ObjectRemoved{Path: path, Interfaces: ifaces}, true

	case PropertiesChangedSignal:
		if len(sig.Body) < 2 {
			return nil, false
		}
		iface, ok := sig.Body[0].(string)
		if !ok {
			return nil, false
		}
		changed, ok := sig.Body[1].(map[string]dbus.Variant)
		if !ok {
			return nil, false
		}
		var invalidated []string
		if len(sig.Body) > 2 {
			invalidated, _ = sig.Body[2].([]string)
		}
		return PropertiesChanged{
			Path:        sig.Path,
			Interface:   iface,
			Changed:     changed,
			Invalidated: invalidated,
		}, true
	}

	return nil, false
}

// ManagedObjects bulk-loads the daemon object tree from the root path.
func (b *DbusBus) ManagedObjects(ctx context.Context) (ObjectMap, error) {
	objects := make(ObjectMap)
	err := b.conn.Object(BluezBusName, BluezRootPath).
		CallWithContext(ctx, GetManagedObjectsMethod, 0).
		Store(&objects)
	if err != nil {
		return nil, fmt.Errorf("GetManagedObjects failed: %w", err)
	}
	return objects, nil
}

// Call invokes a BlueZ method and stores the reply into ret.
func (b *DbusBus) Call(ctx context.Context, path dbus.ObjectPath, iface, method string, args []interface{}, ret ...interface{}) error {
	if b.isClosed() {
		return ErrClosed
	}
	call := b.conn.Object(BluezBusName, path).
		CallWithContext(ctx, iface+"."+method, 0, args...)
	if call.Err != nil {
		return call.Err
	}
	if len(ret) > 0 {
		return call.Store(ret...)
	}
	return nil
}

// SetProperty sets a property via org.freedesktop.DBus.Properties.Set.
func (b *DbusBus) SetProperty(ctx context.Context, path dbus.ObjectPath, iface, prop string, value interface{}) error {
	if b.isClosed() {
		return ErrClosed
	}
	return b.conn.Object(BluezBusName, path).
		CallWithContext(ctx, SetPropertyMethod, 0, iface, prop, dbus.MakeVariant(value)).
		Err
}

// Events returns the translated topology event channel.
func (b *DbusBus) Events() <-chan Event {
	return b.events
}

// Err reports the transport failure that closed the event channel, if any.
func (b *DbusBus) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Close tears down the connection. The event channel closes once the
// translator drains.
func (b *DbusBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	// Closing the connection closes the registered signal channel, which
	// ends the translator and the event stream.
	return b.conn.Close()
}

func (b *DbusBus) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
