package topology

import (
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/bluegatt/internal/bus"
	"github.com/srg/bluegatt/internal/registry"
)

const (
	adapterPath = dbus.ObjectPath("/org/bluez/hci0")
	devicePath  = dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF")
	svcPath     = dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF/service0001")
	charPath    = dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF/service0001/char0002")
	descPath    = dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF/service0001/char0002/desc0003")

	heartRateService = "0000180d-0000-1000-8000-00805f9b34fb"
	heartRateMeasure = "00002a37-0000-1000-8000-00805f9b34fb"
)

func props(kv map[string]interface{}) bus.Properties {
	out := make(bus.Properties, len(kv))
	for k, v := range kv {
		out[k] = dbus.MakeVariant(v)
	}
	return out
}

func adapterAdded() bus.InterfaceSet {
	return bus.InterfaceSet{
		bus.AdapterIface: props(map[string]interface{}{
			bus.PropAddress: "00:11:22:33:44:55",
			bus.PropName:    "hci0",
			bus.PropPowered: true,
		}),
	}
}

func deviceAdded() bus.InterfaceSet {
	return bus.InterfaceSet{
		bus.DeviceIface: props(map[string]interface{}{
			bus.PropAddress: "AA:BB:CC:DD:EE:FF",
			bus.PropName:    "Thermometer",
			bus.PropAdapter: adapterPath,
		}),
	}
}

func serviceAdded() bus.InterfaceSet {
	return bus.InterfaceSet{
		bus.GattServiceIface: props(map[string]interface{}{
			bus.PropUUID:    heartRateService,
			bus.PropPrimary: true,
			bus.PropDevice:  devicePath,
		}),
	}
}

func charAdded(flags ...string) bus.InterfaceSet {
	if flags == nil {
		flags = []string{"read", "notify"}
	}
	return bus.InterfaceSet{
		bus.GattCharacteristicIface: props(map[string]interface{}{
			bus.PropUUID:    heartRateMeasure,
			bus.PropFlags:   flags,
			bus.PropService: svcPath,
		}),
	}
}

func descAdded() bus.InterfaceSet {
	return bus.InterfaceSet{
		bus.GattDescriptorIface: props(map[string]interface{}{
			bus.PropUUID:           "00002902-0000-1000-8000-00805f9b34fb",
			bus.PropCharacteristic: charPath,
		}),
	}
}

type recorder struct {
	events []Event
}

func (r *recorder) sink(ev Event) { r.events = append(r.events, ev) }

func newTestCache(opts ...Option) (*Cache, *registry.Registry, *recorder) {
	reg := registry.New()
	rec := &recorder{}
	c := New(reg, rec.sink, nil, opts...)
	return c, reg, rec
}

// populateConnected builds adapter -> device(connected, resolved) ->
// service -> characteristic -> descriptor.
func populateConnected(c *Cache) {
	c.ApplyObjectAdded(adapterPath, adapterAdded())
	c.ApplyObjectAdded(devicePath, deviceAdded())
	c.ApplyPropertiesChanged(devicePath, bus.DeviceIface, props(map[string]interface{}{
		bus.PropConnected: true,
	}), nil)
	c.ApplyObjectAdded(svcPath, serviceAdded())
	c.ApplyObjectAdded(charPath, charAdded())
	c.ApplyObjectAdded(descPath, descAdded())
	c.ApplyPropertiesChanged(devicePath, bus.DeviceIface, props(map[string]interface{}{
		bus.PropServicesResolved: true,
	}), nil)
}

func deviceID(t *testing.T, reg *registry.Registry) DeviceID {
	t.Helper()
	id, ok := reg.Lookup(devicePath)
	require.True(t, ok)
	return DeviceID(id)
}

func TestDeviceLifecycleEventOrder(t *testing.T) {
	c, reg, rec := newTestCache()

	c.ApplyObjectAdded(adapterPath, adapterAdded())
	rec.events = nil // only interested in device events

	c.ApplyObjectAdded(devicePath, bus.InterfaceSet{
		bus.DeviceIface: props(map[string]interface{}{
			bus.PropAddress: "AA:BB:CC:DD:EE:FF",
			bus.PropAdapter: adapterPath,
		}),
	})
	c.ApplyPropertiesChanged(devicePath, bus.DeviceIface, props(map[string]interface{}{
		bus.PropRSSI: int16(-40),
	}), nil)

	id := deviceID(t, reg)
	c.ApplyObjectRemoved(devicePath, []string{bus.DeviceIface})

	require.Len(t, rec.events, 3)
	discovered, ok := rec.events[0].(DeviceDiscovered)
	require.True(t, ok, "first event must be DeviceDiscovered, got %T", rec.events[0])
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", discovered.Device.Address)

	updated, ok := rec.events[1].(DeviceUpdated)
	require.True(t, ok, "second event must be DeviceUpdated, got %T", rec.events[1])
	assert.Equal(t, int16(-40), updated.Device.RSSI)
	assert.True(t, updated.Device.HasRSSI)

	removed, ok := rec.events[2].(DeviceRemoved)
	require.True(t, ok, "third event must be DeviceRemoved, got %T", rec.events[2])
	assert.Equal(t, id, removed.ID)

	// The identifier is invalid after removal.
	_, err := c.Services(id)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.Device(id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParentChildConsistency(t *testing.T) {
	c, reg, _ := newTestCache()
	populateConnected(c)

	charID, ok := reg.Lookup(charPath)
	require.True(t, ok)

	// Removing the service takes its characteristics and descriptors along.
	c.ApplyObjectRemoved(svcPath, []string{bus.GattServiceIface})

	_, err := c.Characteristic(CharacteristicID(charID))
	assert.ErrorIs(t, err, ErrNotFound)
	_, ok = reg.Lookup(charPath)
	assert.False(t, ok)
	_, ok = reg.Lookup(descPath)
	assert.False(t, ok)
}

func TestPartialInterfaceRemovalKeepsEntity(t *testing.T) {
	c, reg, rec := newTestCache()
	populateConnected(c)
	id := deviceID(t, reg)
	rec.events = nil

	// The daemon can strip an auxiliary interface (battery reporting,
	// media control) from a device path that otherwise stays.
	c.ApplyObjectRemoved(devicePath, []string{"org.bluez.Battery1"})

	dev, err := c.Device(id)
	require.NoError(t, err, "device must survive removal of an unrelated interface")
	assert.True(t, dev.Connected)
	assert.Empty(t, rec.events, "partial interface removal must not emit")

	// Same for a characteristic path losing only an auxiliary interface.
	charID, ok := reg.Lookup(charPath)
	require.True(t, ok)
	c.ApplyObjectRemoved(charPath, []string{"org.freedesktop.DBus.Properties"})
	_, err = c.Characteristic(CharacteristicID(charID))
	assert.NoError(t, err)

	// An empty interface list still means the whole object is gone.
	c.ApplyObjectRemoved(devicePath, nil)
	_, err = c.Device(id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeviceRemovalInvalidatesAllDescendants(t *testing.T) {
	c, reg, _ := newTestCache()
	populateConnected(c)

	svcID, _ := reg.Lookup(svcPath)
	charID, _ := reg.Lookup(charPath)
	descID, _ := reg.Lookup(descPath)

	c.ApplyObjectRemoved(devicePath, []string{bus.DeviceIface})

	for _, id := range []registry.ID{svcID, charID, descID} {
		_, ok := reg.Resolve(id)
		assert.False(t, ok, "descendant id %s must be unresolvable", id)
	}
}

func TestDisconnectEvictsGattButKeepsDevice(t *testing.T) {
	c, reg, rec := newTestCache()
	populateConnected(c)
	id := deviceID(t, reg)
	rec.events = nil

	c.ApplyPropertiesChanged(devicePath, bus.DeviceIface, props(map[string]interface{}{
		bus.PropConnected: false,
	}), nil)

	require.Len(t, rec.events, 1)
	disc, ok := rec.events[0].(DeviceDisconnected)
	require.True(t, ok)
	assert.Equal(t, id, disc.Device.ID)

	// Device is still queryable, its services are not.
	dev, err := c.Device(id)
	require.NoError(t, err)
	assert.False(t, dev.Connected)
	assert.False(t, dev.ServicesResolved)

	_, err = c.Services(id)
	assert.ErrorIs(t, err, ErrNotReady)

	_, ok = reg.Lookup(svcPath)
	assert.False(t, ok, "service identifier must be invalidated by disconnect")
}

func TestServicesRequireResolution(t *testing.T) {
	c, reg, _ := newTestCache()
	c.ApplyObjectAdded(adapterPath, adapterAdded())
	c.ApplyObjectAdded(devicePath, deviceAdded())
	id := deviceID(t, reg)

	_, err := c.Services(id)
	assert.ErrorIs(t, err, ErrNotReady, "disconnected device has no queryable services")

	c.ApplyPropertiesChanged(devicePath, bus.DeviceIface, props(map[string]interface{}{
		bus.PropConnected: true,
	}), nil)
	_, err = c.Services(id)
	assert.ErrorIs(t, err, ErrNotReady, "connected but unresolved device is still not ready")

	c.ApplyObjectAdded(svcPath, serviceAdded())
	c.ApplyPropertiesChanged(devicePath, bus.DeviceIface, props(map[string]interface{}{
		bus.PropServicesResolved: true,
	}), nil)

	services, err := c.Services(id)
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, heartRateService, services[0].UUID.String())
	assert.True(t, services[0].Primary)
}

func TestOrphanBuffering(t *testing.T) {
	c, reg, _ := newTestCache()
	c.ApplyObjectAdded(adapterPath, adapterAdded())
	c.ApplyObjectAdded(devicePath, deviceAdded())
	c.ApplyPropertiesChanged(devicePath, bus.DeviceIface, props(map[string]interface{}{
		bus.PropConnected: true,
	}), nil)

	// Characteristic and descriptor arrive before their service.
	c.ApplyObjectAdded(descPath, descAdded())
	c.ApplyObjectAdded(charPath, charAdded())
	_, ok := reg.Lookup(charPath)
	assert.False(t, ok, "orphaned characteristic must not be registered yet")

	// Parent arrives: the whole buffered chain is applied.
	c.ApplyObjectAdded(svcPath, serviceAdded())

	svcID, ok := reg.Lookup(svcPath)
	require.True(t, ok)
	chars, err := c.Characteristics(ServiceID(svcID))
	require.NoError(t, err)
	require.Len(t, chars, 1)
	assert.Equal(t, heartRateMeasure, chars[0].UUID.String())

	descs, err := c.Descriptors(chars[0].ID)
	require.NoError(t, err)
	assert.Len(t, descs, 1)
}

func TestStaleOrphansDropped(t *testing.T) {
	clock := time.Now()
	c, reg, _ := newTestCache(
		WithOrphanTTL(10*time.Second),
		WithClock(func() time.Time { return clock }),
	)
	c.ApplyObjectAdded(adapterPath, adapterAdded())
	c.ApplyObjectAdded(devicePath, deviceAdded())

	c.ApplyObjectAdded(charPath, charAdded())

	// The orphan outlives the staleness window before its parent shows up.
	clock = clock.Add(11 * time.Second)
	c.ApplyObjectAdded(svcPath, serviceAdded())

	svcID, ok := reg.Lookup(svcPath)
	require.True(t, ok)
	chars, err := c.Characteristics(ServiceID(svcID))
	require.NoError(t, err)
	assert.Empty(t, chars, "stale orphan must have been dropped")
}

func TestCharacteristicValueChanged(t *testing.T) {
	c, reg, rec := newTestCache()
	populateConnected(c)
	rec.events = nil

	charID, _ := reg.Lookup(charPath)
	payload := []byte{0x01, 0x63}
	c.ApplyPropertiesChanged(charPath, bus.GattCharacteristicIface, props(map[string]interface{}{
		bus.PropValue: payload,
	}), nil)

	require.Len(t, rec.events, 1)
	changed, ok := rec.events[0].(CharacteristicValueChanged)
	require.True(t, ok)
	assert.Equal(t, CharacteristicID(charID), changed.ID)
	assert.Equal(t, payload, changed.Value)

	// The cached value reflects the notification.
	info, err := c.Characteristic(CharacteristicID(charID))
	require.NoError(t, err)
	assert.Equal(t, payload, info.Value)
}

func TestUnknownPathPropertyChangeIgnored(t *testing.T) {
	c, _, rec := newTestCache()
	c.ApplyPropertiesChanged("/org/bluez/hci9/dev_00", bus.DeviceIface, props(map[string]interface{}{
		bus.PropRSSI: int16(-70),
	}), nil)
	assert.Empty(t, rec.events)
}

func TestConnectedTransitionEvents(t *testing.T) {
	c, reg, rec := newTestCache()
	c.ApplyObjectAdded(adapterPath, adapterAdded())
	c.ApplyObjectAdded(devicePath, deviceAdded())
	id := deviceID(t, reg)
	rec.events = nil

	c.ApplyPropertiesChanged(devicePath, bus.DeviceIface, props(map[string]interface{}{
		bus.PropConnected: true,
	}), nil)

	require.Len(t, rec.events, 2)
	_, isUpdated := rec.events[0].(DeviceUpdated)
	assert.True(t, isUpdated)
	conn, isConnected := rec.events[1].(DeviceConnected)
	require.True(t, isConnected)
	assert.Equal(t, id, conn.Device.ID)
}

func TestAwaitResolved(t *testing.T) {
	t.Run("signals on resolution", func(t *testing.T) {
		c, reg, _ := newTestCache()
		c.ApplyObjectAdded(adapterPath, adapterAdded())
		c.ApplyObjectAdded(devicePath, deviceAdded())
		id := deviceID(t, reg)

		ch, cancel := c.AwaitResolved(id)
		defer cancel()
		select {
		case <-ch:
			t.Fatal("waiter fired before resolution")
		default:
		}

		c.ApplyPropertiesChanged(devicePath, bus.DeviceIface, props(map[string]interface{}{
			bus.PropConnected:        true,
			bus.PropServicesResolved: true,
		}), nil)

		select {
		case err := <-ch:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("waiter never signalled")
		}
	})

	t.Run("immediate when already resolved", func(t *testing.T) {
		c, reg, _ := newTestCache()
		populateConnected(c)

		ch, cancel := c.AwaitResolved(deviceID(t, reg))
		defer cancel()
		assert.NoError(t, <-ch)
	})

	t.Run("fails on disconnect", func(t *testing.T) {
		c, reg, _ := newTestCache()
		c.ApplyObjectAdded(adapterPath, adapterAdded())
		c.ApplyObjectAdded(devicePath, deviceAdded())
		c.ApplyPropertiesChanged(devicePath, bus.DeviceIface, props(map[string]interface{}{
			bus.PropConnected: true,
		}), nil)
		id := deviceID(t, reg)

		ch, cancel := c.AwaitResolved(id)
		defer cancel()

		c.ApplyPropertiesChanged(devicePath, bus.DeviceIface, props(map[string]interface{}{
			bus.PropConnected: false,
		}), nil)

		assert.ErrorIs(t, <-ch, ErrDisconnected)
	})

	t.Run("fails on removal", func(t *testing.T) {
		c, reg, _ := newTestCache()
		c.ApplyObjectAdded(adapterPath, adapterAdded())
		c.ApplyObjectAdded(devicePath, deviceAdded())
		id := deviceID(t, reg)

		ch, cancel := c.AwaitResolved(id)
		defer cancel()

		c.ApplyObjectRemoved(devicePath, []string{bus.DeviceIface})
		assert.ErrorIs(t, <-ch, ErrNotFound)
	})

	t.Run("unknown device fails immediately", func(t *testing.T) {
		c, _, _ := newTestCache()
		ch, cancel := c.AwaitResolved(DeviceID("device-999"))
		defer cancel()
		assert.ErrorIs(t, <-ch, ErrNotFound)
	})
}

func TestRSSIInvalidated(t *testing.T) {
	c, reg, _ := newTestCache()
	c.ApplyObjectAdded(adapterPath, adapterAdded())
	c.ApplyObjectAdded(devicePath, deviceAdded())
	id := deviceID(t, reg)

	c.ApplyPropertiesChanged(devicePath, bus.DeviceIface, props(map[string]interface{}{
		bus.PropRSSI: int16(-55),
	}), nil)
	dev, err := c.Device(id)
	require.NoError(t, err)
	assert.True(t, dev.HasRSSI)

	c.ApplyPropertiesChanged(devicePath, bus.DeviceIface, nil, []string{bus.PropRSSI})
	dev, err = c.Device(id)
	require.NoError(t, err)
	assert.False(t, dev.HasRSSI)
}

func TestAdapterRemovalCascades(t *testing.T) {
	c, reg, rec := newTestCache()
	populateConnected(c)
	devID := deviceID(t, reg)
	rec.events = nil

	c.ApplyObjectRemoved(adapterPath, []string{bus.AdapterIface})

	_, err := c.Device(devID)
	assert.ErrorIs(t, err, ErrNotFound)

	var sawDeviceRemoved, sawAdapterRemoved bool
	for _, ev := range rec.events {
		switch ev.(type) {
		case DeviceRemoved:
			sawDeviceRemoved = true
		case AdapterRemoved:
			sawAdapterRemoved = true
		}
	}
	assert.True(t, sawDeviceRemoved)
	assert.True(t, sawAdapterRemoved)
}

func TestParseCharacteristicFlags(t *testing.T) {
	f := ParseCharacteristicFlags([]string{"read", "write", "notify", "bogus"})
	assert.True(t, f.Read)
	assert.True(t, f.Write)
	assert.True(t, f.Notify)
	assert.False(t, f.Indicate)
	assert.False(t, f.WriteWithoutResponse)
	assert.Equal(t, "read,write,notify", f.String())
}
