package topology

import (
	"github.com/godbus/dbus/v5"

	"github.com/srg/bluegatt/internal/registry"
)

// Read-side accessors. Every call takes the read lock once and returns
// copies, so a caller never observes a half-applied event.

// Adapters lists all known adapters.
func (c *Cache) Adapters() []AdapterInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]AdapterInfo, 0, len(c.adapters))
	for _, a := range c.adapters {
		out = append(out, a.snapshot())
	}
	return out
}

// Adapter returns a snapshot of one adapter.
func (c *Cache) Adapter(id AdapterID) (AdapterInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	a, ok := c.adapters[id]
	if !ok {
		return AdapterInfo{}, ErrNotFound
	}
	return a.snapshot(), nil
}

// Devices lists all known devices across adapters.
func (c *Cache) Devices() []DeviceInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]DeviceInfo, 0, len(c.devices))
	for _, d := range c.devices {
		out = append(out, d.snapshot())
	}
	return out
}

// Device returns a snapshot of one device.
func (c *Cache) Device(id DeviceID) (DeviceInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, ok := c.devices[id]
	if !ok {
		return DeviceInfo{}, ErrNotFound
	}
	return d.snapshot(), nil
}

// FindDeviceByAddress locates a device by Bluetooth address.
func (c *Cache) FindDeviceByAddress(address string) (DeviceInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, d := range c.devices {
		if d.address == address {
			return d.snapshot(), true
		}
	}
	return DeviceInfo{}, false
}

// Services lists a connected device's GATT services in discovery order.
// Fails with ErrNotReady until the device is connected and resolved.
func (c *Cache) Services(id DeviceID) ([]ServiceInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, ok := c.devices[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !d.connected || !d.servicesResolved {
		return nil, ErrNotReady
	}

	out := make([]ServiceInfo, 0, d.services.Len())
	for pair := d.services.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value.snapshot())
	}
	return out, nil
}

// Service returns a snapshot of one service.
func (c *Cache) Service(id ServiceID) (ServiceInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.services[id]
	if !ok {
		return ServiceInfo{}, ErrNotFound
	}
	return s.snapshot(), nil
}

// Characteristics lists a service's characteristics in discovery order.
func (c *Cache) Characteristics(id ServiceID) ([]CharacteristicInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.services[id]
	if !ok {
		return nil, ErrNotFound
	}

	out := make([]CharacteristicInfo, 0, s.characteristics.Len())
	for pair := s.characteristics.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value.snapshot())
	}
	return out, nil
}

// Characteristic returns a snapshot of one characteristic.
func (c *Cache) Characteristic(id CharacteristicID) (CharacteristicInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ch, ok := c.characteristics[id]
	if !ok {
		return CharacteristicInfo{}, ErrNotFound
	}
	return ch.snapshot(), nil
}

// Descriptors lists a characteristic's descriptors in discovery order.
func (c *Cache) Descriptors(id CharacteristicID) ([]DescriptorInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ch, ok := c.characteristics[id]
	if !ok {
		return nil, ErrNotFound
	}

	out := make([]DescriptorInfo, 0, ch.descriptors.Len())
	for pair := ch.descriptors.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value.snapshot())
	}
	return out, nil
}

// Descriptor returns a snapshot of one descriptor.
func (c *Cache) Descriptor(id DescriptorID) (DescriptorInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, ok := c.descriptors[id]
	if !ok {
		return DescriptorInfo{}, ErrNotFound
	}
	return d.snapshot(), nil
}

// DeviceConnected reports whether a device is currently connected.
func (c *Cache) DeviceConnected(id DeviceID) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, ok := c.devices[id]
	if !ok {
		return false, ErrNotFound
	}
	return d.connected, nil
}

// Path resolves an identifier of any kind back to its daemon object path.
func (c *Cache) Path(id registry.ID) (dbus.ObjectPath, error) {
	path, ok := c.reg.Resolve(id)
	if !ok {
		return "", ErrNotFound
	}
	return path, nil
}
