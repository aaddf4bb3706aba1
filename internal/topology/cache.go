// Package topology is the authoritative in-memory model of the BLE object
// tree. A single goroutine feeds it raw bus events; any number of
// goroutines read consistent snapshots. It owns all entity state - callers
// only ever hold identifiers and copies.
package topology

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/srg/bluegatt/internal/bus"
	"github.com/srg/bluegatt/internal/registry"
)

// Cache-level failures. The session façade maps these onto its public
// error taxonomy.
var (
	// ErrNotFound means the identifier was never issued or has been
	// invalidated by a removal.
	ErrNotFound = errors.New("entity not found")
	// ErrNotReady means the owning device is not connected or its GATT
	// database has not been resolved yet.
	ErrNotReady = errors.New("device not ready")
	// ErrDisconnected reports a device dropping while something waited on it.
	ErrDisconnected = errors.New("device disconnected")
)

// DefaultOrphanTTL bounds how long a child object announced before its
// parent is kept for re-application.
const DefaultOrphanTTL = 30 * time.Second

type orphan struct {
	path   dbus.ObjectPath
	ifaces bus.InterfaceSet
	seen   time.Time
}

// Cache applies ordered topology events and serves consistent snapshots.
type Cache struct {
	mu  sync.RWMutex
	reg *registry.Registry

	adapters        map[AdapterID]*adapter
	devices         map[DeviceID]*device
	services        map[ServiceID]*service
	characteristics map[CharacteristicID]*characteristic
	descriptors     map[DescriptorID]*descriptor

	// orphans buffers children that arrived before their parent, keyed by
	// the missing parent's path.
	orphans   map[dbus.ObjectPath][]orphan
	orphanTTL time.Duration

	// waiters are connect() callers suspended until GATT resolution.
	waiters map[DeviceID][]chan error

	emit   func(Event)
	logger *logrus.Logger
	now    func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithOrphanTTL overrides the staleness window for buffered orphans.
func WithOrphanTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.orphanTTL = ttl }
}

// WithClock overrides the time source. Test seam.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a cache. emit receives derived events in application order
// and must not call back into the cache; nil disables emission.
func New(reg *registry.Registry, emit func(Event), logger *logrus.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = logrus.New()
	}
	if emit == nil {
		emit = func(Event) {}
	}
	c := &Cache{
		reg:             reg,
		adapters:        make(map[AdapterID]*adapter),
		devices:         make(map[DeviceID]*device),
		services:        make(map[ServiceID]*service),
		characteristics: make(map[CharacteristicID]*characteristic),
		descriptors:     make(map[DescriptorID]*descriptor),
		orphans:         make(map[dbus.ObjectPath][]orphan),
		orphanTTL:       DefaultOrphanTTL,
		waiters:         make(map[DeviceID][]chan error),
		emit:            emit,
		logger:          logger,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Apply dispatches one raw bus event. Events for the same path must be
// applied in delivery order; the session's event loop guarantees this by
// being the only caller.
func (c *Cache) Apply(ev bus.Event) {
	switch e := ev.(type) {
	case bus.ObjectAdded:
		c.ApplyObjectAdded(e.Path, e.Interfaces)
	case bus.ObjectRemoved:
		c.ApplyObjectRemoved(e.Path, e.Interfaces)
	case bus.PropertiesChanged:
		c.ApplyPropertiesChanged(e.Path, e.Interface, e.Changed, e.Invalidated)
	}
}

// ApplyObjectAdded classifies and inserts (or updates) the object at path.
func (c *Cache) ApplyObjectAdded(path dbus.ObjectPath, ifaces bus.InterfaceSet) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneOrphansLocked()
	c.applyAddedLocked(path, ifaces)
}

func (c *Cache) applyAddedLocked(path dbus.ObjectPath, ifaces bus.InterfaceSet) {
	switch {
	case ifaces[bus.GattDescriptorIface] != nil:
		c.addDescriptorLocked(path, ifaces)
	case ifaces[bus.GattCharacteristicIface] != nil:
		c.addCharacteristicLocked(path, ifaces)
	case ifaces[bus.GattServiceIface] != nil:
		c.addServiceLocked(path, ifaces)
	case ifaces[bus.DeviceIface] != nil:
		c.addDeviceLocked(path, ifaces)
	case ifaces[bus.AdapterIface] != nil:
		c.addAdapterLocked(path, ifaces)
	default:
		c.logger.WithField("path", path).Trace("Ignoring object with no known interface")
	}
}

func (c *Cache) addAdapterLocked(path dbus.ObjectPath, ifaces bus.InterfaceSet) {
	props := ifaces[bus.AdapterIface]
	id := AdapterID(c.reg.Register(path, registry.KindAdapter))

	a, known := c.adapters[id]
	if !known {
		a = &adapter{
			id:      id,
			path:    path,
			devices: orderedmap.New[DeviceID, *device](),
		}
		c.adapters[id] = a
	}
	applyAdapterProps(a, props)

	if known {
		c.emit(AdapterUpdated{Adapter: a.snapshot()})
	} else {
		c.logger.WithFields(logrus.Fields{
			"adapter": id,
			"address": a.address,
		}).Debug("Adapter announced")
		c.emit(AdapterAdded{Adapter: a.snapshot()})
		c.releaseOrphansLocked(path)
	}
}

func (c *Cache) addDeviceLocked(path dbus.ObjectPath, ifaces bus.InterfaceSet) {
	props := ifaces[bus.DeviceIface]

	adapterPath, ok := bus.VariantPath(props, bus.PropAdapter)
	if !ok {
		adapterPath = parentPath(path)
	}
	adapterID, ok := c.lookupAdapterLocked(adapterPath)
	if !ok {
		c.bufferOrphanLocked(adapterPath, path, ifaces)
		return
	}

	id := DeviceID(c.reg.Register(path, registry.KindDevice))
	d, known := c.devices[id]
	if !known {
		d = &device{
			id:       id,
			path:     path,
			adapter:  adapterID,
			services: orderedmap.New[ServiceID, *service](),
		}
		c.devices[id] = d
		c.adapters[adapterID].devices.Set(id, d)
	}
	wasConnected := d.connected
	applyDeviceProps(d, props)

	if !known {
		c.logger.WithFields(logrus.Fields{
			"device":  id,
			"address": d.address,
		}).Debug("Device discovered")
		c.emit(DeviceDiscovered{Device: d.snapshot()})
		c.releaseOrphansLocked(path)
		return
	}

	c.emit(DeviceUpdated{Device: d.snapshot()})
	if !wasConnected && d.connected {
		c.emit(DeviceConnected{Device: d.snapshot()})
	}
}

func (c *Cache) addServiceLocked(path dbus.ObjectPath, ifaces bus.InterfaceSet) {
	props := ifaces[bus.GattServiceIface]

	devicePath, ok := bus.VariantPath(props, bus.PropDevice)
	if !ok {
		devicePath = parentPath(path)
	}
	deviceID, ok := c.lookupDeviceLocked(devicePath)
	if !ok {
		c.bufferOrphanLocked(devicePath, path, ifaces)
		return
	}

	id := ServiceID(c.reg.Register(path, registry.KindService))
	s, known := c.services[id]
	if !known {
		s = &service{
			id:              id,
			path:            path,
			device:          deviceID,
			characteristics: orderedmap.New[CharacteristicID, *characteristic](),
		}
		c.services[id] = s
		c.devices[deviceID].services.Set(id, s)
	}
	if u, ok := bus.VariantString(props, bus.PropUUID); ok {
		if parsed, err := uuid.Parse(u); err == nil {
			s.uuid = parsed
		}
	}
	if primary, ok := bus.VariantBool(props, bus.PropPrimary); ok {
		s.primary = primary
	}

	if !known {
		c.releaseOrphansLocked(path)
	}
}

func (c *Cache) addCharacteristicLocked(path dbus.ObjectPath, ifaces bus.InterfaceSet) {
	props := ifaces[bus.GattCharacteristicIface]

	servicePath, ok := bus.VariantPath(props, bus.PropService)
	if !ok {
		servicePath = parentPath(path)
	}
	serviceID, ok := c.lookupServiceLocked(servicePath)
	if !ok {
		c.bufferOrphanLocked(servicePath, path, ifaces)
		return
	}

	id := CharacteristicID(c.reg.Register(path, registry.KindCharacteristic))
	ch, known := c.characteristics[id]
	if !known {
		svc := c.services[serviceID]
		ch = &characteristic{
			id:          id,
			path:        path,
			service:     serviceID,
			device:      svc.device,
			descriptors: orderedmap.New[DescriptorID, *descriptor](),
		}
		c.characteristics[id] = ch
		svc.characteristics.Set(id, ch)
	}
	if u, ok := bus.VariantString(props, bus.PropUUID); ok {
		if parsed, err := uuid.Parse(u); err == nil {
			ch.uuid = parsed
		}
	}
	if flags, ok := bus.VariantStrings(props, bus.PropFlags); ok {
		ch.flags = ParseCharacteristicFlags(flags)
	}
	if value, ok := bus.VariantBytes(props, bus.PropValue); ok {
		ch.value = cloneBytes(value)
	}
	if notifying, ok := bus.VariantBool(props, bus.PropNotifying); ok {
		ch.notifying = notifying
	}

	if !known {
		c.releaseOrphansLocked(path)
	}
}

func (c *Cache) addDescriptorLocked(path dbus.ObjectPath, ifaces bus.InterfaceSet) {
	props := ifaces[bus.GattDescriptorIface]

	charPath, ok := bus.VariantPath(props, bus.PropCharacteristic)
	if !ok {
		charPath = parentPath(path)
	}
	charID, ok := c.lookupCharacteristicLocked(charPath)
	if !ok {
		c.bufferOrphanLocked(charPath, path, ifaces)
		return
	}

	id := DescriptorID(c.reg.Register(path, registry.KindDescriptor))
	d, known := c.descriptors[id]
	if !known {
		ch := c.characteristics[charID]
		d = &descriptor{
			id:             id,
			path:           path,
			characteristic: charID,
			device:         ch.device,
		}
		c.descriptors[id] = d
		ch.descriptors.Set(id, d)
	}
	if u, ok := bus.VariantString(props, bus.PropUUID); ok {
		if parsed, err := uuid.Parse(u); err == nil {
			d.uuid = parsed
		}
	}
	if value, ok := bus.VariantBytes(props, bus.PropValue); ok {
		d.value = cloneBytes(value)
	}
}

// ApplyObjectRemoved removes the entity at path and invalidates every
// descendant identifier. Unknown paths are a benign race with removal.
//
// The daemon removes interfaces individually: a path can lose an
// auxiliary interface (say, a battery interface on disconnect) while the
// interface that defines the entity stays. The entity is removed only
// when its classifying interface is in ifaces; an empty list means the
// whole object is gone.
func (c *Cache) ApplyObjectRemoved(path dbus.ObjectPath, ifaces []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := c.reg.Lookup(path)
	if !ok {
		delete(c.orphans, path)
		return
	}
	kind, _ := c.reg.KindOf(id)

	if !removesKind(kind, ifaces) {
		c.logger.WithFields(logrus.Fields{
			"path":       path,
			"interfaces": ifaces,
		}).Trace("Ignoring partial interface removal")
		return
	}

	// Anything still waiting for this parent will never resolve.
	delete(c.orphans, path)

	switch kind {
	case registry.KindAdapter:
		c.removeAdapterLocked(AdapterID(id))
	case registry.KindDevice:
		c.removeDeviceLocked(DeviceID(id))
	case registry.KindService:
		c.removeServiceLocked(ServiceID(id), true)
	case registry.KindCharacteristic:
		c.removeCharacteristicLocked(CharacteristicID(id), true)
	case registry.KindDescriptor:
		c.removeDescriptorLocked(DescriptorID(id))
	}
}

// removesKind reports whether the removed interface list covers the
// interface that classifies kind.
func removesKind(kind registry.Kind, ifaces []string) bool {
	if len(ifaces) == 0 {
		return true
	}
	var classifying string
	switch kind {
	case registry.KindAdapter:
		classifying = bus.AdapterIface
	case registry.KindDevice:
		classifying = bus.DeviceIface
	case registry.KindService:
		classifying = bus.GattServiceIface
	case registry.KindCharacteristic:
		classifying = bus.GattCharacteristicIface
	case registry.KindDescriptor:
		classifying = bus.GattDescriptorIface
	}
	for _, iface := range ifaces {
		if iface == classifying {
			return true
		}
	}
	return false
}

func (c *Cache) removeAdapterLocked(id AdapterID) {
	a, ok := c.adapters[id]
	if !ok {
		return
	}
	for pair := a.devices.Oldest(); pair != nil; pair = pair.Next() {
		c.removeDeviceSubtreeLocked(pair.Value)
	}
	delete(c.adapters, id)
	c.reg.Unregister(a.path)
	c.emit(AdapterRemoved{ID: id})
}

func (c *Cache) removeDeviceLocked(id DeviceID) {
	d, ok := c.devices[id]
	if !ok {
		return
	}
	if a, ok := c.adapters[d.adapter]; ok {
		a.devices.Delete(id)
	}
	c.removeDeviceSubtreeLocked(d)
}

func (c *Cache) removeDeviceSubtreeLocked(d *device) {
	c.evictGattLocked(d)
	delete(c.devices, d.id)
	c.reg.Unregister(d.path)
	c.failWaitersLocked(d.id, ErrNotFound)
	c.emit(DeviceRemoved{ID: d.id})
}

func (c *Cache) removeServiceLocked(id ServiceID, emitChildren bool) {
	s, ok := c.services[id]
	if !ok {
		return
	}
	for pair := s.characteristics.Oldest(); pair != nil; pair = pair.Next() {
		c.dropCharacteristicLocked(pair.Value, emitChildren)
	}
	if d, ok := c.devices[s.device]; ok {
		d.services.Delete(id)
	}
	delete(c.services, id)
	c.reg.Unregister(s.path)
}

func (c *Cache) removeCharacteristicLocked(id CharacteristicID, emit bool) {
	ch, ok := c.characteristics[id]
	if !ok {
		return
	}
	if s, ok := c.services[ch.service]; ok {
		s.characteristics.Delete(id)
	}
	c.dropCharacteristicLocked(ch, emit)
}

func (c *Cache) dropCharacteristicLocked(ch *characteristic, emitRemoval bool) {
	for pair := ch.descriptors.Oldest(); pair != nil; pair = pair.Next() {
		delete(c.descriptors, pair.Key)
		c.reg.Unregister(pair.Value.path)
	}
	delete(c.characteristics, ch.id)
	c.reg.Unregister(ch.path)
	if emitRemoval {
		c.emit(CharacteristicRemoved{ID: ch.id})
	}
}

func (c *Cache) removeDescriptorLocked(id DescriptorID) {
	d, ok := c.descriptors[id]
	if !ok {
		return
	}
	if ch, ok := c.characteristics[d.characteristic]; ok {
		ch.descriptors.Delete(id)
	}
	delete(c.descriptors, id)
	c.reg.Unregister(d.path)
}

// evictGattLocked tears down a device's GATT subtree, invalidating every
// service, characteristic and descriptor identifier underneath it.
func (c *Cache) evictGattLocked(d *device) {
	for pair := d.services.Oldest(); pair != nil; pair = pair.Next() {
		s := pair.Value
		for cp := s.characteristics.Oldest(); cp != nil; cp = cp.Next() {
			c.dropCharacteristicLocked(cp.Value, false)
		}
		delete(c.services, s.id)
		c.reg.Unregister(s.path)
	}
	d.services = orderedmap.New[ServiceID, *service]()
	d.servicesResolved = false
}

// ApplyPropertiesChanged updates one entity's cached fields. Updates for
// unknown paths are dropped as a benign race with removal.
func (c *Cache) ApplyPropertiesChanged(path dbus.ObjectPath, iface string, changed bus.Properties, invalidated []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := c.reg.Lookup(path)
	if !ok {
		c.logger.WithFields(logrus.Fields{
			"path":      path,
			"interface": iface,
		}).Trace("Property change for unknown path dropped")
		return
	}

	switch iface {
	case bus.AdapterIface:
		c.adapterPropsChangedLocked(AdapterID(id), changed)
	case bus.DeviceIface:
		c.devicePropsChangedLocked(DeviceID(id), changed, invalidated)
	case bus.GattServiceIface:
		if s, ok := c.services[ServiceID(id)]; ok {
			if primary, ok := bus.VariantBool(changed, bus.PropPrimary); ok {
				s.primary = primary
			}
		}
	case bus.GattCharacteristicIface:
		c.characteristicPropsChangedLocked(CharacteristicID(id), changed)
	case bus.GattDescriptorIface:
		if d, ok := c.descriptors[DescriptorID(id)]; ok {
			if value, ok := bus.VariantBytes(changed, bus.PropValue); ok {
				d.value = cloneBytes(value)
			}
		}
	}
}

func (c *Cache) adapterPropsChangedLocked(id AdapterID, changed bus.Properties) {
	a, ok := c.adapters[id]
	if !ok {
		return
	}
	applyAdapterProps(a, changed)
	c.emit(AdapterUpdated{Adapter: a.snapshot()})
}

func (c *Cache) devicePropsChangedLocked(id DeviceID, changed bus.Properties, invalidated []string) {
	d, ok := c.devices[id]
	if !ok {
		return
	}

	wasConnected := d.connected
	wasResolved := d.servicesResolved
	applyDeviceProps(d, changed)
	for _, prop := range invalidated {
		if prop == bus.PropRSSI {
			d.hasRSSI = false
		}
	}

	if wasConnected && !d.connected {
		// Disconnect: the device persists, its GATT subtree does not.
		c.evictGattLocked(d)
		c.failWaitersLocked(id, ErrDisconnected)
		c.emit(DeviceDisconnected{Device: d.snapshot()})
		return
	}

	c.emit(DeviceUpdated{Device: d.snapshot()})
	if !wasConnected && d.connected {
		c.emit(DeviceConnected{Device: d.snapshot()})
	}
	if !wasResolved && d.servicesResolved {
		c.emit(ServicesResolved{Device: d.snapshot()})
		c.signalWaitersLocked(id)
	}
}

func (c *Cache) characteristicPropsChangedLocked(id CharacteristicID, changed bus.Properties) {
	ch, ok := c.characteristics[id]
	if !ok {
		return
	}
	if notifying, ok := bus.VariantBool(changed, bus.PropNotifying); ok {
		ch.notifying = notifying
	}
	if value, ok := bus.VariantBytes(changed, bus.PropValue); ok {
		ch.value = cloneBytes(value)
		c.emit(CharacteristicValueChanged{ID: id, Value: cloneBytes(value)})
	}
}

// SetCharacteristicValue records the result of an explicit read so the
// cached value reflects the last value obtained by read or notification.
func (c *Cache) SetCharacteristicValue(id CharacteristicID, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.characteristics[id]; ok {
		ch.value = cloneBytes(value)
	}
}

// Orphan buffering.

func (c *Cache) bufferOrphanLocked(parent, path dbus.ObjectPath, ifaces bus.InterfaceSet) {
	c.logger.WithFields(logrus.Fields{
		"path":   path,
		"parent": parent,
	}).Debug("Buffering child announced before its parent")
	c.orphans[parent] = append(c.orphans[parent], orphan{
		path:   path,
		ifaces: ifaces,
		seen:   c.now(),
	})
}

func (c *Cache) releaseOrphansLocked(parent dbus.ObjectPath) {
	pending, ok := c.orphans[parent]
	if !ok {
		return
	}
	delete(c.orphans, parent)
	for _, o := range pending {
		c.applyAddedLocked(o.path, o.ifaces)
	}
}

func (c *Cache) pruneOrphansLocked() {
	cutoff := c.now().Add(-c.orphanTTL)
	for parent, pending := range c.orphans {
		kept := pending[:0]
		for _, o := range pending {
			if o.seen.After(cutoff) {
				kept = append(kept, o)
			} else {
				c.logger.WithFields(logrus.Fields{
					"path":   o.path,
					"parent": parent,
				}).Debug("Dropping stale orphaned object")
			}
		}
		if len(kept) == 0 {
			delete(c.orphans, parent)
		} else {
			c.orphans[parent] = kept
		}
	}
}

// GATT-resolution waiters.

// AwaitResolved returns a channel that yields nil once the device is
// connected with its GATT database resolved, or an error if the device
// disconnects or is removed first. cancel detaches the waiter.
func (c *Cache) AwaitResolved(id DeviceID) (<-chan error, func()) {
	ch := make(chan error, 1)

	c.mu.Lock()
	defer c.mu.Unlock()

	d, ok := c.devices[id]
	if !ok {
		ch <- ErrNotFound
		return ch, func() {}
	}
	if d.connected && d.servicesResolved {
		ch <- nil
		return ch, func() {}
	}

	c.waiters[id] = append(c.waiters[id], ch)
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		list := c.waiters[id]
		for i, w := range list {
			if w == ch {
				c.waiters[id] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(c.waiters[id]) == 0 {
			delete(c.waiters, id)
		}
	}
}

func (c *Cache) signalWaitersLocked(id DeviceID) {
	for _, ch := range c.waiters[id] {
		ch <- nil
	}
	delete(c.waiters, id)
}

func (c *Cache) failWaitersLocked(id DeviceID, err error) {
	for _, ch := range c.waiters[id] {
		ch <- err
	}
	delete(c.waiters, id)
}

// FailAllWaiters aborts every pending resolution wait, e.g. on transport
// loss.
func (c *Cache) FailAllWaiters(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, list := range c.waiters {
		for _, ch := range list {
			ch <- err
		}
		delete(c.waiters, id)
	}
}

// Property application helpers.

func applyAdapterProps(a *adapter, props bus.Properties) {
	if addr, ok := bus.VariantString(props, bus.PropAddress); ok {
		a.address = addr
	}
	if name, ok := bus.VariantString(props, bus.PropName); ok {
		a.name = name
	}
	if alias, ok := bus.VariantString(props, bus.PropAlias); ok {
		a.alias = alias
	}
	if powered, ok := bus.VariantBool(props, bus.PropPowered); ok {
		a.powered = powered
	}
	if discovering, ok := bus.VariantBool(props, bus.PropDiscovering); ok {
		a.discovering = discovering
	}
}

func applyDeviceProps(d *device, props bus.Properties) {
	if addr, ok := bus.VariantString(props, bus.PropAddress); ok {
		d.address = addr
	}
	if name, ok := bus.VariantString(props, bus.PropName); ok {
		d.name = name
	}
	if alias, ok := bus.VariantString(props, bus.PropAlias); ok {
		d.alias = alias
	}
	if rssi, ok := bus.VariantInt16(props, bus.PropRSSI); ok {
		d.rssi = rssi
		d.hasRSSI = true
	}
	if connected, ok := bus.VariantBool(props, bus.PropConnected); ok {
		d.connected = connected
	}
	if resolved, ok := bus.VariantBool(props, bus.PropServicesResolved); ok {
		d.servicesResolved = resolved
	}
	if uuids, ok := bus.VariantStrings(props, bus.PropUUIDs); ok {
		parsed := make([]uuid.UUID, 0, len(uuids))
		for _, u := range uuids {
			if p, err := uuid.Parse(u); err == nil {
				parsed = append(parsed, p)
			}
		}
		d.serviceUUIDs = parsed
	}
}

// Path helpers.

func parentPath(path dbus.ObjectPath) dbus.ObjectPath {
	s := string(path)
	idx := strings.LastIndexByte(s, '/')
	if idx <= 0 {
		return "/"
	}
	return dbus.ObjectPath(s[:idx])
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (c *Cache) lookupAdapterLocked(path dbus.ObjectPath) (AdapterID, bool) {
	id, ok := c.reg.Lookup(path)
	if !ok {
		return "", false
	}
	if _, ok := c.adapters[AdapterID(id)]; !ok {
		return "", false
	}
	return AdapterID(id), true
}

func (c *Cache) lookupDeviceLocked(path dbus.ObjectPath) (DeviceID, bool) {
	id, ok := c.reg.Lookup(path)
	if !ok {
		return "", false
	}
	if _, ok := c.devices[DeviceID(id)]; !ok {
		return "", false
	}
	return DeviceID(id), true
}

func (c *Cache) lookupServiceLocked(path dbus.ObjectPath) (ServiceID, bool) {
	id, ok := c.reg.Lookup(path)
	if !ok {
		return "", false
	}
	if _, ok := c.services[ServiceID(id)]; !ok {
		return "", false
	}
	return ServiceID(id), true
}

func (c *Cache) lookupCharacteristicLocked(path dbus.ObjectPath) (CharacteristicID, bool) {
	id, ok := c.reg.Lookup(path)
	if !ok {
		return "", false
	}
	if _, ok := c.characteristics[CharacteristicID(id)]; !ok {
		return "", false
	}
	return CharacteristicID(id), true
}
