package topology

// Event is a typed, cache-derived topology event. Concrete types below.
type Event interface {
	isEvent()
}

// AdapterAdded reports a newly announced local adapter.
type AdapterAdded struct{ Adapter AdapterInfo }

// AdapterUpdated reports a property change on a known adapter.
type AdapterUpdated struct{ Adapter AdapterInfo }

// AdapterRemoved reports that the daemon lost the adapter (e.g. unplug).
type AdapterRemoved struct{ ID AdapterID }

// DeviceDiscovered is emitted exactly once, the first time a device is seen.
type DeviceDiscovered struct{ Device DeviceInfo }

// DeviceUpdated reports any later property change on a known device.
type DeviceUpdated struct{ Device DeviceInfo }

// DeviceRemoved means the daemon has forgotten the device entirely; its
// identifier and all descendant identifiers are invalid from this point.
type DeviceRemoved struct{ ID DeviceID }

// DeviceConnected reports the Connected property transitioning to true.
type DeviceConnected struct{ Device DeviceInfo }

// DeviceDisconnected reports the Connected property transitioning to false.
// The device stays in the cache; its GATT subtree is gone.
type DeviceDisconnected struct{ Device DeviceInfo }

// ServicesResolved reports that the device's GATT database is enumerated
// and services are queryable.
type ServicesResolved struct{ Device DeviceInfo }

// CharacteristicValueChanged carries a notification or read-induced value
// update. Value is a private copy.
type CharacteristicValueChanged struct {
	ID    CharacteristicID
	Value []byte
}

// CharacteristicRemoved reports that a characteristic disappeared without
// its device disconnecting (daemon-side GATT database change).
type CharacteristicRemoved struct{ ID CharacteristicID }

// Overflow is delivered to a subscriber in place of events its backlog
// could not hold. Receivers should resynchronize from cache snapshots.
type Overflow struct{}

func (AdapterAdded) isEvent()               {}
func (AdapterUpdated) isEvent()             {}
func (AdapterRemoved) isEvent()             {}
func (DeviceDiscovered) isEvent()           {}
func (DeviceUpdated) isEvent()              {}
func (DeviceRemoved) isEvent()              {}
func (DeviceConnected) isEvent()            {}
func (DeviceDisconnected) isEvent()         {}
func (ServicesResolved) isEvent()           {}
func (CharacteristicValueChanged) isEvent() {}
func (CharacteristicRemoved) isEvent()      {}
func (Overflow) isEvent()                   {}
