package gatt

import "github.com/srg/bluegatt/internal/topology"

// Stable opaque identifiers, one type per entity kind. Identifiers stay
// unique for the whole session lifetime and are never reused, even if the
// daemon reuses an object path.
type (
	AdapterID        = topology.AdapterID
	DeviceID         = topology.DeviceID
	ServiceID        = topology.ServiceID
	CharacteristicID = topology.CharacteristicID
	DescriptorID     = topology.DescriptorID
)

// Immutable snapshots taken at call time. Never live views.
type (
	AdapterInfo        = topology.AdapterInfo
	DeviceInfo         = topology.DeviceInfo
	ServiceInfo        = topology.ServiceInfo
	CharacteristicInfo = topology.CharacteristicInfo
	DescriptorInfo     = topology.DescriptorInfo
)

// CharacteristicFlags is the decoded set of supported operations.
type CharacteristicFlags = topology.CharacteristicFlags

// Event is one entry of the typed topology event stream. See the concrete
// event types for semantics.
type Event = topology.Event

type (
	AdapterAdded               = topology.AdapterAdded
	AdapterUpdated             = topology.AdapterUpdated
	AdapterRemoved             = topology.AdapterRemoved
	DeviceDiscovered           = topology.DeviceDiscovered
	DeviceUpdated              = topology.DeviceUpdated
	DeviceRemoved              = topology.DeviceRemoved
	DeviceConnected            = topology.DeviceConnected
	DeviceDisconnected         = topology.DeviceDisconnected
	ServicesResolved           = topology.ServicesResolved
	CharacteristicValueChanged = topology.CharacteristicValueChanged
	CharacteristicRemoved      = topology.CharacteristicRemoved

	// Overflow tells a slow subscriber that events were dropped and cache
	// snapshots should be consulted to resynchronize.
	Overflow = topology.Overflow
)
