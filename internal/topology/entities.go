package topology

import (
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/srg/bluegatt/internal/registry"
)

// Typed identifiers, one per entity kind. They wrap registry identifiers so
// a device id can never be passed where a service id is expected.
type (
	AdapterID        registry.ID
	DeviceID         registry.ID
	ServiceID        registry.ID
	CharacteristicID registry.ID
	DescriptorID     registry.ID
)

// CharacteristicFlags is the set of operations a characteristic supports,
// decoded from the daemon's Flags property.
type CharacteristicFlags struct {
	Broadcast                 bool
	Read                      bool
	WriteWithoutResponse      bool
	Write                     bool
	Notify                    bool
	Indicate                  bool
	AuthenticatedSignedWrites bool
}

// ParseCharacteristicFlags decodes the daemon's flag strings. Unknown flags
// are ignored.
func ParseCharacteristicFlags(flags []string) CharacteristicFlags {
	var f CharacteristicFlags
	for _, flag := range flags {
		switch flag {
		case "broadcast":
			f.Broadcast = true
		case "read":
			f.Read = true
		case "write-without-response":
			f.WriteWithoutResponse = true
		case "write":
			f.Write = true
		case "notify":
			f.Notify = true
		case "indicate":
			f.Indicate = true
		case "authenticated-signed-writes":
			f.AuthenticatedSignedWrites = true
		}
	}
	return f
}

func (f CharacteristicFlags) String() string {
	var parts []string
	if f.Broadcast {
		parts = append(parts, "broadcast")
	}
	if f.Read {
		parts = append(parts, "read")
	}
	if f.WriteWithoutResponse {
		parts = append(parts, "write-without-response")
	}
	if f.Write {
		parts = append(parts, "write")
	}
	if f.Notify {
		parts = append(parts, "notify")
	}
	if f.Indicate {
		parts = append(parts, "indicate")
	}
	if f.AuthenticatedSignedWrites {
		parts = append(parts, "authenticated-signed-writes")
	}
	return strings.Join(parts, ",")
}

// Internal mutable entities. Owned by the Cache; never escape its lock.

type adapter struct {
	id          AdapterID
	path        dbus.ObjectPath
	address     string
	name        string
	alias       string
	powered     bool
	discovering bool
	devices     *orderedmap.OrderedMap[DeviceID, *device]
}

type device struct {
	id               DeviceID
	path             dbus.ObjectPath
	adapter          AdapterID
	address          string
	name             string
	alias            string
	rssi             int16
	hasRSSI          bool
	connected        bool
	servicesResolved bool
	serviceUUIDs     []uuid.UUID
	services         *orderedmap.OrderedMap[ServiceID, *service]
}

type service struct {
	id              ServiceID
	path            dbus.ObjectPath
	device          DeviceID
	uuid            uuid.UUID
	primary         bool
	characteristics *orderedmap.OrderedMap[CharacteristicID, *characteristic]
}

type characteristic struct {
	id          CharacteristicID
	path        dbus.ObjectPath
	service     ServiceID
	device      DeviceID
	uuid        uuid.UUID
	flags       CharacteristicFlags
	value       []byte
	notifying   bool
	descriptors *orderedmap.OrderedMap[DescriptorID, *descriptor]
}

type descriptor struct {
	id             DescriptorID
	path           dbus.ObjectPath
	characteristic CharacteristicID
	device         DeviceID
	uuid           uuid.UUID
	value          []byte
}

// Immutable snapshots returned to callers. Byte slices are copies.

type AdapterInfo struct {
	ID          AdapterID
	Address     string
	Name        string
	Alias       string
	Powered     bool
	Discovering bool
}

type DeviceInfo struct {
	ID               DeviceID
	Adapter          AdapterID
	Address          string
	Name             string
	Alias            string
	RSSI             int16
	HasRSSI          bool
	Connected        bool
	ServicesResolved bool
	ServiceUUIDs     []uuid.UUID
}

// DisplayName returns the friendliest available identification.
func (d DeviceInfo) DisplayName() string {
	switch {
	case d.Alias != "":
		return d.Alias
	case d.Name != "":
		return d.Name
	default:
		return d.Address
	}
}

type ServiceInfo struct {
	ID      ServiceID
	Device  DeviceID
	UUID    uuid.UUID
	Primary bool
}

type CharacteristicInfo struct {
	ID        CharacteristicID
	Service   ServiceID
	Device    DeviceID
	UUID      uuid.UUID
	Flags     CharacteristicFlags
	Value     []byte
	Notifying bool
}

type DescriptorInfo struct {
	ID             DescriptorID
	Characteristic CharacteristicID
	Device         DeviceID
	UUID           uuid.UUID
	Value          []byte
}

func (a *adapter) snapshot() AdapterInfo {
	return AdapterInfo{
		ID:          a.id,
		Address:     a.address,
		Name:        a.name,
		Alias:       a.alias,
		Powered:     a.powered,
		Discovering: a.discovering,
	}
}

func (d *device) snapshot() DeviceInfo {
	uuids := make([]uuid.UUID, len(d.serviceUUIDs))
	copy(uuids, d.serviceUUIDs)
	return DeviceInfo{
		ID:               d.id,
		Adapter:          d.adapter,
		Address:          d.address,
		Name:             d.name,
		Alias:            d.alias,
		RSSI:             d.rssi,
		HasRSSI:          d.hasRSSI,
		Connected:        d.connected,
		ServicesResolved: d.servicesResolved,
		ServiceUUIDs:     uuids,
	}
}

func (s *service) snapshot() ServiceInfo {
	return ServiceInfo{
		ID:      s.id,
		Device:  s.device,
		UUID:    s.uuid,
		Primary: s.primary,
	}
}

func (c *characteristic) snapshot() CharacteristicInfo {
	value := make([]byte, len(c.value))
	copy(value, c.value)
	return CharacteristicInfo{
		ID:        c.id,
		Service:   c.service,
		Device:    c.device,
		UUID:      c.uuid,
		Flags:     c.flags,
		Value:     value,
		Notifying: c.notifying,
	}
}

func (d *descriptor) snapshot() DescriptorInfo {
	value := make([]byte, len(d.value))
	copy(value, d.value)
	return DescriptorInfo{
		ID:             d.id,
		Characteristic: d.characteristic,
		Device:         d.device,
		UUID:           d.uuid,
		Value:          value,
	}
}
