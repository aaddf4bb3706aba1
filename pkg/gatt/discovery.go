package gatt

import (
	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"

	"github.com/srg/bluegatt/internal/bus"
)

// Transport selects the scan type for discovery.
type Transport int

const (
	// TransportAuto interleaves BLE and Bluetooth Classic inquiry.
	TransportAuto Transport = iota + 1
	// TransportBrEdr scans Bluetooth Classic only.
	TransportBrEdr
	// TransportLE scans BLE only.
	TransportLE
)

func (t Transport) String() string {
	switch t {
	case TransportAuto:
		return "auto"
	case TransportBrEdr:
		return "bredr"
	case TransportLE:
		return "le"
	default:
		return ""
	}
}

// DiscoveryFilter narrows what the daemon reports during a scan. Zero
// values mean "daemon default"; note the daemon merges filters from all
// of its clients, so unexpected extra events are possible.
type DiscoveryFilter struct {
	// ServiceUUIDs, when non-empty, limits reports to devices advertising
	// at least one of these services.
	ServiceUUIDs []uuid.UUID
	// RSSIThreshold drops devices weaker than the given value.
	RSSIThreshold *int16
	// PathlossThreshold drops devices further than the given pathloss.
	PathlossThreshold *uint16
	// Transport selects the scan type; zero keeps the daemon default.
	Transport Transport
	// DuplicateData requests an event for every advertisement carrying
	// manufacturer data, not just the first.
	DuplicateData *bool
	// Discoverable makes the adapter itself discoverable while scanning.
	Discoverable *bool
	// Pattern limits reports to devices whose address or name starts
	// with the given prefix.
	Pattern string
}

// properties marshals only the fields that were set, so unset fields keep
// the daemon's defaults.
func (f *DiscoveryFilter) properties() bus.Properties {
	props := make(bus.Properties)
	if len(f.ServiceUUIDs) > 0 {
		uuids := make([]string, len(f.ServiceUUIDs))
		for i, u := range f.ServiceUUIDs {
			uuids[i] = u.String()
		}
		props["UUIDs"] = dbus.MakeVariant(uuids)
	}
	if f.RSSIThreshold != nil {
		props["RSSI"] = dbus.MakeVariant(*f.RSSIThreshold)
	}
	if f.PathlossThreshold != nil {
		props["Pathloss"] = dbus.MakeVariant(*f.PathlossThreshold)
	}
	if f.Transport != 0 {
		props["Transport"] = dbus.MakeVariant(f.Transport.String())
	}
	if f.DuplicateData != nil {
		props["DuplicateData"] = dbus.MakeVariant(*f.DuplicateData)
	}
	if f.Discoverable != nil {
		props["Discoverable"] = dbus.MakeVariant(*f.Discoverable)
	}
	if f.Pattern != "" {
		props["Pattern"] = dbus.MakeVariant(f.Pattern)
	}
	return props
}
