// Package bledb names well-known Bluetooth SIG identifiers. Lookup is by
// the 16-bit form; vendor UUIDs outside the SIG base range are unnamed.
package bledb

import (
	"strings"

	"github.com/google/uuid"
)

// Kind classifies a known identifier.
type Kind int

const (
	KindService Kind = iota + 1
	KindCharacteristic
	KindDescriptor
)

// Entry is one known identifier.
type Entry struct {
	Name string
	Kind Kind
}

const sigBaseSuffix = "-0000-1000-8000-00805f9b34fb"

var services = map[uint16]string{
	0x1800: "Generic Access",
	0x1801: "Generic Attribute",
	0x1802: "Immediate Alert",
	0x1803: "Link Loss",
	0x1804: "Tx Power",
	0x1805: "Current Time",
	0x180A: "Device Information",
	0x180D: "Heart Rate",
	0x180F: "Battery",
	0x1810: "Blood Pressure",
	0x1812: "Human Interface Device",
	0x1816: "Cycling Speed and Cadence",
	0x1819: "Location and Navigation",
	0x181A: "Environmental Sensing",
	0x181C: "User Data",
	0x181D: "Weight Scale",
	0x1826: "Fitness Machine",
	0x183E: "Physical Activity Monitor",
}

var characteristics = map[uint16]string{
	0x2A00: "Device Name",
	0x2A01: "Appearance",
	0x2A05: "Service Changed",
	0x2A19: "Battery Level",
	0x2A23: "System ID",
	0x2A24: "Model Number String",
	0x2A25: "Serial Number String",
	0x2A26: "Firmware Revision String",
	0x2A27: "Hardware Revision String",
	0x2A28: "Software Revision String",
	0x2A29: "Manufacturer Name String",
	0x2A2B: "Current Time",
	0x2A37: "Heart Rate Measurement",
	0x2A38: "Body Sensor Location",
	0x2A6D: "Pressure",
	0x2A6E: "Temperature",
	0x2A6F: "Humidity",
}

var descriptors = map[uint16]string{
	0x2900: "Characteristic Extended Properties",
	0x2901: "Characteristic User Description",
	0x2902: "Client Characteristic Configuration",
	0x2903: "Server Characteristic Configuration",
	0x2904: "Characteristic Presentation Format",
	0x2905: "Characteristic Aggregate Format",
}

// Lookup resolves a UUID to its assigned name, if it is a SIG-assigned
// 16-bit identifier.
func Lookup(u uuid.UUID) (Entry, bool) {
	s := u.String()
	if !strings.HasSuffix(s, sigBaseSuffix) || !strings.HasPrefix(s, "0000") {
		return Entry{}, false
	}
	var short uint16
	for _, c := range s[4:8] {
		short <<= 4
		switch {
		case c >= '0' && c <= '9':
			short |= uint16(c - '0')
		case c >= 'a' && c <= 'f':
			short |= uint16(c-'a') + 10
		default:
			return Entry{}, false
		}
	}
	if name, ok := services[short]; ok {
		return Entry{Name: name, Kind: KindService}, true
	}
	if name, ok := characteristics[short]; ok {
		return Entry{Name: name, Kind: KindCharacteristic}, true
	}
	if name, ok := descriptors[short]; ok {
		return Entry{Name: name, Kind: KindDescriptor}, true
	}
	return Entry{}, false
}

// Name returns the assigned name or "" when unknown.
func Name(u uuid.UUID) string {
	e, _ := Lookup(u)
	return e.Name
}
