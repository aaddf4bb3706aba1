package gatt

import (
	"fmt"

	"github.com/google/uuid"
)

// Short Bluetooth SIG UUIDs expand into the 128-bit Bluetooth base UUID,
// xxxxxxxx-0000-1000-8000-00805f9b34fb.

// UUID16 widens a 16-bit assigned number, e.g. 0x180d for Heart Rate.
func UUID16(v uint16) uuid.UUID {
	return UUID32(uint32(v))
}

// UUID32 widens a 32-bit assigned number.
func UUID32(v uint32) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("%08x-0000-1000-8000-00805f9b34fb", v))
}
