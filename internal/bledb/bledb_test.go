package bledb

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name     string
		uuid     string
		wantName string
		wantKind Kind
		found    bool
	}{
		{"battery service", "0000180f-0000-1000-8000-00805f9b34fb", "Battery", KindService, true},
		{"battery level char", "00002a19-0000-1000-8000-00805f9b34fb", "Battery Level", KindCharacteristic, true},
		{"cccd", "00002902-0000-1000-8000-00805f9b34fb", "Client Characteristic Configuration", KindDescriptor, true},
		{"unassigned short", "0000ff31-0000-1000-8000-00805f9b34fb", "", 0, false},
		{"vendor uuid", "6e400001-b5a3-f393-e0a9-e50e24dcca9e", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := uuid.Parse(tt.uuid)
			require.NoError(t, err)
			entry, ok := Lookup(u)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.wantName, entry.Name)
			assert.Equal(t, tt.wantKind, entry.Kind)
		})
	}
}

func TestName(t *testing.T) {
	u, err := uuid.Parse("0000180d-0000-1000-8000-00805f9b34fb")
	require.NoError(t, err)
	assert.Equal(t, "Heart Rate", Name(u))
	assert.Equal(t, "", Name(uuid.Nil))
}
