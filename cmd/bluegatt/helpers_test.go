package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/bluegatt/pkg/gatt"
)

func TestParseUUIDArg(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"16-bit", "2a19", "00002a19-0000-1000-8000-00805f9b34fb", false},
		{"16-bit with prefix", "0x2A19", "00002a19-0000-1000-8000-00805f9b34fb", false},
		{"32-bit", "0000180f", "0000180f-0000-1000-8000-00805f9b34fb", false},
		{"full", "6e400001-b5a3-f393-e0a9-e50e24dcca9e", "6e400001-b5a3-f393-e0a9-e50e24dcca9e", false},
		{"garbage", "zz19", "", true},
		{"wrong length", "2a1", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseUUIDArg(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestShortUUID(t *testing.T) {
	u, err := parseUUIDArg("2a19")
	require.NoError(t, err)
	assert.Equal(t, "2a19", shortUUID(u))

	vendor, err := parseUUIDArg("6e400001-b5a3-f393-e0a9-e50e24dcca9e")
	require.NoError(t, err)
	assert.Equal(t, "6e400001-b5a3-f393-e0a9-e50e24dcca9e", shortUUID(vendor))
}

func TestParseValueArg(t *testing.T) {
	data, err := parseValueArg("hello", false)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	data, err = parseValueArg("01 FF:0x02", true)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0xFF, 0x02}, data)

	_, err = parseValueArg("xyz", true)
	assert.Error(t, err)
}

func TestBuildScanFilter(t *testing.T) {
	scanTransport = "le"
	scanServices = []string{"180f"}
	scanRSSI = -70
	defer func() {
		scanTransport = "auto"
		scanServices = nil
		scanRSSI = 0
	}()

	filter, err := buildScanFilter()
	require.NoError(t, err)
	assert.Equal(t, gatt.TransportLE, filter.Transport)
	require.Len(t, filter.ServiceUUIDs, 1)
	require.NotNil(t, filter.RSSIThreshold)
	assert.Equal(t, int16(-70), *filter.RSSIThreshold)

	scanTransport = "warp"
	_, err = buildScanFilter()
	assert.Error(t, err)
}

func TestFormatUserError(t *testing.T) {
	assert.Contains(t, FormatUserError(gatt.ErrTimeout), "timed out")
	assert.Contains(t, FormatUserError(gatt.ErrNoAdapters), "no Bluetooth adapters")

	daemonErr := &gatt.DaemonError{Name: "org.bluez.Error.InProgress", Message: "busy"}
	assert.Contains(t, FormatUserError(daemonErr), "org.bluez.Error.InProgress")

	plain := errors.New("something else")
	assert.Equal(t, "something else", FormatUserError(plain))
}
