package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/bluegatt/pkg/config"
	"github.com/srg/bluegatt/pkg/gatt"
)

// openSession loads configuration, configures logging and dials the daemon.
func openSession(cmd *cobra.Command) (*gatt.Session, *logrus.Logger, error) {
	logger, err := configureLogger(cmd, "verbose")
	if err != nil {
		return nil, nil, err
	}

	configPath, _ := cmd.Flags().GetString("config")
	cfg := config.DefaultConfig()
	if configPath != "" {
		cfg, err = config.Load(configPath)
		if err != nil {
			return nil, nil, err
		}
	}

	session, err := gatt.Dial(logger, cfg.SessionOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to the Bluetooth daemon: %w", err)
	}
	return session, logger, nil
}

// signalContext cancels on Ctrl+C / SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// contextWithTimeout is like context.WithTimeout but treats zero as "no
// timeout".
func contextWithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}

// defaultAdapter returns the first known adapter.
func defaultAdapter(s *gatt.Session) (gatt.AdapterInfo, error) {
	adapters := s.Adapters()
	if len(adapters) == 0 {
		return gatt.AdapterInfo{}, gatt.ErrNoAdapters
	}
	return adapters[0], nil
}

// parseUUIDArg accepts full 128-bit UUIDs plus 16-bit and 32-bit short
// forms ("2a19", "0x2a19", "0000180f").
func parseUUIDArg(s string) (uuid.UUID, error) {
	trimmed := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	switch len(trimmed) {
	case 4:
		v, err := strconv.ParseUint(trimmed, 16, 16)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid 16-bit UUID %q: %w", s, err)
		}
		return gatt.UUID16(uint16(v)), nil
	case 8:
		v, err := strconv.ParseUint(trimmed, 16, 32)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid 32-bit UUID %q: %w", s, err)
		}
		return gatt.UUID32(uint32(v)), nil
	default:
		u, err := uuid.Parse(trimmed)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid UUID %q: %w", s, err)
		}
		return u, nil
	}
}

// shortUUID renders well-known base UUIDs in their 16-bit form.
func shortUUID(u uuid.UUID) string {
	s := u.String()
	if strings.HasSuffix(s, "-0000-1000-8000-00805f9b34fb") && strings.HasPrefix(s, "0000") {
		return s[4:8]
	}
	return s
}

// connectByAddress locates the device (scanning is the caller's job) and
// connects, waiting for GATT resolution.
func connectByAddress(ctx context.Context, s *gatt.Session, address string) (gatt.DeviceInfo, error) {
	dev, err := s.DeviceByAddress(address)
	if err != nil {
		return gatt.DeviceInfo{}, fmt.Errorf("device %s: %w", address, err)
	}
	if err := s.Connect(ctx, dev.ID); err != nil {
		return gatt.DeviceInfo{}, fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	// Refresh: connection state changed.
	return s.Device(dev.ID)
}

// findCharacteristic resolves a characteristic by UUID, optionally scoped
// to one service. Ambiguous matches across services are an error unless a
// service UUID disambiguates.
func findCharacteristic(s *gatt.Session, dev gatt.DeviceID, serviceArg, charArg string) (gatt.CharacteristicInfo, error) {
	charUUID, err := parseUUIDArg(charArg)
	if err != nil {
		return gatt.CharacteristicInfo{}, err
	}

	if serviceArg != "" {
		svcUUID, err := parseUUIDArg(serviceArg)
		if err != nil {
			return gatt.CharacteristicInfo{}, err
		}
		return s.ServiceCharacteristicByUUID(dev, svcUUID, charUUID)
	}

	services, err := s.Services(dev)
	if err != nil {
		return gatt.CharacteristicInfo{}, err
	}
	var matches []gatt.CharacteristicInfo
	for _, svc := range services {
		chars, err := s.Characteristics(svc.ID)
		if err != nil {
			return gatt.CharacteristicInfo{}, err
		}
		for _, ch := range chars {
			if ch.UUID == charUUID {
				matches = append(matches, ch)
			}
		}
	}
	switch len(matches) {
	case 0:
		return gatt.CharacteristicInfo{}, fmt.Errorf("characteristic %s: %w", shortUUID(charUUID), gatt.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return gatt.CharacteristicInfo{}, fmt.Errorf("characteristic %s found in %d services, disambiguate with --service", shortUUID(charUUID), len(matches))
	}
}

// findDescriptor resolves a descriptor by UUID under one characteristic.
func findDescriptor(s *gatt.Session, char gatt.CharacteristicID, descUUID uuid.UUID) (gatt.DescriptorInfo, error) {
	descs, err := s.Descriptors(char)
	if err != nil {
		return gatt.DescriptorInfo{}, err
	}
	for _, d := range descs {
		if d.UUID == descUUID {
			return d, nil
		}
	}
	return gatt.DescriptorInfo{}, fmt.Errorf("descriptor %s: %w", shortUUID(descUUID), gatt.ErrNotFound)
}

// parseValueArg decodes the write payload: hex with --hex, UTF-8 otherwise.
func parseValueArg(arg string, isHex bool) ([]byte, error) {
	if !isHex {
		return []byte(arg), nil
	}
	cleaned := strings.NewReplacer(" ", "", ":", "", "0x", "").Replace(strings.ToLower(arg))
	data, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("invalid hex payload %q: %w", arg, err)
	}
	return data, nil
}

func formatValue(value []byte, asHex bool) string {
	if asHex {
		return strings.ToUpper(hex.EncodeToString(value))
	}
	return string(value)
}
