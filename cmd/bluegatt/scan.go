package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/srg/bluegatt/pkg/gatt"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for BLE devices",
	Long: `Scan for and display Bluetooth Low Energy devices in the vicinity.

Discovered devices are printed with their names, addresses, RSSI values,
and advertised services. The scan runs for the given duration, or until
interrupted with Ctrl+C.`,
	RunE: runScan,
}

var (
	scanDuration  time.Duration
	scanFormat    string
	scanServices  []string
	scanTransport string
	scanRSSI      int16
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 10*time.Second, "Scan duration (0 for indefinite)")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json)")
	scanCmd.Flags().StringSliceVarP(&scanServices, "services", "s", nil, "Filter by service UUIDs")
	scanCmd.Flags().StringVar(&scanTransport, "transport", "auto", "Scan transport (auto, bredr, le)")
	scanCmd.Flags().Int16Var(&scanRSSI, "rssi", 0, "Drop devices weaker than this RSSI (0 disables)")
}

func buildScanFilter() (*gatt.DiscoveryFilter, error) {
	filter := &gatt.DiscoveryFilter{}
	switch scanTransport {
	case "auto":
		filter.Transport = gatt.TransportAuto
	case "bredr":
		filter.Transport = gatt.TransportBrEdr
	case "le":
		filter.Transport = gatt.TransportLE
	default:
		return nil, fmt.Errorf("invalid transport %q: use auto, bredr, or le", scanTransport)
	}
	for _, s := range scanServices {
		u, err := parseUUIDArg(s)
		if err != nil {
			return nil, err
		}
		filter.ServiceUUIDs = append(filter.ServiceUUIDs, u)
	}
	if scanRSSI != 0 {
		rssi := scanRSSI
		filter.RSSIThreshold = &rssi
	}
	return filter, nil
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanFormat != "table" && scanFormat != "json" {
		return fmt.Errorf("invalid format '%s': must be table or json", scanFormat)
	}
	filter, err := buildScanFilter()
	if err != nil {
		return err
	}

	session, logger, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer session.Close()

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	adapter, err := defaultAdapter(session)
	if err != nil {
		return err
	}

	baseCtx := context.Background()
	if scanDuration > 0 {
		var cancel context.CancelFunc
		baseCtx, cancel = context.WithTimeout(baseCtx, scanDuration)
		defer cancel()
	}
	ctx, cancel := signalContext(baseCtx)
	defer cancel()

	sub := session.Subscribe()
	defer sub.Cancel()

	if err := session.StartDiscovery(ctx, adapter.ID, filter); err != nil {
		return err
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		if err := session.StopDiscovery(stopCtx, adapter.ID); err != nil {
			logger.WithField("error", err).Warn("Failed to stop discovery")
		}
	}()

	// Drain events until the deadline; the cache accumulates the results.
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				fmt.Println("\nScan interrupted")
			}
			return displayDevices(session.Devices())
		case _, ok := <-sub.Events():
			if !ok {
				return gatt.ErrTransport
			}
		}
	}
}

func displayDevices(devices []gatt.DeviceInfo) error {
	sort.Slice(devices, func(i, j int) bool {
		// Strongest signal first; devices without RSSI sink to the bottom.
		if devices[i].HasRSSI != devices[j].HasRSSI {
			return devices[i].HasRSSI
		}
		if devices[i].RSSI != devices[j].RSSI {
			return devices[i].RSSI > devices[j].RSSI
		}
		return devices[i].Address < devices[j].Address
	})

	if scanFormat == "json" {
		return json.NewEncoder(os.Stdout).Encode(devices)
	}

	bold := color.New(color.Bold)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = bold.Fprintln(w, "ADDRESS\tNAME\tRSSI\tCONNECTED\tSERVICES")
	for _, dev := range devices {
		rssi := "-"
		if dev.HasRSSI {
			rssi = fmt.Sprintf("%d", dev.RSSI)
		}
		connected := ""
		if dev.Connected {
			connected = color.GreenString("yes")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
			dev.Address, dev.DisplayName(), rssi, connected, len(dev.ServiceUUIDs))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d device(s) found\n", len(devices))
	return nil
}
