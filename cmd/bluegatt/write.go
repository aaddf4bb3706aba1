package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// writeCmd represents the write command
var writeCmd = &cobra.Command{
	Use:   "write <device-address> <uuid> <data>",
	Short: "Write a characteristic or descriptor value",
	Long: `Writes data to a BLE characteristic or descriptor.

Examples:
  # Write UTF-8 text with acknowledgement
  bluegatt write AA:BB:CC:DD:EE:FF ff01 "hello"

  # Write hex bytes
  bluegatt write AA:BB:CC:DD:EE:FF ff01 "01FF" --hex

  # Fire-and-forget write (no acknowledgement, no delivery guarantee)
  bluegatt write AA:BB:CC:DD:EE:FF ff01 "01FF" --hex --no-response

  # Write a descriptor
  bluegatt write AA:BB:CC:DD:EE:FF 2a37 "0100" --hex --desc 2902`,
	Args: cobra.ExactArgs(3),
	RunE: runWrite,
}

var (
	writeServiceUUID string
	writeDescUUID    string
	writeHex         bool
	writeNoResponse  bool
	writeTimeout     time.Duration
)

func init() {
	writeCmd.Flags().StringVar(&writeServiceUUID, "service", "", "Service UUID (required if characteristic UUID is ambiguous)")
	writeCmd.Flags().StringVar(&writeDescUUID, "desc", "", "Descriptor UUID (writes the descriptor instead of the characteristic)")
	writeCmd.Flags().BoolVar(&writeHex, "hex", false, "Interpret data as hex string; UTF-8 bytes by default")
	writeCmd.Flags().BoolVar(&writeNoResponse, "no-response", false, "Write without response (fire-and-forget)")
	writeCmd.Flags().DurationVar(&writeTimeout, "timeout", 30*time.Second, "Connection timeout")
}

func runWrite(cmd *cobra.Command, args []string) error {
	address := args[0]

	value, err := parseValueArg(args[2], writeHex)
	if err != nil {
		return err
	}

	session, _, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer session.Close()
	cmd.SilenceUsage = true

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()
	connectCtx, connectCancel := contextWithTimeout(ctx, writeTimeout)
	defer connectCancel()

	dev, err := connectByAddress(connectCtx, session, address)
	if err != nil {
		return err
	}

	char, err := findCharacteristic(session, dev.ID, writeServiceUUID, args[1])
	if err != nil {
		return err
	}

	if writeDescUUID != "" {
		descUUID, err := parseUUIDArg(writeDescUUID)
		if err != nil {
			return err
		}
		desc, err := findDescriptor(session, char.ID, descUUID)
		if err != nil {
			return err
		}
		if err := session.WriteDescriptor(ctx, desc.ID, value); err != nil {
			return err
		}
	} else {
		if err := session.WriteCharacteristic(ctx, char.ID, value, !writeNoResponse); err != nil {
			return err
		}
	}

	fmt.Printf("Wrote %d byte(s)\n", len(value))
	return nil
}
