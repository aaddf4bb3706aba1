package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// readCmd represents the read command
var readCmd = &cobra.Command{
	Use:   "read <device-address> <uuid>",
	Short: "Read a characteristic or descriptor value",
	Long: `Reads data from a BLE characteristic or descriptor.

Examples:
  # Read Battery Level characteristic
  bluegatt read AA:BB:CC:DD:EE:FF 2a19

  # Read with service disambiguation
  bluegatt read AA:BB:CC:DD:EE:FF 2a19 --service 180f

  # Read descriptor (Client Characteristic Configuration)
  bluegatt read AA:BB:CC:DD:EE:FF 2a37 --desc 2902

  # Output as hex
  bluegatt read AA:BB:CC:DD:EE:FF 2a19 --hex`,
	Args: cobra.ExactArgs(2),
	RunE: runRead,
}

var (
	readServiceUUID string
	readDescUUID    string
	readHex         bool
	readTimeout     time.Duration
)

func init() {
	readCmd.Flags().StringVar(&readServiceUUID, "service", "", "Service UUID (required if characteristic UUID is ambiguous)")
	readCmd.Flags().StringVar(&readDescUUID, "desc", "", "Descriptor UUID (reads the descriptor instead of the characteristic)")
	readCmd.Flags().BoolVar(&readHex, "hex", false, "Output as hex string (e.g., 'FF01'); raw bytes by default")
	readCmd.Flags().DurationVar(&readTimeout, "timeout", 30*time.Second, "Connection timeout")
}

func runRead(cmd *cobra.Command, args []string) error {
	address := args[0]

	session, _, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer session.Close()
	cmd.SilenceUsage = true

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()
	connectCtx, connectCancel := contextWithTimeout(ctx, readTimeout)
	defer connectCancel()

	dev, err := connectByAddress(connectCtx, session, address)
	if err != nil {
		return err
	}

	char, err := findCharacteristic(session, dev.ID, readServiceUUID, args[1])
	if err != nil {
		return err
	}

	var value []byte
	if readDescUUID != "" {
		descUUID, err := parseUUIDArg(readDescUUID)
		if err != nil {
			return err
		}
		desc, err := findDescriptor(session, char.ID, descUUID)
		if err != nil {
			return err
		}
		value, err = session.ReadDescriptor(ctx, desc.ID)
		if err != nil {
			return err
		}
	} else {
		value, err = session.ReadCharacteristic(ctx, char.ID)
		if err != nil {
			return err
		}
	}

	fmt.Println(formatValue(value, readHex))
	return nil
}
