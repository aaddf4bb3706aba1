package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/srg/bluegatt/pkg/gatt"
)

// subscribeCmd represents the subscribe command
var subscribeCmd = &cobra.Command{
	Use:   "subscribe <device-address> <uuid>",
	Short: "Subscribe to characteristic notifications",
	Long: `Subscribes to BLE characteristic notifications and outputs received
data until interrupted with Ctrl+C.

Examples:
  # Print each Heart Rate Measurement notification as hex
  bluegatt subscribe AA:BB:CC:DD:EE:FF 2a37 --hex

  # Pipe the raw notification byte stream to another tool
  bluegatt subscribe AA:BB:CC:DD:EE:FF ff31 --raw | xxd`,
	Args: cobra.ExactArgs(2),
	RunE: runSubscribe,
}

var (
	subscribeServiceUUID string
	subscribeHex         bool
	subscribeRaw         bool
	subscribeTimeout     time.Duration
)

func init() {
	subscribeCmd.Flags().StringVar(&subscribeServiceUUID, "service", "", "Service UUID (required if characteristic UUID is ambiguous)")
	subscribeCmd.Flags().BoolVar(&subscribeHex, "hex", false, "Output as hex string; raw bytes by default")
	subscribeCmd.Flags().BoolVar(&subscribeRaw, "raw", false, "Write the concatenated notification bytes to stdout")
	subscribeCmd.Flags().DurationVar(&subscribeTimeout, "timeout", 30*time.Second, "Connection timeout")
}

func runSubscribe(cmd *cobra.Command, args []string) error {
	address := args[0]

	session, logger, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer session.Close()
	cmd.SilenceUsage = true

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()
	connectCtx, connectCancel := contextWithTimeout(ctx, subscribeTimeout)
	defer connectCancel()

	dev, err := connectByAddress(connectCtx, session, address)
	if err != nil {
		return err
	}

	char, err := findCharacteristic(session, dev.ID, subscribeServiceUUID, args[1])
	if err != nil {
		return err
	}

	if subscribeRaw {
		return streamRaw(ctx, session, char)
	}

	// Subscribe before StartNotify so no early notification is missed.
	sub := session.Subscribe()
	defer sub.Cancel()

	if err := session.StartNotify(ctx, char.ID); err != nil {
		return err
	}
	defer func() {
		if err := session.StopNotify(cmd.Context(), char.ID); err != nil {
			logger.WithField("error", err).Warn("Failed to stop notifications")
		}
	}()

	fmt.Fprintf(os.Stderr, "Subscribed to %s, Ctrl+C to stop\n", shortUUID(char.UUID))
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				return gatt.ErrTransport
			}
			switch e := ev.(type) {
			case gatt.CharacteristicValueChanged:
				if e.ID == char.ID {
					fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05.000"), formatValue(e.Value, subscribeHex))
				}
			case gatt.DeviceDisconnected:
				if e.Device.ID == dev.ID {
					return errors.New("device disconnected")
				}
			case gatt.Overflow:
				fmt.Fprintln(os.Stderr, "WARNING: notifications dropped, output has a gap")
			}
		}
	}
}

// streamRaw copies the concatenated notification payloads to stdout, for
// piping into other tools.
func streamRaw(ctx context.Context, session *gatt.Session, char gatt.CharacteristicInfo) error {
	r, err := session.NotificationReader(ctx, char.ID)
	if err != nil {
		return err
	}
	defer r.Close()

	go func() {
		<-ctx.Done()
		_ = r.Close()
	}()

	if _, err := io.Copy(os.Stdout, r); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
