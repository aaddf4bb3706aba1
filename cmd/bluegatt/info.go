package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/srg/bluegatt/internal/bledb"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info <device-address>",
	Short: "Inspect a device's GATT database",
	Long: `Connects to the device and prints its full GATT database: services,
characteristics with their capability flags, and descriptors.

Example:
  bluegatt info AA:BB:CC:DD:EE:FF`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

var (
	infoTimeout    time.Duration
	infoDisconnect bool
)

func init() {
	infoCmd.Flags().DurationVar(&infoTimeout, "timeout", 30*time.Second, "Connection timeout")
	infoCmd.Flags().BoolVar(&infoDisconnect, "disconnect", false, "Disconnect after inspecting")
}

func runInfo(cmd *cobra.Command, args []string) error {
	address := args[0]

	session, _, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer session.Close()
	cmd.SilenceUsage = true

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()
	connectCtx, connectCancel := contextWithTimeout(ctx, infoTimeout)
	defer connectCancel()

	dev, err := connectByAddress(connectCtx, session, address)
	if err != nil {
		return err
	}
	if infoDisconnect {
		defer func() { _ = session.Disconnect(ctx, dev.ID) }()
	}

	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	fmt.Printf("Device %s (%s)\n", dev.Address, dev.DisplayName())

	services, err := session.Services(dev.ID)
	if err != nil {
		return err
	}
	for _, svc := range services {
		kind := "secondary"
		if svc.Primary {
			kind = "primary"
		}
		_, _ = cyan.Printf("service %s%s (%s)\n", shortUUID(svc.UUID), knownName(svc.UUID), kind)

		chars, err := session.Characteristics(svc.ID)
		if err != nil {
			return err
		}
		for _, ch := range chars {
			_, _ = yellow.Printf("  char %s%s", shortUUID(ch.UUID), knownName(ch.UUID))
			fmt.Printf("  [%s]\n", ch.Flags)

			descs, err := session.Descriptors(ch.ID)
			if err != nil {
				return err
			}
			for _, d := range descs {
				fmt.Printf("    desc %s%s\n", shortUUID(d.UUID), knownName(d.UUID))
			}
		}
	}
	return nil
}

// knownName renders the SIG-assigned name, if any, as a suffix.
func knownName(u uuid.UUID) string {
	if name := bledb.Name(u); name != "" {
		return fmt.Sprintf(" (%s)", name)
	}
	return ""
}
