package main

import (
	"github.com/spf13/cobra"
)

// devicesCmd lists devices the daemon already knows about, without scanning.
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List known devices",
	Long: `List devices the Bluetooth daemon already knows about - paired
devices and devices seen by earlier scans - without starting a new scan.`,
	RunE: runDevices,
}

func init() {
	devicesCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json)")
}

func runDevices(cmd *cobra.Command, args []string) error {
	session, _, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer session.Close()
	cmd.SilenceUsage = true

	return displayDevices(session.Devices())
}
